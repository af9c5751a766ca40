package broker

import (
	"github.com/nslz/broquet/internal/packet"
)

// PublishLastWill publishes the will registered by the session owning the
// given peer, routed exactly like a client publish: retained handling,
// min-QoS fanout, pending enqueue for QoS 1 subscribers. Sessions without a
// will, and peers without a session, are a no-op.
func (b *Broker) PublishLastWill(peer uint16) {
	clientID, err := b.Sessions.ClientIDByPeer(peer)
	if err != nil {
		return
	}

	sess, ok := b.Sessions.Get(clientID)
	if !ok || sess.LastWill == nil {
		return
	}
	lwt := sess.LastWill

	b.log.Warn("Client disconnected ungracefully, publishing last will")

	qos := lwt.QoS
	var packetID uint16
	if qos > packet.QoSAtMostOnce {
		packetID = b.packetIDs.Next()
	}

	b.forward(&packet.Publish{
		QoS:      qos,
		Retain:   lwt.Retain,
		Topic:    lwt.Topic,
		PacketID: packetID,
		Payload:  lwt.Payload,
	})
}
