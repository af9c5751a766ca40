package broker

import (
	"github.com/nslz/broquet/internal/conns"
	"github.com/nslz/broquet/internal/packet"
	"github.com/nslz/broquet/internal/session"
	"github.com/nslz/broquet/internal/topic"
)

// HandlePacket routes one decoded packet to its handler. Server-to-client
// packet types arriving at the broker are protocol violations and drop the
// connection.
func (b *Broker) HandlePacket(c *conns.Conn, p packet.Packet) {
	switch p := p.(type) {
	case *packet.Connect:
		b.handleConnect(c, p)
	case *packet.Publish:
		b.handlePublish(c, p)
	case *packet.Subscribe:
		b.handleSubscribe(c, p)
	case *packet.Unsubscribe:
		b.handleUnsubscribe(c, p)
	case *packet.Puback:
		b.handlePuback(c, p)
	case *packet.Pingreq:
		b.handlePingreq(c, p)
	case *packet.Disconnect:
		b.handleDisconnect(c)
	default:
		b.log.Warn("Dropping connection on unexpected packet type")
		b.Conns.Remove(c.Peer)
	}
}

func (b *Broker) handleConnect(c *conns.Conn, p *packet.Connect) {
	if !b.Credentials.IsValid(p.Username, p.Password) {
		b.log.LogAuth(p.ClientID, p.Username, false, "unknown username or wrong password")
		b.reply(c, &packet.Connack{ReturnCode: packet.BadUsernameOrPassword})
		b.Conns.Remove(c.Peer)
		return
	}
	b.log.LogAuth(p.ClientID, p.Username, true, "accepted")

	var lwt *session.LastWill
	if p.WillFlag {
		lwt = &session.LastWill{
			Topic:   p.WillTopic,
			Payload: []byte(p.WillMessage),
			QoS:     p.WillQoS,
			Retain:  p.WillRetain,
		}
	}

	sessionPresent := false

	if !b.Sessions.Has(p.ClientID) {
		b.Sessions.Add(p.ClientID, c.NetConn, c.Peer, lwt)
	} else {
		// Reconnect: the previous socket is dropped either way.
		if oldPeer, err := b.Sessions.OldPeer(p.ClientID); err == nil && oldPeer != c.Peer {
			b.Conns.Remove(oldPeer)
		}

		if !p.CleanSession {
			// Persistent session: subscriptions and pending messages survive.
			sessionPresent = true
			if err := b.Sessions.ReplaceConn(p.ClientID, c.NetConn, c.Peer); err != nil {
				b.log.LogError(err, "Failed rebinding session")
			}
		} else {
			b.Sessions.Delete(p.ClientID)
			for _, name := range b.Topics.Topics() {
				b.Topics.Unsubscribe(name, p.ClientID)
			}
			b.Pending.Delete(p.ClientID)
			b.Sessions.Add(p.ClientID, c.NetConn, c.Peer, lwt)
		}
	}

	b.log.LogClientConnection(p.ClientID, c.NetConn.RemoteAddr().String(), "connect")
	b.reply(c, &packet.Connack{SessionPresent: sessionPresent, ReturnCode: packet.ConnectionAccepted})
}

func (b *Broker) handlePublish(c *conns.Conn, p *packet.Publish) {
	if p.QoS == packet.QoSExactlyOnce {
		b.log.Warn("Dropping connection on QoS 2 publish")
		b.Conns.Remove(c.Peer)
		return
	}

	b.forward(p)

	if p.QoS == packet.QoSAtLeastOnce {
		b.reply(c, &packet.Puback{PacketID: p.PacketID})
	}
}

func (b *Broker) handleSubscribe(c *conns.Conn, p *packet.Subscribe) {
	returnCodes := make([]byte, len(p.Filters))

	clientID, err := b.Sessions.ClientIDByPeer(c.Peer)
	if err != nil {
		// No CONNECT seen on this connection; nothing can be granted.
		for i := range returnCodes {
			returnCodes[i] = packet.SubackFailure
		}
		b.reply(c, &packet.Suback{PacketID: p.PacketID, ReturnCodes: returnCodes})
		return
	}

	replayed := make(map[string]bool)

	for i, filter := range p.Filters {
		if err := packet.ValidateTopicFilter(filter.Topic); err != nil {
			returnCodes[i] = packet.SubackFailure
			continue
		}

		// QoS 2 subscriptions are granted at this broker's maximum, QoS 1.
		granted := min(filter.QoS, packet.QoSAtLeastOnce)
		b.Topics.Subscribe(filter.Topic, topic.Subscription{ClientID: clientID, QoS: granted})
		returnCodes[i] = byte(granted)
		b.log.LogSubscription(clientID, filter.Topic, int(granted), "subscribe")

		// Replay retained state for every topic the client now holds.
		for _, name := range b.Topics.ClientSubscriptions(clientID) {
			if replayed[name] {
				continue
			}
			retained, ok := b.Topics.RetainedMessage(name)
			if !ok {
				continue
			}
			replayed[name] = true

			b.reply(c, &packet.Publish{
				QoS:      min(granted, retained.QoS),
				Retain:   true,
				Topic:    retained.Topic,
				PacketID: retained.PacketID,
				Payload:  retained.Payload,
			})
		}
	}

	b.reply(c, &packet.Suback{PacketID: p.PacketID, ReturnCodes: returnCodes})
}

func (b *Broker) handleUnsubscribe(c *conns.Conn, p *packet.Unsubscribe) {
	if clientID, err := b.Sessions.ClientIDByPeer(c.Peer); err == nil {
		for _, filter := range p.TopicFilters {
			b.Topics.Unsubscribe(filter, clientID)
			b.log.LogSubscription(clientID, filter, 0, "unsubscribe")
		}
	}

	b.reply(c, &packet.Unsuback{PacketID: p.PacketID})
}

// handlePuback removes the acknowledged message from the client's pending
// queue. Unknown packet ids are ignored, so duplicate acks are harmless.
func (b *Broker) handlePuback(c *conns.Conn, p *packet.Puback) {
	clientID, err := b.Sessions.ClientIDByPeer(c.Peer)
	if err != nil {
		return
	}
	b.Pending.Remove(clientID, p.PacketID)
}

func (b *Broker) handlePingreq(c *conns.Conn, _ *packet.Pingreq) {
	b.reply(c, &packet.Pingresp{})
}

// handleDisconnect tears the client fully down: session, pending queue,
// subscriptions, socket. A graceful disconnect never publishes the last
// will.
func (b *Broker) handleDisconnect(c *conns.Conn) {
	clientID, err := b.Sessions.ClientIDByPeer(c.Peer)
	if err == nil {
		b.Sessions.Delete(clientID)
		b.Pending.Delete(clientID)
		for _, name := range b.Topics.Topics() {
			b.Topics.Unsubscribe(name, clientID)
		}
		b.log.LogClientConnection(clientID, c.NetConn.RemoteAddr().String(), "disconnect")
	}

	b.Conns.Remove(c.Peer)
}

// reply writes a response packet. A failed response write is observational:
// the connection stays enrolled and is reaped by the next broken peek.
func (b *Broker) reply(c *conns.Conn, p packet.Packet) {
	if err := b.writePacket(c.NetConn, p); err != nil {
		b.log.LogError(err, "Failed writing response packet")
	}
}
