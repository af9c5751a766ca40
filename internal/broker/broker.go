package broker

import (
	"bytes"
	"net"

	"github.com/nslz/broquet/internal/conns"
	"github.com/nslz/broquet/internal/credentials"
	"github.com/nslz/broquet/internal/logger"
	"github.com/nslz/broquet/internal/packet"
	"github.com/nslz/broquet/internal/pending"
	"github.com/nslz/broquet/internal/session"
	"github.com/nslz/broquet/internal/topic"
)

const defaultPoolSize = 4

// Broker owns the registries and the per-packet handlers. The transport
// enrolls accepted connections into Conns; the dispatcher feeds packets from
// them into the handlers through the worker pool.
type Broker struct {
	Credentials *credentials.Store
	Sessions    *session.Registry
	Topics      *topic.Registry
	Pending     *pending.Store
	Conns       *conns.Registry

	pool      *Pool
	packetIDs *packetIDAllocator
	log       *logger.Logger
}

func New(log *logger.Logger) *Broker {
	return &Broker{
		Credentials: credentials.NewStore(),
		Sessions:    session.NewRegistry(),
		Topics:      topic.NewRegistry(),
		Pending:     pending.NewStore(),
		Conns:       conns.NewRegistry(),
		pool:        NewPool(defaultPoolSize),
		packetIDs:   newPacketIDAllocator(),
		log:         log,
	}
}

// Close shuts the worker pool down; in-flight jobs finish.
func (b *Broker) Close() {
	b.pool.Stop()
}

// writePacket serializes the packet into one conn.Write call so concurrent
// senders (handlers, retransmitter, LWT) cannot interleave bytes on the
// wire.
func (b *Broker) writePacket(conn net.Conn, p packet.Packet) error {
	var buf bytes.Buffer
	if err := p.WriteTo(&buf); err != nil {
		return err
	}
	_, err := conn.Write(buf.Bytes())
	return err
}

// forward fans a publish out to every subscriber of its topic. The
// effective QoS per subscriber is min(granted, published); at QoS 1 the
// message is queued as pending before the write so a lost write is
// retransmitted.
func (b *Broker) forward(p *packet.Publish) {
	subscriptions := b.Topics.Subscriptions(p.Topic)
	b.Topics.UpdateTopic(p)

	for _, sub := range subscriptions {
		sess, ok := b.Sessions.Get(sub.ClientID)
		if !ok {
			b.log.Warn("Subscriber has no session, skipping delivery")
			continue
		}

		out := &packet.Publish{
			DUP:      p.DUP,
			QoS:      min(sub.QoS, p.QoS),
			Retain:   p.Retain,
			Topic:    p.Topic,
			PacketID: p.PacketID,
			Payload:  p.Payload,
		}

		if out.QoS >= packet.QoSAtLeastOnce {
			b.Pending.Add(sub.ClientID, pending.FromPublish(out))
		}

		if err := b.writePacket(sess.Conn, out); err != nil {
			b.log.LogError(err, "Failed forwarding publish to subscriber")
			continue
		}
		b.log.LogPublish(sub.ClientID, out.Topic, int(out.QoS), out.Retain, len(out.Payload))
	}
}
