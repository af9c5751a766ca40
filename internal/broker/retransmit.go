package broker

import (
	"context"
	"time"
)

// RetransmitInterval is the cadence of the unacknowledged-message sweep.
const RetransmitInterval = 20 * time.Second

// RunRetransmitter re-sends unacknowledged QoS 1 messages until the context
// is cancelled. A message leaves the queue only through a PUBACK; this loop
// never expires or drops anything, so delivery retries forever and
// duplicates are permitted.
func (b *Broker) RunRetransmitter(ctx context.Context) {
	ticker := time.NewTicker(RetransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.retransmit()
		}
	}
}

func (b *Broker) retransmit() {
	for clientID, queue := range b.Pending.Snapshot() {
		sess, ok := b.Sessions.Get(clientID)
		if !ok {
			// Client is offline; its queue waits for the next tick.
			continue
		}

		for _, msg := range queue {
			p := msg.ToPublish()
			if err := b.writePacket(sess.Conn, p); err != nil {
				b.log.LogError(err, "Failed re-sending pending publish")
				continue
			}
			b.log.LogPublish(clientID, p.Topic, int(p.QoS), p.Retain, len(p.Payload))
		}
	}
}
