package broker

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nslz/broquet/internal/conns"
	"github.com/nslz/broquet/internal/packet"
)

const (
	// ScanInterval is the cadence of the active-connections sweep.
	ScanInterval = 1 * time.Second
	// peekTimeout bounds the non-destructive peek on each socket.
	peekTimeout = 100 * time.Millisecond
	// readTimeout bounds reading one full packet once data is pending.
	readTimeout = 5 * time.Second
)

// RunDispatcher sweeps the active connections until the context is
// cancelled. Each sweep peeks one byte per connection: no data means skip,
// a broken socket triggers the last will, pending data dispatches one
// packet to the worker pool. A connection is scanned at most once per tick
// and holds at most one packet in flight, so per-connection handling order
// equals arrival order.
func (b *Broker) RunDispatcher(ctx context.Context) {
	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.scan()
		}
	}
}

func (b *Broker) scan() {
	for _, c := range b.Conns.Snapshot() {
		if !c.TryAcquire() {
			continue
		}

		if err := c.NetConn.SetReadDeadline(time.Now().Add(peekTimeout)); err != nil {
			b.connectionBroken(c)
			c.Release()
			continue
		}

		_, err := c.Reader.Peek(1)
		switch {
		case err == nil:
			b.pool.Submit(func() {
				defer c.Release()
				b.dispatchOne(c)
			})

		case isTimeout(err):
			// No pending data on this socket.
			c.Release()

		default:
			b.connectionBroken(c)
			c.Release()
		}
	}
}

// dispatchOne decodes a single packet from the connection and runs its
// handler. A malformed packet removes the connection from the active set.
func (b *Broker) dispatchOne(c *conns.Conn) {
	if err := c.NetConn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		b.connectionBroken(c)
		return
	}

	p, err := packet.ReadPacket(c.Reader)
	if err != nil {
		b.log.LogError(err, "Dropping connection on malformed packet")
		b.Conns.Remove(c.Peer)
		return
	}

	b.HandlePacket(c, p)
}

// connectionBroken publishes the owning session's last will, if any, and
// drops the socket from the active set. Graceful DISCONNECTs never reach
// this path.
func (b *Broker) connectionBroken(c *conns.Conn) {
	b.PublishLastWill(c.Peer)
	b.Conns.Remove(c.Peer)
}

// isTimeout reports whether the peek found an idle socket. Every other
// peek failure (EOF, reset, pipe) counts as a broken connection.
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
