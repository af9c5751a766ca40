package conns

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
)

// Conn is one enrolled connection. The bufio.Reader owns all reads on the
// socket so the dispatcher can peek without consuming, and the busy flag
// keeps at most one packet in flight per connection.
type Conn struct {
	NetConn net.Conn
	Reader  *bufio.Reader
	Peer    uint16

	busy atomic.Bool
}

// TryAcquire claims the connection for one dispatch. Returns false while a
// previous packet is still being handled.
func (c *Conn) TryAcquire() bool {
	return c.busy.CompareAndSwap(false, true)
}

// Release returns the connection to the scannable set.
func (c *Conn) Release() {
	c.busy.Store(false)
}

// Registry contains the connections currently scanned by the dispatcher,
// keyed on peer port.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint16]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint16]*Conn)}
}

// Add enrolls an accepted connection into the active set.
func (r *Registry) Add(nc net.Conn, peer uint16) *Conn {
	c := &Conn{
		NetConn: nc,
		Reader:  bufio.NewReader(nc),
		Peer:    peer,
	}

	r.mu.Lock()
	r.conns[peer] = c
	r.mu.Unlock()

	return c
}

func (r *Registry) Get(peer uint16) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[peer]
	return c, ok
}

// Remove drops the connection from the active set and closes the socket.
func (r *Registry) Remove(peer uint16) {
	r.mu.Lock()
	c, ok := r.conns[peer]
	delete(r.conns, peer)
	r.mu.Unlock()

	if ok {
		c.NetConn.Close()
	}
}

// Snapshot returns the current connections for one scan pass.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
