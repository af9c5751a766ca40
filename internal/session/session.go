package session

import (
	"net"
	"sync"

	"github.com/nslz/broquet/internal/packet"
	"github.com/nslz/broquet/pkg/er"
)

// LastWill is the message published on a client's behalf when the broker
// observes its connection as broken.
type LastWill struct {
	Topic   string
	Payload []byte
	QoS     packet.QoSLevel
	Retain  bool
}

// Session binds a client id to its current connection. The peer (remote TCP
// port) is the ephemeral handle used to detect broken connections.
type Session struct {
	ClientID string
	Conn     net.Conn
	Peer     uint16
	LastWill *LastWill
}

// Registry contains the sessions known by the broker, keyed on client id,
// with a peer-to-client-id inverse index kept consistent under one lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byPeer   map[uint16]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byPeer:   make(map[uint16]string),
	}
}

// Add inserts a new session and records its peer.
func (r *Registry) Add(clientID string, conn net.Conn, peer uint16, lwt *LastWill) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[clientID] = &Session{
		ClientID: clientID,
		Conn:     conn,
		Peer:     peer,
		LastWill: lwt,
	}
	r.byPeer[peer] = clientID
}

func (r *Registry) Has(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[clientID]
	return ok
}

func (r *Registry) HasPeer(peer uint16) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPeer[peer]
	return ok
}

// Get returns the session for a client id. The returned session shares the
// live conn; net.Conn writes are safe across goroutines so no handle
// duplication is needed.
func (r *Registry) Get(clientID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[clientID]
	return s, ok
}

// ClientIDByPeer resolves a peer port back to its client id.
func (r *Registry) ClientIDByPeer(peer uint16) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clientID, ok := r.byPeer[peer]
	if !ok {
		return "", &er.Err{Context: "Session", Message: er.ErrUnknownPeer}
	}
	return clientID, nil
}

// ReplaceConn rebinds an existing session to a new connection. The old peer
// entry is removed before the new one is inserted, so the inverse index
// never holds two peers for one session. The last will survives.
func (r *Registry) ReplaceConn(clientID string, conn net.Conn, peer uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return &er.Err{Context: "Session", Message: er.ErrSessionNotFound}
	}

	delete(r.byPeer, s.Peer)
	s.Conn = conn
	s.Peer = peer
	r.byPeer[peer] = clientID

	return nil
}

// OldPeer returns the peer currently bound to a session, used to drop the
// previous socket when a client reconnects.
func (r *Registry) OldPeer(clientID string) (uint16, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return 0, &er.Err{Context: "Session", Message: er.ErrSessionNotFound}
	}
	return s.Peer, nil
}

// Delete removes a session and its peer index entry.
func (r *Registry) Delete(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[clientID]
	if !ok {
		return
	}
	delete(r.byPeer, s.Peer)
	delete(r.sessions, clientID)
}
