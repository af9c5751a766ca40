package pending

import (
	"sync"

	"github.com/nslz/broquet/internal/packet"
)

// Message is a QoS 1 publish forwarded to a subscriber and not yet
// acknowledged. It is re-sent with the DUP flag until a PUBACK with the same
// packet id removes it.
type Message struct {
	Topic    string
	Payload  []byte
	PacketID uint16
	QoS      packet.QoSLevel
	Retain   bool
}

// FromPublish captures the forwarded publish for later retransmission.
func FromPublish(p *packet.Publish) Message {
	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)
	return Message{
		Topic:    p.Topic,
		Payload:  payload,
		PacketID: p.PacketID,
		QoS:      p.QoS,
		Retain:   p.Retain,
	}
}

// ToPublish rebuilds the wire packet. A retransmitted pending message is
// always a duplicate.
func (m Message) ToPublish() *packet.Publish {
	return &packet.Publish{
		DUP:      true,
		QoS:      m.QoS,
		Retain:   m.Retain,
		Topic:    m.Topic,
		PacketID: m.PacketID,
		Payload:  m.Payload,
	}
}

// Store queues unacknowledged messages per client id.
type Store struct {
	mu       sync.Mutex
	messages map[string][]Message
}

func NewStore() *Store {
	return &Store{messages: make(map[string][]Message)}
}

func (s *Store) Add(clientID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[clientID] = append(s.messages[clientID], msg)
}

// Remove drops the message with the given packet id from the client's
// queue. Missing entries are ignored.
func (s *Store) Remove(clientID string, packetID uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.messages[clientID]
	if !ok {
		return
	}
	for i, msg := range queue {
		if msg.PacketID == packetID {
			s.messages[clientID] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// Delete drops every pending message for a client.
func (s *Store) Delete(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, clientID)
}

// Snapshot returns a consistent copy of all queues, taken under the store
// lock, for the retransmitter to walk without holding it.
func (s *Store) Snapshot() map[string][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string][]Message, len(s.messages))
	for clientID, queue := range s.messages {
		copied := make([]Message, len(queue))
		copy(copied, queue)
		snapshot[clientID] = copied
	}
	return snapshot
}
