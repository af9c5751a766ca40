package topic

import (
	"strings"
	"sync"

	"github.com/nslz/broquet/internal/packet"
)

// Subscription is one client attached to a topic with its granted QoS.
type Subscription struct {
	ClientID string
	QoS      packet.QoSLevel
}

// RetainedMessage is the most recent retained publish on a topic, replayed
// to new subscribers.
type RetainedMessage struct {
	Topic    string
	Payload  []byte
	PacketID uint16
	QoS      packet.QoSLevel
}

// Topic exists as soon as a subscribe or a publish first references it.
type Topic struct {
	Name          string
	Subscriptions []Subscription
	Retained      *RetainedMessage
}

// Registry maps topic names to their subscribers and retained message.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]*Topic
}

func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]*Topic)}
}

// Subscribe attaches the subscription to every topic the filter selects.
// Wildcard filters are expanded against the topics known at this instant;
// topics created by later publishes are not matched retroactively. A literal
// filter creates its topic on first reference.
func (r *Registry) Subscribe(filter string, sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case filter == "#" || filter == "/#":
		for name := range r.topics {
			r.subscribeTopic(name, sub)
		}

	case strings.Contains(filter, "#"):
		prefix, _, _ := strings.Cut(filter, "#")
		for name := range r.topics {
			if strings.HasPrefix(name, prefix) {
				r.subscribeTopic(name, sub)
			}
		}

	case strings.Contains(filter, "+"):
		prefix, suffix, _ := strings.Cut(filter, "+")
		for name := range r.topics {
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				r.subscribeTopic(name, sub)
			}
		}

	default:
		r.subscribeTopic(filter, sub)
	}
}

// subscribeTopic attaches a subscription to one concrete topic, creating it
// if needed. An existing subscription for the same client is removed first,
// so re-subscribing replaces the QoS instead of duplicating.
func (r *Registry) subscribeTopic(name string, sub Subscription) {
	t, ok := r.topics[name]
	if !ok {
		t = &Topic{Name: name}
		r.topics[name] = t
	}

	for i, existing := range t.Subscriptions {
		if existing.ClientID == sub.ClientID {
			t.Subscriptions = append(t.Subscriptions[:i], t.Subscriptions[i+1:]...)
			break
		}
	}
	t.Subscriptions = append(t.Subscriptions, sub)
}

// Unsubscribe removes the client's subscription from one topic.
func (r *Registry) Unsubscribe(name, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[name]
	if !ok {
		return
	}
	for i, sub := range t.Subscriptions {
		if sub.ClientID == clientID {
			t.Subscriptions = append(t.Subscriptions[:i], t.Subscriptions[i+1:]...)
			return
		}
	}
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[name]
	return ok
}

// Subscriptions returns a copy of the subscribers of a topic.
func (r *Registry) Subscriptions(name string) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[name]
	if !ok {
		return nil
	}
	subs := make([]Subscription, len(t.Subscriptions))
	copy(subs, t.Subscriptions)
	return subs
}

// ClientSubscriptions returns the names of every topic the client is
// subscribed to.
func (r *Registry) ClientSubscriptions(clientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, t := range r.topics {
		for _, sub := range t.Subscriptions {
			if sub.ClientID == clientID {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// Topics returns the names of all known topics.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	return names
}

// UpdateTopic records that a topic received a publish, creating it if
// needed. With the retain flag set the payload replaces the topic's
// retained message; an empty retained payload clears it.
func (r *Registry) UpdateTopic(p *packet.Publish) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[p.Topic]
	if !ok {
		t = &Topic{Name: p.Topic}
		r.topics[p.Topic] = t
	}

	if !p.Retain {
		return
	}
	if len(p.Payload) == 0 {
		t.Retained = nil
		return
	}

	payload := make([]byte, len(p.Payload))
	copy(payload, p.Payload)
	t.Retained = &RetainedMessage{
		Topic:    p.Topic,
		Payload:  payload,
		PacketID: p.PacketID,
		QoS:      p.QoS,
	}
}

// RetainedMessage returns the topic's current retained message, if any.
func (r *Registry) RetainedMessage(name string) (*RetainedMessage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.topics[name]
	if !ok || t.Retained == nil {
		return nil, false
	}
	return t.Retained, true
}
