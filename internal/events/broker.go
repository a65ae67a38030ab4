// Package events fans recolor progress out to server-sent event subscribers.
package events

import (
	"sync"
	"time"

	"furnicolor/internal/recolor"
)

// Event describes a step of a recolor task.
type Event struct {
	SessionID string           `json:"-"`
	TaskID    string           `json:"task_id"`
	Progress  recolor.Progress `json:"progress"`
	Done      bool             `json:"done,omitempty"`
	Degraded  bool             `json:"degraded,omitempty"`
	At        time.Time        `json:"at"`
}

// Broker manages SSE subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string
}

// NewBroker constructs a broker instance.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe returns a channel that receives events for sessionID.
func (b *Broker) Subscribe(sessionID string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	b.subscribers[ch] = sessionID
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel from the broker.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish delivers the event to the subscribers of its session.
func (b *Broker) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	b.mu.RLock()
	for ch, session := range b.subscribers {
		if session != evt.SessionID {
			continue
		}
		select {
		case ch <- evt:
		default:
			// drop if subscriber is slow
		}
	}
	b.mu.RUnlock()
}
