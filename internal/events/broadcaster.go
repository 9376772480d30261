// Package events provides an SSE event broadcaster for index mutations.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fruitsalade/filesurf/internal/metrics"
	"github.com/fruitsalade/filesurf/internal/pathindex"
)

const (
	EventAdd    = "add"
	EventUpdate = "update"
	EventDelete = "delete"
)

// Event represents an index change event.
type Event struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	NodeType  string `json:"node_type,omitempty"`
	Revision  uint64 `json:"revision"`
	Timestamp int64  `json:"timestamp"`
}

// FromChange converts a store change into an event.
func FromChange(c pathindex.Change) Event {
	return Event{
		Type:     string(c.Op),
		Path:     c.Path,
		NodeType: string(c.Type),
		Revision: c.Revision,
	}
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		buffer:      64,
	}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(n))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(n))
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordEvent(event.Type)
}

// Attach publishes every change of store until the returned cancel is called.
func (b *Broadcaster) Attach(store *pathindex.Store) (cancel func()) {
	return store.Subscribe(func(c pathindex.Change) {
		b.Publish(FromChange(c))
	})
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
