// Package events publishes domain signals such as completed sends.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event types
const (
	TypeBroadcastSent   = "broadcast.sent"
	TypeBroadcastFailed = "broadcast.failed"
	TypeUserSignedUp    = "user.signed_up"
	TypeUserVerified    = "user.verified"
	TypeVideoPublished  = "video.published"
)

// Event is a small JSON-serializable signal
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// Publisher delivers events to some destination
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Bus is an in-memory fanout. Publish never blocks and slow subscribers drop events.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: map[uint64]chan Event{}}
}

// Publish sends e to every subscriber that has room for it
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Subscribe returns a buffered channel of events and a function that unsubscribes
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Multi publishes to several publishers, returning the first error after trying all
type Multi []Publisher

// Publish forwards e to every publisher
func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
