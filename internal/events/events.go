// SPDX-License-Identifier: MIT

// Package events implements the observer port: a lazy, restartable-from-now
// sequence of state-change events. Historical events are never replayed, a
// new subscriber only sees events published after it subscribes.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelstack/playcore/internal/statetable"
)

// Event is one state-change notification, causally ordered per id (no
// compaction, no reordering).
type Event struct {
	EventID  string // unique per publish, lets a redis consumer dedup at-least-once delivery
	ID       string // descriptor id the event is about
	OldState statetable.State
	NewState statetable.State
	Reason   string
	At       time.Time
}

// Bus is a fan-out publisher. Each subscriber gets its own buffered
// channel; a slow subscriber drops events rather than blocking publishers,
// since the scheduler/pool must never stall on a UI that isn't reading.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int64]chan Event
	nextID  int64
	bufSize int
}

// New creates a Bus whose per-subscriber channels have the given buffer
// size (events are dropped, not blocked, once a subscriber's buffer fills).
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Bus{subs: make(map[int64]chan Event), bufSize: bufSize}
}

// Subscribe returns a channel of future events and a cancel func that
// unregisters it. The channel is closed once cancel is called.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufSize)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel
}

// Publish delivers e to every current subscriber, non-blocking. e.EventID
// is stamped here if the caller left it empty, so every subscriber
// (including the redis fan-out) observes the same id for a given event.
func (b *Bus) Publish(e Event) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber too slow; drop rather than block the core loop.
		}
	}
}

// SubscriberCount reports the current subscriber count, for telemetry.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
