// SPDX-License-Identifier: MIT

// Package coordinator implements the playback coordinator: it owns the
// identity of the single currently-playing descriptor and serializes every
// play/pause transition so two ids are never playing at once.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/metrics"
	"github.com/reelstack/playcore/internal/readyqueue"
	"github.com/reelstack/playcore/internal/registry"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/reelstack/playcore/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// settleDelay is the pause-before-advance grace period applied by
// OnCompleted, giving the outgoing handle's Pause call time to land before
// the next one starts Play.
const settleDelay = 100 * time.Millisecond

// HandleSource resolves a live handle by id. Satisfied by *pool.Pool.
type HandleSource interface {
	Get(id string) (handle.Handle, bool)
	SetActive(id string)
}

// Coordinator serializes focus changes and completion/error callbacks
// against a single active id, so the "exactly one id plays at a time"
// invariant always holds regardless of caller concurrency.
type Coordinator struct {
	mu       sync.Mutex
	activeID string

	pool     HandleSource
	table    *statetable.Table
	queue    *readyqueue.Queue
	registry *registry.Registry
	bus      *events.Bus
	holder   *config.Holder
	logger   zerolog.Logger
}

// New builds a Coordinator.
func New(pool HandleSource, table *statetable.Table, queue *readyqueue.Queue, reg *registry.Registry, bus *events.Bus, holder *config.Holder, logger zerolog.Logger) *Coordinator {
	return &Coordinator{pool: pool, table: table, queue: queue, registry: reg, bus: bus, holder: holder, logger: logger}
}

// ActiveID returns the currently-focused id, or "" if nothing is playing.
func (c *Coordinator) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// Focus makes id the single active, playing descriptor. If id is already
// the active id, Focus refreshes its last-used time, seeks it back to zero
// when seek-on-refocus is enabled, and plays it again if it was paused.
// Otherwise it pauses every other registered handle and plays id. Focus
// returns ErrNoHandle if the pool holds no handle for id; a handle that is
// still initializing makes Focus return that handle's Play error instead.
func (c *Coordinator) Focus(ctx context.Context, id string) error {
	ctx, span := tracing.Tracer("playcore/coordinator").Start(ctx, "coordinator.focus",
		trace.WithAttributes(attribute.String("descriptor.id", id)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.pool.Get(id)
	if !ok {
		span.RecordError(ErrNoHandle)
		return ErrNoHandle
	}

	prev := c.activeID
	if prev == id {
		c.table.Touch(id)
		if c.holder.Get().SeekOnRefocus {
			_ = h.Seek(ctx, 0)
		}
		if !h.Status().Playing {
			if err := h.Play(ctx); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "play failed")
				return err
			}
		}
		return nil
	}

	c.registry.PauseAllExcept(ctx, id)

	if err := h.Play(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "play failed")
		return err
	}
	c.activeID = id
	c.pool.SetActive(id)
	c.table.Touch(id)

	if prevState, ok := c.table.Get(prev); ok && prevState.State == statetable.Playing {
		_ = c.table.Transition(prev, statetable.Ready, nil)
	}
	_ = c.table.Transition(id, statetable.Playing, nil)

	metrics.FocusTransitionsTotal.Inc()
	c.bus.Publish(events.Event{ID: id, OldState: statetable.Ready, NewState: statetable.Playing, Reason: "focus", At: time.Now()})
	return nil
}

// PauseActive pauses the currently active id, if any, without changing
// which id is considered active, used for app-backgrounded transitions
// that should resume on the same item.
func (c *Coordinator) PauseActive(ctx context.Context) error {
	c.mu.Lock()
	id := c.activeID
	c.mu.Unlock()
	if id == "" {
		return nil
	}
	h, ok := c.pool.Get(id)
	if !ok {
		return nil
	}
	return h.Pause(ctx)
}

// PauseAll pauses every registered handle, clearing no state, used for
// app backgrounding where nothing should keep playing.
func (c *Coordinator) PauseAll(ctx context.Context) {
	c.registry.PauseAllExcept(ctx, "")
}

// OnCompleted advances playback to the descriptor immediately after id in
// ready-queue order, after a short settle delay, mirroring a natural
// swipe-forward. If there is no next entry, playback simply stops.
func (c *Coordinator) OnCompleted(ctx context.Context, id string) {
	next, ok := c.queue.Next(id)
	if !ok {
		return
	}
	time.Sleep(settleDelay)
	_ = c.Focus(ctx, next.ID)
}

// OnError marks id failed with reason and, if it was the active id, clears
// the active pointer so a future Focus call is required to resume
// playback on something else.
func (c *Coordinator) OnError(id, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeID == id {
		c.activeID = ""
	}
	_ = c.table.Transition(id, statetable.Failed, func(r *statetable.Record) {
		r.LastError = reason
	})
	c.bus.Publish(events.Event{ID: id, NewState: statetable.Failed, Reason: reason, At: time.Now()})
}
