// SPDX-License-Identifier: MIT

// Package pool implements the bounded handle pool and evictor: it owns the
// only live decoder handles in the process, bounds how many initializations
// run concurrently, and reclaims handles under memory pressure or once a
// descriptor scrolls out of the scheduler's window.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/metrics"
	"github.com/reelstack/playcore/internal/registry"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/reelstack/playcore/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// entry is a pool slot: the live handle (once ready) plus the bookkeeping
// the evictor's scoring function needs.
type entry struct {
	id     string
	h      handle.Handle
	cancel context.CancelFunc
}

// Pool owns a bounded set of handle.Handle instances keyed by descriptor id.
// It never decides *which* ids to initialize, that's the scheduler's job; it
// only executes RequestInit/EvictOutsideWindow calls against its own
// capacity and concurrency limits.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*entry

	table    *statetable.Table
	catalog  Catalog
	factory  handle.Factory
	bus      *events.Bus
	registry *registry.Registry
	holder   *config.Holder
	logger   zerolog.Logger

	sem       *semaphore.Weighted
	semWeight int64

	activeID string // coordinator-pinned id; never evicted
}

// Catalog is the subset of feed.Catalog the pool needs for distance-based
// eviction scoring.
type Catalog interface {
	IndexOf(id string) int
	Get(id string) (descriptor.Descriptor, bool)
}

// New builds a Pool. factory constructs real Handle instances; bus receives
// a state-change Event on every transition the pool drives; reg is
// registered into and unregistered from synchronously on every Ready,
// Failed, and Evicted transition so the coordinator never observes a
// window where a live handle is missing from the registry.
func New(table *statetable.Table, catalog Catalog, factory handle.Factory, bus *events.Bus, reg *registry.Registry, holder *config.Holder, logger zerolog.Logger) *Pool {
	opts := holder.Get()
	return &Pool{
		entries:   make(map[string]*entry),
		table:     table,
		catalog:   catalog,
		factory:   factory,
		bus:       bus,
		registry:  reg,
		holder:    holder,
		logger:    logger,
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrentInits)),
		semWeight: int64(opts.MaxConcurrentInits),
	}
}

// LiveCount returns the number of handles currently occupying a pool slot
// (any state other than absent), used by the scheduler's occupancy check.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// MaxHandles returns the configured pool capacity.
func (p *Pool) MaxHandles() int {
	return p.holder.Get().MaxHandles
}

// SetActive pins id as the currently-playing handle, exempting it from
// eviction. Called by the coordinator on every successful focus change.
func (p *Pool) SetActive(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeID = id
}

// Get returns the live handle for id, if any.
func (p *Pool) Get(id string) (handle.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok || e.h == nil {
		return nil, false
	}
	return e.h, true
}

// RequestInit asks the pool to bring id to Ready, respecting the
// max_concurrent_inits semaphore. It is fire-and-forget: state-table
// transitions and events.Bus publication are how callers observe the
// outcome. Safe to call repeatedly; a descriptor already in flight or
// further along its lifecycle is a no-op.
func (p *Pool) RequestInit(ctx context.Context, d descriptor.Descriptor) {
	p.table.Ensure(d.ID)
	rec, _ := p.table.Get(d.ID)
	switch rec.State {
	case statetable.Initializing, statetable.Ready, statetable.Playing:
		return
	}

	if err := p.table.Transition(d.ID, statetable.Queued, nil); err != nil && rec.State != statetable.Unseen {
		// Already past Queued via a race; nothing to do.
		if rec.State != statetable.Failed && rec.State != statetable.Evicted {
			return
		}
	}

	p.resizeSemaphoreIfNeeded()

	go p.initWorker(ctx, d)
}

// resizeSemaphoreIfNeeded swaps the concurrency limiter when a config
// reload changes max_concurrent_inits. In-flight acquisitions against the
// old semaphore are unaffected; only future RequestInit calls see the new
// weight.
func (p *Pool) resizeSemaphoreIfNeeded() {
	want := int64(p.holder.Get().MaxConcurrentInits)
	p.mu.Lock()
	defer p.mu.Unlock()
	if want != p.semWeight && want > 0 {
		p.sem = semaphore.NewWeighted(want)
		p.semWeight = want
	}
}

func (p *Pool) initWorker(ctx context.Context, d descriptor.Descriptor) {
	p.mu.Lock()
	sem := p.sem
	p.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer sem.Release(1)

	if err := p.table.Transition(d.ID, statetable.Initializing, nil); err != nil {
		return
	}
	metrics.HandlesLive.Inc()

	p.admitCapacity(d.ID)

	opts := p.holder.Get()
	h := p.factory(d.URL)

	initCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.entries[d.ID] = &entry{id: d.ID, h: h, cancel: cancel}
	p.mu.Unlock()

	spanCtx, span := tracing.Tracer("playcore/pool").Start(initCtx, "pool.initialize",
		trace.WithAttributes(attribute.String("descriptor.id", d.ID)))
	start := time.Now()
	err := handle.BoundedInitialize(spanCtx, h, opts.InitTimeout)
	metrics.InitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialize failed")
		span.End()
		metrics.InitAttemptsTotal.WithLabelValues("failure").Inc()
		p.onInitFailed(d, h, err)
		return
	}
	span.End()

	metrics.InitAttemptsTotal.WithLabelValues("success").Inc()
	h.SetLooping(true)
	// Register before the state-table transition: any caller that observes
	// the Ready state (by polling the table or subscribing to the bus) must
	// already be able to find the handle in the registry.
	p.registry.Register(d.ID, h)
	_ = p.table.Transition(d.ID, statetable.Ready, func(r *statetable.Record) {
		r.HasHandle = true
	})
	p.bus.Publish(events.Event{ID: d.ID, OldState: statetable.Initializing, NewState: statetable.Ready, At: time.Now()})
}

// onInitFailed transitions id to Failed, disposes the handle, and records
// the earliest time it may be retried. It never requeues the id itself: per
// §7, a failed id is only reconsidered once it has re-entered the
// scheduler's preload window, so the next scheduler pass (not a pool timer)
// decides whether and when to call RequestInit again.
func (p *Pool) onInitFailed(d descriptor.Descriptor, h handle.Handle, cause error) {
	h.Dispose()
	p.mu.Lock()
	delete(p.entries, d.ID)
	p.mu.Unlock()
	p.registry.Unregister(d.ID)
	metrics.HandlesLive.Dec()

	_ = p.table.Transition(d.ID, statetable.Failed, func(r *statetable.Record) {
		r.LastError = cause.Error()
		r.HasHandle = false
	})
	p.bus.Publish(events.Event{ID: d.ID, OldState: statetable.Initializing, NewState: statetable.Failed, Reason: cause.Error(), At: time.Now()})

	rec, ok := p.table.Get(d.ID)
	if !ok {
		return
	}
	opts := p.holder.Get()
	if rec.RetryCount > opts.MaxRetries {
		p.logger.Warn().Str("id", d.ID).Int("retry_count", rec.RetryCount).Msg("giving up after exceeding max retries")
		return
	}

	p.table.ScheduleRetry(d.ID, time.Now().Add(backoffDelay(rec.RetryCount)))
}

// backoffDelay returns an exponential backoff duration for the given retry
// attempt count, walking cenkalti/backoff's exponential curve attempt+1
// times rather than reimplementing the growth formula.
func backoffDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
