// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/reelstack/playcore/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Catalog is the ordered feed index the scheduler walks a priority window
// over. Satisfied by *feed.Catalog.
type Catalog interface {
	Len() int
	IDAt(i int) (string, bool)
	Get(id string) (descriptor.Descriptor, bool)
}

// Table is the lifecycle lookup the scheduler filters candidates against.
// Satisfied by *statetable.Table.
type Table interface {
	Get(id string) (statetable.Record, bool)
	CountInState(states ...statetable.State) int
}

// ReadyQueue is the subset of readyqueue.Queue the scheduler consults when
// deciding whether to advance the cache target.
type ReadyQueue interface {
	Len() int
}

// Pool is the handle pool's scheduler-facing surface. Satisfied by
// *pool.Pool. Kept as an interface so scheduler logic is testable without a
// real decoder factory.
type Pool interface {
	RequestInit(ctx context.Context, d descriptor.Descriptor)
	EvictOutsideWindow(keepIDs map[string]bool)
	LiveCount() int
	MaxHandles() int
}

// Scheduler runs preload passes: given the current focus index and network
// class, it walks the priority window, filters out ids that don't need
// attention, and asks the pool to initialize the rest within the
// configured concurrency and cache-target budget.
type Scheduler struct {
	catalog Catalog
	table   Table
	queue   ReadyQueue
	pool    Pool
	holder  *config.Holder
	logger  zerolog.Logger

	mu            sync.Mutex
	cacheTarget   int
	limiters      map[config.NetworkClass]*rate.Limiter
}

// New builds a Scheduler. The initial cache target is the first entry of
// the configured sequence.
func New(catalog Catalog, table Table, queue ReadyQueue, pool Pool, holder *config.Holder, logger zerolog.Logger) *Scheduler {
	opts := holder.Get()
	initial := 0
	if len(opts.CacheTargetSequence) > 0 {
		initial = opts.CacheTargetSequence[0]
	}
	return &Scheduler{
		catalog:     catalog,
		table:       table,
		queue:       queue,
		pool:        pool,
		holder:      holder,
		logger:      logger,
		cacheTarget: initial,
		limiters:    make(map[config.NetworkClass]*rate.Limiter),
	}
}

// limiterFor returns (creating if needed) the per-network-class pacing
// limiter. Wifi gets the highest pass rate; constrained the lowest. Bursts
// are sized generously so a single Pass is never throttled mid-window.
func (s *Scheduler) limiterFor(class config.NetworkClass) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.limiters[class]; ok {
		return l
	}
	var r rate.Limit
	switch class {
	case config.NetworkWifi:
		r = rate.Every(0) // unrestricted
	case config.NetworkCellular:
		r = rate.Limit(2) // 2 passes/sec
	case config.NetworkConstrained, config.NetworkUnknown:
		r = rate.Limit(0.5) // 1 pass/2sec
	default:
		r = rate.Limit(2)
	}
	l := rate.NewLimiter(r, 8)
	s.limiters[class] = l
	return l
}

// Pass runs one scheduling cycle for the given focus index and network
// class, returning the ids for which a new initialization was requested.
// Out-of-window cleanup runs unconditionally, even when the pacing limiter
// declines new initializations.
func (s *Scheduler) Pass(ctx context.Context, focus int, class config.NetworkClass) []string {
	ctx, span := tracing.Tracer("playcore/scheduler").Start(ctx, "scheduler.pass",
		trace.WithAttributes(
			attribute.Int("focus_index", focus),
			attribute.String("network_class", string(class)),
		))
	defer span.End()

	opts := s.holder.Get()
	n := s.catalog.Len()
	if n == 0 || focus < 0 || focus >= n {
		return nil
	}

	ahead := opts.PreloadAheadByNetwork[class]
	if ahead == 0 {
		ahead = opts.PreloadAheadByNetwork[config.NetworkUnknown]
	}
	behind := opts.PreloadBehind

	lo, hi := windowBounds(focus, n, ahead)
	keep := make(map[string]bool, hi-lo+1)
	for i := lo; i <= hi; i++ {
		if id, ok := s.catalog.IDAt(i); ok {
			keep[id] = true
		}
	}
	s.pool.EvictOutsideWindow(keep)

	s.advanceCacheTargetIfDue(opts)

	limiter := s.limiterFor(class)
	if !limiter.Allow() {
		s.logger.Debug().Str("network_class", string(class)).Msg("scheduler pass throttled by network-class pacing")
		return nil
	}

	indices := priorityIndices(focus, n, ahead, behind)
	budget := s.initBudget(opts)
	if budget <= 0 {
		return nil
	}

	var issued []string
	for _, idx := range indices {
		if len(issued) >= budget {
			break
		}
		id, ok := s.catalog.IDAt(idx)
		if !ok {
			continue
		}
		d, ok := s.catalog.Get(id)
		if !ok || !d.Playable() {
			continue
		}
		rec, ok := s.table.Get(id)
		if ok {
			switch rec.State {
			case statetable.Initializing, statetable.Ready, statetable.Playing:
				continue
			case statetable.Failed:
				// Re-entering the window is what makes a failed id
				// retry-eligible again; a pool-driven timer never
				// requeues it on its own.
				if rec.RetryCount > opts.MaxRetries {
					continue
				}
				if time.Now().Before(rec.RetryEligibleAt) {
					continue
				}
			}
		}
		s.pool.RequestInit(ctx, d)
		issued = append(issued, id)
	}
	span.SetAttributes(attribute.Int("issued_count", len(issued)))
	return issued
}

// initBudget returns how many new initializations this pass may issue,
// bounded by max_concurrent_inits minus work already in flight, and by the
// current progressive cache target once pool occupancy is high.
func (s *Scheduler) initBudget(opts config.Options) int {
	inflight := s.table.CountInState(statetable.Initializing)
	budget := opts.MaxConcurrentInits - inflight
	if budget < 0 {
		budget = 0
	}

	occ := occupancyFraction(s.pool.LiveCount(), s.pool.MaxHandles())
	if occ >= highOccupancyThreshold {
		s.mu.Lock()
		target := s.cacheTarget
		s.mu.Unlock()
		remaining := target - s.queue.Len()
		if remaining < budget {
			if remaining < 0 {
				remaining = 0
			}
			budget = remaining
		}
	}
	return budget
}

// advanceCacheTargetIfDue raises the progressive cache target once the
// ready queue has caught up, unless pool occupancy is already high, per
// the resolved scale-up-vs-cleanup precedence, a near-full pool cleans up
// rather than scaling the target further.
func (s *Scheduler) advanceCacheTargetIfDue(opts config.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if occupancyFraction(s.pool.LiveCount(), s.pool.MaxHandles()) >= highOccupancyThreshold {
		return
	}
	if shouldAdvanceCacheTarget(s.queue.Len(), s.cacheTarget) {
		s.cacheTarget = nextCacheTarget(opts.CacheTargetSequence, s.cacheTarget, opts.CacheTargetCap)
	}
}

// CacheTarget returns the current progressive cache target, for telemetry.
func (s *Scheduler) CacheTarget() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheTarget
}
