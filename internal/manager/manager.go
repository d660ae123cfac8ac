// SPDX-License-Identifier: MIT

// Package manager composes descriptor ingestion, the state table, the
// preload scheduler, the handle pool, the playback coordinator, the
// registry, and the ready queue into one cohesive runtime, analogous to a
// daemon's top-level wiring. It owns every background goroutine and can
// tear them all down cleanly via Close.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/coordinator"
	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/feed"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/metrics"
	"github.com/reelstack/playcore/internal/pool"
	"github.com/reelstack/playcore/internal/readyqueue"
	"github.com/reelstack/playcore/internal/registry"
	"github.com/reelstack/playcore/internal/scheduler"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Manager is the top-level composition root. The host application builds
// one per playback session (or keeps one alive for the process lifetime on
// platforms with a persistent feed).
type Manager struct {
	Catalog     *feed.Catalog
	Table       *statetable.Table
	Queue       *readyqueue.Queue
	Pool        *pool.Pool
	Scheduler   *scheduler.Scheduler
	Coordinator *coordinator.Coordinator
	Registry    *registry.Registry
	Bus         *events.Bus
	Sink        *feed.Sink
	holder      *config.Holder
	logger      zerolog.Logger

	snapshots    *statetable.SnapshotStore
	durableQueue *readyqueue.DurableStore

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// New wires a Manager over a Factory supplied by the host application (the
// real platform decoder constructor; tests and the demo CLI pass a
// handle.MockHandle-backed factory instead). If holder's Options configure
// SnapshotDBPath and/or ReadyQueueDBPath, New opens those restart-survival
// caches and restores from them before returning, so the first scheduler
// pass and the first UI render already see prior-session state.
func New(factory handle.Factory, holder *config.Holder, logger zerolog.Logger) *Manager {
	cat := feed.NewCatalog()
	table := statetable.New()
	queue := readyqueue.New()
	bus := events.New(256)
	reg := registry.New()

	p := pool.New(table, cat, factory, bus, reg, holder, logger)
	sched := scheduler.New(cat, table, queue, p, holder, logger)
	coord := coordinator.New(p, table, queue, reg, bus, holder, logger)
	sink := feed.NewSink(cat, table, queue, bus)

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		Catalog:     cat,
		Table:       table,
		Queue:       queue,
		Pool:        p,
		Scheduler:   sched,
		Coordinator: coord,
		Registry:    reg,
		Bus:         bus,
		Sink:        sink,
		holder:      holder,
		logger:      logger,
		cancel:      cancel,
	}

	m.openPersistence(ctx)

	m.wg.Add(1)
	go m.relayReadyTransitions(ctx)

	return m
}

// openPersistence opens and restores the optional C10 caches. The snapshot
// load and the ready-queue load touch unrelated databases, so they run
// concurrently via errgroup rather than one after the other; a failure in
// either is logged and treated as an empty cache, never fatal to startup.
func (m *Manager) openPersistence(ctx context.Context) {
	opts := m.holder.Get()

	if opts.SnapshotDBPath != "" {
		store, err := statetable.OpenSnapshotStore(opts.SnapshotDBPath, m.logger)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", opts.SnapshotDBPath).Msg("failed to open state snapshot store")
		} else {
			m.snapshots = store
		}
	}
	if opts.ReadyQueueDBPath != "" {
		store, err := readyqueue.OpenDurableStore(opts.ReadyQueueDBPath)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", opts.ReadyQueueDBPath).Msg("failed to open ready queue store")
		} else {
			m.durableQueue = store
		}
	}
	if m.snapshots == nil && m.durableQueue == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	if m.snapshots != nil {
		g.Go(func() error {
			records, err := m.snapshots.LoadAll(gctx)
			if err != nil {
				m.logger.Warn().Err(err).Msg("failed to load state snapshot")
				return nil
			}
			for _, r := range records {
				m.Table.Ensure(r.ID)
				m.Table.Hydrate(r.ID, r.RetryCount, r.LastUsed, r.LastError)
			}
			return nil
		})
	}
	if m.durableQueue != nil {
		g.Go(func() error {
			descriptors, err := m.durableQueue.Load()
			if err != nil {
				m.logger.Warn().Err(err).Msg("failed to load durable ready queue")
				return nil
			}
			for _, d := range descriptors {
				if m.Catalog.Known(d.ID) {
					continue
				}
				m.Sink.Ingest([]descriptor.Descriptor{d})
				m.Queue.Append(d)
			}
			return nil
		})
	}
	_ = g.Wait()

	if m.snapshots != nil {
		interval := opts.SnapshotFlushInterval
		if interval <= 0 {
			interval = 5 * time.Second
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			statetable.RunPeriodicFlush(ctx, m.snapshots, interval, m.Table.Snapshot)
		}()
	}
}

// relayReadyTransitions subscribes to the observer bus and maintains the
// ready queue membership as handles become Ready or leave the lifecycle,
// decoupling the pool from a direct readyqueue dependency. Registry
// membership is handled synchronously inside the pool itself, not here,
// so the coordinator never observes a Ready handle that hasn't been
// registered yet.
func (m *Manager) relayReadyTransitions(ctx context.Context) {
	defer m.wg.Done()
	ch, cancel := m.Bus.Subscribe(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.NewState {
			case statetable.Ready:
				if d, ok := m.Catalog.Get(ev.ID); ok {
					m.Queue.Append(d)
				}
			case statetable.Evicted, statetable.Failed:
				m.Queue.Remove(ev.ID)
			}
			metrics.ReadyQueueLength.Set(float64(m.Queue.Len()))
		}
	}
}

// Ingest hands a freshly-fetched batch of descriptors to the ingestion
// sink.
func (m *Manager) Ingest(items []descriptor.Descriptor) {
	m.Sink.Ingest(items)
}

// RunSchedulerPass runs one scheduler pass for the given focus feed index
// and network-class hint, updating the cache-target gauge afterward.
func (m *Manager) RunSchedulerPass(ctx context.Context, focusIndex int, class config.NetworkClass) []string {
	start := time.Now()
	issued := m.Scheduler.Pass(ctx, focusIndex, class)
	metrics.SchedulerPassDuration.Observe(time.Since(start).Seconds())
	metrics.CacheTarget.Set(float64(m.Scheduler.CacheTarget()))
	return issued
}

// Focus delegates to the coordinator.
func (m *Manager) Focus(ctx context.Context, id string) error {
	return m.Coordinator.Focus(ctx, id)
}

// PauseActive delegates to the coordinator.
func (m *Manager) PauseActive(ctx context.Context) error {
	return m.Coordinator.PauseActive(ctx)
}

// PauseAll delegates to the coordinator.
func (m *Manager) PauseAll(ctx context.Context) {
	m.Coordinator.PauseAll(ctx)
}

// ReclaimUnderMemoryPressure asks the pool to evict down to its
// memory-pressure floor.
func (m *Manager) ReclaimUnderMemoryPressure() {
	m.Pool.ReclaimUnderMemoryPressure()
}

// OnCompleted delegates to the coordinator.
func (m *Manager) OnCompleted(ctx context.Context, id string) {
	m.Coordinator.OnCompleted(ctx, id)
}

// OnError delegates to the coordinator.
func (m *Manager) OnError(id, reason string) {
	m.Coordinator.OnError(id, reason)
}

// Close shuts down every background goroutine the Manager started, flushing
// and closing the optional persistence stores on the way out. Safe to call
// more than once.
func (m *Manager) Close() {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cancel()
	m.wg.Wait()
	m.closePersistence()
}

// closePersistence flushes a final snapshot and closes both stores
// concurrently, since closing one database can never affect the other.
func (m *Manager) closePersistence() {
	if m.snapshots == nil && m.durableQueue == nil {
		return
	}
	var g errgroup.Group
	if m.snapshots != nil {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := m.snapshots.FlushAll(ctx, m.Table.Snapshot()); err != nil {
				m.logger.Warn().Err(err).Msg("final state snapshot flush failed")
			}
			return m.snapshots.Close()
		})
	}
	if m.durableQueue != nil {
		g.Go(func() error {
			if err := m.durableQueue.Save(m.Queue); err != nil {
				m.logger.Warn().Err(err).Msg("final ready queue save failed")
			}
			return m.durableQueue.Close()
		})
	}
	if err := g.Wait(); err != nil {
		m.logger.Warn().Err(err).Msg("error closing persistence stores")
	}
}
