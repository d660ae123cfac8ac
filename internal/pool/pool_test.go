// SPDX-License-Identifier: MIT

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/registry"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	index map[string]int
}

func (f *fakeCatalog) IndexOf(id string) int {
	i, ok := f.index[id]
	if !ok {
		return -1
	}
	return i
}

func (f *fakeCatalog) Get(id string) (descriptor.Descriptor, bool) {
	return descriptor.Descriptor{ID: id}, true
}

func newTestPoolWithOpts(t *testing.T, factory handle.Factory, mutate func(*config.Options)) (*Pool, *config.Holder) {
	t.Helper()
	opts := config.Default()
	opts.DisposalDefer = 10 * time.Millisecond
	opts.InitTimeout = 200 * time.Millisecond
	if mutate != nil {
		mutate(&opts)
	}
	holder := config.NewHolder(opts, "", zerolog.Nop())

	table := statetable.New()
	cat := &fakeCatalog{index: map[string]int{}}
	bus := events.New(8)
	reg := registry.New()

	return New(table, cat, factory, bus, reg, holder, zerolog.Nop()), holder
}

func newTestPool(t *testing.T, factory handle.Factory) (*Pool, *config.Holder) {
	t.Helper()
	return newTestPoolWithOpts(t, factory, nil)
}

func waitForState(t *testing.T, table *statetable.Table, id string, want statetable.State, timeout time.Duration) statetable.Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, ok := table.Get(id)
		if ok && rec.State == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("id %s never reached state %s", id, want)
	return statetable.Record{}
}

func TestPool_RequestInit_SucceedsAndTransitionsToReady(t *testing.T) {
	p, _ := newTestPool(t, func(url string) handle.Handle {
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
	})
	d := descriptor.Descriptor{ID: "v1", URL: "https://x/1.mp4", Kind: descriptor.KindStreamedVideo}

	p.RequestInit(context.Background(), d)
	waitForState(t, p.table, "v1", statetable.Ready, time.Second)

	h, ok := p.Get("v1")
	require.True(t, ok)
	assert.True(t, h.Status().Initialized)
}

func TestPool_RequestInit_FailureSchedulesRetryWithoutSelfRequeuing(t *testing.T) {
	attempt := 0
	p, _ := newTestPool(t, func(url string) handle.Handle {
		attempt++
		outcome := handle.MockOutcomeFail
		if attempt > 1 {
			outcome = handle.MockOutcomeSuccess
		}
		return &handle.MockHandle{URL: url, Outcome: outcome}
	})
	d := descriptor.Descriptor{ID: "v1", URL: "https://x/1.mp4", Kind: descriptor.KindStreamedVideo}

	p.RequestInit(context.Background(), d)
	rec := waitForState(t, p.table, "v1", statetable.Failed, time.Second)
	assert.Equal(t, 1, rec.RetryCount)
	assert.True(t, rec.RetryEligibleAt.After(time.Now().Add(-time.Second)), "RetryEligibleAt should be scheduled, not zero")

	// The pool never requeues v1 on its own; nothing should advance attempt
	// count without another caller (the scheduler, in production) deciding
	// the id is retry-eligible and calling RequestInit again.
	time.Sleep(50 * time.Millisecond)
	rec, ok := p.table.Get("v1")
	require.True(t, ok)
	assert.Equal(t, statetable.Failed, rec.State)
	assert.Equal(t, 1, attempt)

	p.RequestInit(context.Background(), d)
	waitForState(t, p.table, "v1", statetable.Ready, time.Second)
	assert.Equal(t, 2, attempt)
}

func TestPool_RequestInit_IsNoOpWhenAlreadyInitializing(t *testing.T) {
	started := make(chan struct{})
	p, _ := newTestPool(t, func(url string) handle.Handle {
		close(started)
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeHang}
	})
	d := descriptor.Descriptor{ID: "v1", URL: "https://x/1.mp4", Kind: descriptor.KindStreamedVideo}

	p.RequestInit(context.Background(), d)
	<-started
	p.RequestInit(context.Background(), d) // second call must be a no-op

	rec, ok := p.table.Get("v1")
	require.True(t, ok)
	assert.Equal(t, statetable.Initializing, rec.State)
}

func TestPool_EvictOutsideWindow_ProtectsActiveAndKeepSet(t *testing.T) {
	p, _ := newTestPool(t, func(url string) handle.Handle {
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
	})

	for _, id := range []string{"a", "b", "c"} {
		d := descriptor.Descriptor{ID: id, URL: "https://x/" + id + ".mp4", Kind: descriptor.KindStreamedVideo}
		p.RequestInit(context.Background(), d)
		waitForState(t, p.table, id, statetable.Ready, time.Second)
	}
	p.SetActive("a")

	p.EvictOutsideWindow(map[string]bool{"b": true})

	recA := waitForState(t, p.table, "a", statetable.Ready, 100*time.Millisecond)
	assert.Equal(t, statetable.Ready, recA.State)
	recB, _ := p.table.Get("b")
	assert.Equal(t, statetable.Ready, recB.State)
	recC := waitForState(t, p.table, "c", statetable.Evicted, time.Second)
	assert.Equal(t, statetable.Evicted, recC.State)
}

func TestPool_RequestInit_EnforcesMaxHandlesOnAdmission(t *testing.T) {
	p, _ := newTestPoolWithOpts(t, func(url string) handle.Handle {
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
	}, func(o *config.Options) {
		o.MaxHandles = 3
		o.MaxConcurrentInits = 10
	})

	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, id := range ids {
		d := descriptor.Descriptor{ID: id, URL: "https://x/" + id + ".mp4", Kind: descriptor.KindStreamedVideo}
		p.RequestInit(context.Background(), d)
		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) && p.LiveCount() > 3 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	assert.LessOrEqual(t, p.LiveCount(), 3, "pool must never exceed max_handles even under fast sequential admission")
}

func TestPool_RequestInit_NeverEvictsActiveIdForCapacity(t *testing.T) {
	p, _ := newTestPoolWithOpts(t, func(url string) handle.Handle {
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
	}, func(o *config.Options) { o.MaxHandles = 2 })

	for _, id := range []string{"a", "b"} {
		d := descriptor.Descriptor{ID: id, URL: "https://x/" + id + ".mp4", Kind: descriptor.KindStreamedVideo}
		p.RequestInit(context.Background(), d)
		waitForState(t, p.table, id, statetable.Ready, time.Second)
	}
	p.SetActive("a")

	d := descriptor.Descriptor{ID: "c", URL: "https://x/c.mp4", Kind: descriptor.KindStreamedVideo}
	p.RequestInit(context.Background(), d)
	waitForState(t, p.table, "c", statetable.Ready, time.Second)

	recA, ok := p.table.Get("a")
	require.True(t, ok)
	assert.Equal(t, statetable.Ready, recA.State, "active id must survive a capacity eviction")
}

func TestPool_ReclaimUnderMemoryPressure_EvictsDownToQuarterCapacity(t *testing.T) {
	p, _ := newTestPoolWithOpts(t, func(url string) handle.Handle {
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
	}, func(o *config.Options) { o.MaxHandles = 8 })

	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		d := descriptor.Descriptor{ID: id, URL: "https://x/" + id + ".mp4", Kind: descriptor.KindStreamedVideo}
		p.RequestInit(context.Background(), d)
		waitForState(t, p.table, id, statetable.Ready, time.Second)
	}

	p.ReclaimUnderMemoryPressure()

	assert.LessOrEqual(t, p.LiveCount(), 2)
}
