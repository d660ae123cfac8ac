// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"testing"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/statetable"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func mockFactory(url string) handle.Handle {
	return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	opts := config.Default()
	opts.MaxConcurrentInits = 10
	opts.DisposalDefer = 10 * time.Millisecond
	holder := config.NewHolder(opts, "", zerolog.Nop())
	return New(mockFactory, holder, zerolog.Nop())
}

func TestManager_IngestAndScheduleBringsFocusWindowReady(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	items := make([]descriptor.Descriptor, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, descriptor.Descriptor{
			ID:   string(rune('a' + i)),
			URL:  "https://x/" + string(rune('a'+i)) + ".mp4",
			Kind: descriptor.KindStreamedVideo,
		})
	}
	m.Ingest(items)

	m.RunSchedulerPass(context.Background(), 10, config.NetworkWifi)

	waitUntil(t, time.Second, func() bool { return m.Queue.Len() > 0 })
}

func TestManager_FocusPlaysExactlyOneHandleAtATime(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	items := []descriptor.Descriptor{
		{ID: "a", URL: "https://x/a.mp4", Kind: descriptor.KindStreamedVideo},
		{ID: "b", URL: "https://x/b.mp4", Kind: descriptor.KindStreamedVideo},
	}
	m.Ingest(items)
	m.RunSchedulerPass(context.Background(), 0, config.NetworkWifi)

	waitUntil(t, time.Second, func() bool {
		rec, ok := m.Table.Get("a")
		return ok && rec.State == statetable.Ready
	})
	waitUntil(t, time.Second, func() bool {
		rec, ok := m.Table.Get("b")
		return ok && rec.State == statetable.Ready
	})

	require.NoError(t, m.Focus(context.Background(), "a"))
	require.NoError(t, m.Focus(context.Background(), "b"))

	ha, _ := m.Pool.Get("a")
	hb, _ := m.Pool.Get("b")
	assert.False(t, ha.Status().Playing)
	assert.True(t, hb.Status().Playing)
}

func TestManager_AnimatedImageBypassesPoolAndEntersReadyQueueDirectly(t *testing.T) {
	m := newTestManager(t)
	defer m.Close()

	m.Ingest([]descriptor.Descriptor{{ID: "img", Kind: descriptor.KindAnimatedImage}})

	waitUntil(t, time.Second, func() bool { return m.Queue.Contains("img") })
	_, ok := m.Pool.Get("img")
	assert.False(t, ok, "animated images never get a pool handle")
}

func TestManager_Close_StopsBackgroundGoroutinesWithoutLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := newTestManager(t)
	m.Ingest([]descriptor.Descriptor{{ID: "a", URL: "https://x/a.mp4", Kind: descriptor.KindStreamedVideo}})
	m.RunSchedulerPass(context.Background(), 0, config.NetworkWifi)
	waitUntil(t, time.Second, func() bool { return m.Queue.Len() > 0 })

	m.Close()
}

func TestManager_PersistenceSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	opts := config.Default()
	opts.MaxConcurrentInits = 10
	opts.DisposalDefer = 10 * time.Millisecond
	opts.SnapshotDBPath = dir + "/state.db"
	opts.ReadyQueueDBPath = dir + "/queue.badger"
	opts.SnapshotFlushInterval = 20 * time.Millisecond
	holder := config.NewHolder(opts, "", zerolog.Nop())

	m1 := New(mockFactory, holder, zerolog.Nop())
	m1.Ingest([]descriptor.Descriptor{{ID: "a", URL: "https://x/a.mp4", Kind: descriptor.KindStreamedVideo}})
	m1.RunSchedulerPass(context.Background(), 0, config.NetworkWifi)
	waitUntil(t, time.Second, func() bool { return m1.Queue.Len() > 0 })

	time.Sleep(50 * time.Millisecond) // let at least one periodic snapshot flush land
	m1.Close()

	m2 := New(mockFactory, holder, zerolog.Nop())
	defer m2.Close()

	assert.True(t, m2.Catalog.Known("a"), "restored descriptor should already be in the catalogue")
	assert.True(t, m2.Queue.Contains("a"), "restored ready queue entry should render immediately")

	_, ok := m2.Pool.Get("a")
	assert.False(t, ok, "a restored entry has no live handle until the pool re-initializes it")
}
