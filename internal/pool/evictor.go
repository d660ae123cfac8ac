// SPDX-License-Identifier: MIT

package pool

import (
	"sort"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/metrics"
	"github.com/reelstack/playcore/internal/statetable"
)

// candidate is a scored eviction candidate: higher score evicts first.
type candidate struct {
	id    string
	score float64
}

// score combines distance-from-focus and age-since-last-use: both weights
// are configurable, and a larger value means "more evictable". Distance is
// measured against activeID's feed position. activeID is passed in rather
// than read from p.activeID so callers can snapshot it once under p.mu and
// call score afterward without holding the lock.
func (p *Pool) score(id, activeID string, distanceWeight, ageWeight float64) float64 {
	rec, ok := p.table.Get(id)
	if !ok {
		return 0
	}

	idx := p.catalog.IndexOf(id)
	distance := 1e6 // no longer in the catalogue at all; evict first
	if idx >= 0 {
		focusIdx := p.catalog.IndexOf(activeID)
		if focusIdx < 0 {
			distance = 0
		} else {
			distance = float64(abs(idx - focusIdx))
		}
	}

	age := time.Since(rec.LastUsed).Seconds()
	return distanceWeight*distance + ageWeight*age
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// candidates snapshots every live entry id (and its score) except the
// active (pinned) id and whatever's in extraExclude, releasing p.mu before
// scoring so score's table/catalog reads never run while the pool lock is
// held.
func (p *Pool) candidates(opts config.Options, extraExclude map[string]bool) []candidate {
	p.mu.Lock()
	active := p.activeID
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		if id == active || extraExclude[id] {
			continue
		}
		ids = append(ids, id)
	}
	p.mu.Unlock()

	cands := make([]candidate, 0, len(ids))
	for _, id := range ids {
		cands = append(cands, candidate{id: id, score: p.score(id, active, opts.EvictionDistanceWeight, opts.EvictionAgeWeight)})
	}
	return cands
}

// EvictOutsideWindow disposes every handle whose id is not in keepIDs and
// is not the currently active (pinned) id, ordered by eviction score so the
// least useful handles go first if a caller later wants to cap batch size.
func (p *Pool) EvictOutsideWindow(keepIDs map[string]bool) {
	opts := p.holder.Get()
	cands := p.candidates(opts, keepIDs)

	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	for _, c := range cands {
		p.evict(c.id, "out of preload window")
	}
}

// admitCapacity enforces max_handles on every new admission (§4.4 trigger
// (a)): if the pool is already at capacity, it evicts the single
// worst-scoring non-active, non-incoming handle before the caller adds a
// new entry. incomingID is excluded from eviction since it isn't in
// p.entries yet; if every live entry is protected (active or == incomingID)
// the pool is over-admitted rather than deadlocked.
func (p *Pool) admitCapacity(incomingID string) {
	opts := p.holder.Get()
	if opts.MaxHandles <= 0 {
		return
	}

	p.mu.Lock()
	full := len(p.entries) >= opts.MaxHandles
	p.mu.Unlock()
	if !full {
		return
	}

	cands := p.candidates(opts, map[string]bool{incomingID: true})
	if len(cands) == 0 {
		return
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	p.evict(cands[0].id, "pool at capacity")
}

// ReclaimUnderMemoryPressure evicts handles down to roughly 25% of
// max_handles, starting with the worst-scoring (farthest/oldest)
// candidates, protecting only the active id.
func (p *Pool) ReclaimUnderMemoryPressure() {
	opts := p.holder.Get()
	target := opts.MaxHandles / 4
	if target < 1 {
		target = 1
	}

	for {
		p.mu.Lock()
		live := len(p.entries)
		p.mu.Unlock()
		if live <= target {
			return
		}

		cands := p.candidates(opts, nil)
		if len(cands) == 0 {
			return
		}
		sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
		p.evict(cands[0].id, "memory pressure")
	}
}

// evict transitions id to Evicted and disposes its handle after the
// configured deferral window, giving any in-flight play/pause call a grace
// period to finish before the decoder is torn down.
func (p *Pool) evict(id, reason string) {
	p.mu.Lock()
	e, ok := p.entries[id]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.entries, id)
	p.mu.Unlock()
	p.registry.Unregister(id)

	rec, ok := p.table.Get(id)
	if !ok {
		return
	}
	if rec.State != statetable.Ready && rec.State != statetable.Playing && rec.State != statetable.Initializing {
		return
	}

	if e.cancel != nil {
		e.cancel() // unblocks a still-in-flight Initialize
	}

	_ = p.table.Transition(id, statetable.Evicted, func(r *statetable.Record) {
		r.HasHandle = false
	})
	metrics.EvictionsTotal.WithLabelValues(reason).Inc()
	metrics.HandlesLive.Dec()

	opts := p.holder.Get()
	h := e.h
	time.AfterFunc(opts.DisposalDefer, func() {
		if h != nil {
			h.Dispose()
		}
	})

	p.bus.Publish(events.Event{ID: id, OldState: rec.State, NewState: statetable.Evicted, Reason: reason, At: time.Now()})
}
