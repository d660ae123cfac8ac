// SPDX-License-Identifier: MIT

// Package registry implements the process-wide, non-owning index of live
// player handles. It never owns a handle's lifetime; the Handle Pool does,
// and the registry must tolerate entries whose handle has already been
// disposed out from under it.
package registry

import (
	"context"
	"sync"

	"github.com/reelstack/playcore/internal/handle"
)

// Registry is constructed once by the host and passed into the Coordinator
// and Pool explicitly, rather than reached via a package-level singleton,
// so tests can use a fresh instance per case instead of sharing hidden
// global state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]handle.Handle
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]handle.Handle)}
}

// Register adds h under id, replacing any prior entry for the same id.
func (r *Registry) Register(id string, h handle.Handle) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = h
}

// Unregister removes the entry for id, if present. A missing entry is not
// an error, Unregister is called defensively from several places.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Get returns the handle registered for id, if any.
func (r *Registry) Get(id string) (handle.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[id]
	return h, ok
}

// PauseAllExcept pauses every registered handle currently playing, except
// the one registered under exceptID (pass "" to pause everything). Never
// calls Dispose, used on app-backgrounded and route changes. A handle
// whose Status() reports it already paused/uninitialized is skipped rather
// than erroring, since "pause all but X" must never stall on one bad entry.
func (r *Registry) PauseAllExcept(ctx context.Context, exceptID string) {
	r.mu.RLock()
	snapshot := make(map[string]handle.Handle, len(r.entries))
	for id, h := range r.entries {
		snapshot[id] = h
	}
	r.mu.RUnlock()

	for id, h := range snapshot {
		if id == exceptID || h == nil {
			continue
		}
		if !h.Status().Playing {
			continue
		}
		_ = h.Pause(ctx)
	}
}

// Len reports the number of registered entries, for telemetry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Prune removes entries whose handle reports a terminal error, so a
// registry that is never explicitly unregistered from doesn't accumulate
// dead references forever. The manager does not call it.
func (r *Registry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, h := range r.entries {
		if h == nil || h.Status().HasError {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
