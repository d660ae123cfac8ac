// SPDX-License-Identifier: MIT

// Package readyqueue implements the ordered, deduplicated sequence of
// descriptors proven playable. The UI binds to this queue,
// never to the raw feed, swiping index k maps to queue[k].
package readyqueue

import (
	"container/list"
	"sync"

	"github.com/reelstack/playcore/internal/descriptor"
)

// Queue is safe for concurrent use. Insertion and removal are O(1) via an
// id->element index over a doubly linked list.
type Queue struct {
	mu       sync.RWMutex
	order    *list.List
	elements map[string]*list.Element
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

// Append adds d to the end of the queue if its id is not already present.
// Order among existing survivors is preserved (insertion order, i.e.
// first-proved-playable first).
func (q *Queue) Append(d descriptor.Descriptor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.elements[d.ID]; ok {
		return
	}
	el := q.order.PushBack(d)
	q.elements[d.ID] = el
}

// Remove deletes d's entry, if present. Used on eviction/failure.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	el, ok := q.elements[id]
	if !ok {
		return
	}
	q.order.Remove(el)
	delete(q.elements, id)
}

// Contains reports whether id is currently a member.
func (q *Queue) Contains(id string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.elements[id]
	return ok
}

// Len returns the current member count.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.order.Len()
}

// Snapshot returns the descriptors in current order. The UI's page-view
// binds to the index of this slice directly.
func (q *Queue) Snapshot() []descriptor.Descriptor {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]descriptor.Descriptor, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(descriptor.Descriptor))
	}
	return out
}

// At returns the descriptor at index k of the filtered view, mirroring the
// UI's "swiping index k maps to ready_queue[k]" contract.
func (q *Queue) At(k int) (descriptor.Descriptor, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if k < 0 || k >= q.order.Len() {
		return descriptor.Descriptor{}, false
	}
	el := q.order.Front()
	for i := 0; i < k; i++ {
		el = el.Next()
	}
	return el.Value.(descriptor.Descriptor), true
}

// Next returns the descriptor immediately after id in queue order, used by
// the coordinator's on_completed advance-to-next logic.
func (q *Queue) Next(id string) (descriptor.Descriptor, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	el, ok := q.elements[id]
	if !ok || el.Next() == nil {
		return descriptor.Descriptor{}, false
	}
	return el.Next().Value.(descriptor.Descriptor), true
}
