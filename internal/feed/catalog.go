// SPDX-License-Identifier: MIT

// Package feed implements the ingestion port and the ordered catalogue of
// descriptors the scheduler indexes by feed position. Feed ingestion's own
// transport (the event-stream source) is an external collaborator, Catalog
// only models what lands after that transport has decoded a batch of
// descriptors.
package feed

import (
	"sync"

	"github.com/reelstack/playcore/internal/descriptor"
)

// Catalog holds every descriptor ever ingested, in feed (arrival) order.
// The scheduler maps a focus index into this order; the UI never touches it
// directly, that's the Ready Queue's job.
type Catalog struct {
	mu       sync.RWMutex
	order    []string
	byID     map[string]descriptor.Descriptor
	indexOf  map[string]int
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]descriptor.Descriptor), indexOf: make(map[string]int)}
}

// Known reports whether id has already been ingested.
func (c *Catalog) Known(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[id]
	return ok
}

// add appends d to the catalogue. Caller must have already checked Known.
func (c *Catalog) add(d descriptor.Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[d.ID]; ok {
		return
	}
	c.byID[d.ID] = d
	c.indexOf[d.ID] = len(c.order)
	c.order = append(c.order, d.ID)
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (descriptor.Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.byID[id]
	return d, ok
}

// Len returns the total feed length.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// IDAt returns the id at feed index i.
func (c *Catalog) IDAt(i int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.order) {
		return "", false
	}
	return c.order[i], true
}

// IndexOf returns the feed index of id, or -1 if unknown.
func (c *Catalog) IndexOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i, ok := c.indexOf[id]; ok {
		return i
	}
	return -1
}
