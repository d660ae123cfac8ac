// SPDX-License-Identifier: MIT

package feed

import (
	"time"

	"github.com/reelstack/playcore/internal/descriptor"
	"github.com/reelstack/playcore/internal/events"
	"github.com/reelstack/playcore/internal/handle"
	"github.com/reelstack/playcore/internal/readyqueue"
	"github.com/reelstack/playcore/internal/statetable"
)

// Sink implements the ingestion port: `ingest(descriptors) -> ()`.
// Animated-image descriptors join the Ready Queue immediately;
// streamed-video descriptors enter Unseen and wait for the scheduler.
// Ingesting an id that already exists is a no-op.
type Sink struct {
	Catalog *Catalog
	Table   *statetable.Table
	Queue   *readyqueue.Queue
	Bus     *events.Bus
}

// NewSink wires a Sink over the given components.
func NewSink(catalog *Catalog, table *statetable.Table, queue *readyqueue.Queue, bus *events.Bus) *Sink {
	return &Sink{Catalog: catalog, Table: table, Queue: queue, Bus: bus}
}

// Ingest appends new descriptors to the feed, preserving the order given.
func (s *Sink) Ingest(descriptors []descriptor.Descriptor) {
	for _, d := range descriptors {
		if s.Catalog.Known(d.ID) {
			continue // idempotent: already ingested
		}
		s.Catalog.add(d)
		s.Table.Ensure(d.ID)

		switch {
		case d.Kind == descriptor.KindAnimatedImage:
			// Joins the Ready Queue while the state table leaves it Unseen:
			// the retry-count/ready-queue invariants (state table invariant
			// 4, ready-queue property 5) are defined over streamed-video
			// ids only, animated images never enter that lifecycle at all.
			s.Queue.Append(d)
			if s.Bus != nil {
				s.Bus.Publish(events.Event{
					ID:       d.ID,
					OldState: statetable.Unseen,
					NewState: statetable.Ready,
					Reason:   "animated-image bypasses handle pool",
					At:       time.Now(),
				})
			}
		case !d.Playable():
			// Stays Unseen forever: legalNext only allows Unseen -> Queued,
			// and the scheduler's Playable() filter keeps it from ever
			// being queued. Recorded here so the reason isn't silent.
			if s.Bus != nil {
				s.Bus.Publish(events.Event{
					ID:     d.ID,
					Reason: handle.ErrUrlAbsent.Error(),
					At:     time.Now(),
				})
			}
		}
	}
}
