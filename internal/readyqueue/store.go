// SPDX-License-Identifier: MIT

package readyqueue

import (
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/reelstack/playcore/internal/descriptor"
)

// DurableStore mirrors a Queue's contents into an embedded Badger database
// so a relaunching UI can render the last-known-good feed window before the
// first network ingest completes. It is a cache of facts the ingestion
// port will re-derive anyway, losing this file costs one cold start's
// worth of preload latency, nothing more. It never stores handles or media
// bytes, only descriptor metadata.
type DurableStore struct {
	db *badger.DB
}

// OpenDurableStore opens (creating if absent) a Badger database at dir.
func OpenDurableStore(dir string) (*DurableStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DurableStore{db: db}, nil
}

// Close releases the underlying database.
func (s *DurableStore) Close() error {
	return s.db.Close()
}

// Save persists the current queue order, overwriting any prior snapshot.
func (s *DurableStore) Save(q *Queue) error {
	snap := q.Snapshot()
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("ready_queue_snapshot"), payload)
	})
}

// Load reads the last-persisted queue order, returning (nil, nil) if no
// snapshot exists yet (a fresh install or a pruned cache directory).
func (s *DurableStore) Load() ([]descriptor.Descriptor, error) {
	var out []descriptor.Descriptor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("ready_queue_snapshot"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
