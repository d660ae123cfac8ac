// SPDX-License-Identifier: MIT

package statetable

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo

	"github.com/rs/zerolog"
)

// SnapshotStore persists retry counters and last-used timestamps to a local
// SQLite file so a crash/restart doesn't reset retry backoff or LRU age to
// zero. This is metadata-only recovery: it never stores handles, media
// bytes, or anything the ingestion port wouldn't re-derive on its own.
type SnapshotStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSnapshotStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func OpenSnapshotStore(path string, logger zerolog.Logger) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	const schema = `
CREATE TABLE IF NOT EXISTS descriptor_state (
	id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	last_used_unix INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT ''
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SnapshotStore{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// FlushAll overwrites the snapshot with the given records. Called on a
// ticker by the manager, never synchronously from a state transition, disk
// I/O must never block the core lifecycle loop.
func (s *SnapshotStore) FlushAll(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM descriptor_state"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO descriptor_state (id, state, retry_count, last_used_unix, last_error)
VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, string(r.State), r.RetryCount, r.LastUsed.Unix(), r.LastError); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PersistedRecord is the subset of a Record recoverable from the snapshot.
// Callers rehydrate a fresh Table with these before the first ingest.
type PersistedRecord struct {
	ID         string
	RetryCount int
	LastUsed   time.Time
	LastError  string
}

// LoadAll reads every persisted record back. A read failure (corrupt
// schema, unreadable file) is returned to the caller; the manager logs it
// and starts with an empty table, since cold starts with no prior state are
// always valid.
func (s *SnapshotStore) LoadAll(ctx context.Context) ([]PersistedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, retry_count, last_used_unix, last_error FROM descriptor_state`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PersistedRecord
	for rows.Next() {
		var pr PersistedRecord
		var lastUsedUnix int64
		if err := rows.Scan(&pr.ID, &pr.RetryCount, &lastUsedUnix, &pr.LastError); err != nil {
			return nil, err
		}
		pr.LastUsed = time.Unix(lastUsedUnix, 0)
		out = append(out, pr)
	}
	return out, rows.Err()
}

// RunPeriodicFlush blocks, flushing snap() every interval until ctx is
// cancelled. Intended to be launched as its own goroutine by the manager.
func RunPeriodicFlush(ctx context.Context, store *SnapshotStore, interval time.Duration, snap func() []Record) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.FlushAll(ctx, snap()); err != nil {
				store.logger.Warn().Err(err).Msg("state table snapshot flush failed")
			}
		}
	}
}
