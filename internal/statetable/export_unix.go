// SPDX-License-Identifier: MIT

//go:build !windows

package statetable

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
)

// ExportSnapshotJSON writes the current table as a human-readable JSON
// dump at path, for operators inspecting a running process without a
// SQLite client to hand. The write is atomic: a crash mid-write leaves the
// previous dump intact rather than a half-written file.
func ExportSnapshotJSON(t *Table, path string) error {
	records := t.Snapshot()

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending snapshot file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}
