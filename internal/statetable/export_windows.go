// SPDX-License-Identifier: MIT

//go:build windows

package statetable

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ExportSnapshotJSON writes the current table as a human-readable JSON
// dump at path. Windows doesn't support renameio's fsync-before-rename
// guarantee, so this falls back to temp-file-plus-rename, best-effort
// atomic but not crash-durable.
func ExportSnapshotJSON(t *Table, path string) error {
	records := t.Snapshot()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".playcore-state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot file: %w", err)
	}
	return nil
}
