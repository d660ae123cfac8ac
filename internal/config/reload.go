// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe, hot-reloadable access to Options. The host
// app builds one at startup and hands the *Holder (not a raw Options) to
// the scheduler/pool so a retuned cache_target_sequence or eviction weight
// takes effect without a restart.
type Holder struct {
	snapshot atomic.Pointer[Options]
	path     string
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
}

// NewHolder creates a Holder seeded with initial.
func NewHolder(initial Options, path string, logger zerolog.Logger) *Holder {
	h := &Holder{path: path, logger: logger}
	h.snapshot.Store(&initial)
	return h
}

// Get returns the current Options (thread-safe, lock-free read).
func (h *Holder) Get() Options {
	return *h.snapshot.Load()
}

// Reload re-reads the config file and swaps the snapshot atomically. A
// parse failure leaves the previous snapshot in place and is returned to
// the caller/logged, a bad edit must never leave the manager unconfigured.
func (h *Holder) Reload() error {
	opts, err := Load(h.path)
	if err != nil {
		return fmt.Errorf("config: reload failed: %w", err)
	}
	h.snapshot.Store(&opts)
	h.logger.Info().Str("path", h.path).Msg("config reloaded")
	return nil
}

// Watch starts a debounced fsnotify watcher on the config file's directory
// (so atomic replace-by-rename editors are handled) and calls Reload on
// change, until ctx is cancelled. A no-op if path is empty.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	h.watcher = watcher

	dir := filepath.Dir(h.path)
	file := filepath.Base(h.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watch dir: %w", err)
	}

	go h.watchLoop(ctx, file)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, file string) {
	const debounce = 300 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			_ = h.watcher.Close()
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("automatic config reload failed")
				}
			})

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}
