// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	o := Default()
	assert.Equal(t, 15, o.MaxHandles)
	assert.Equal(t, 3, o.MaxConcurrentInits)
	assert.Equal(t, 8*time.Second, o.InitTimeout)
	assert.Equal(t, []int{5, 7, 11, 17, 23}, o.CacheTargetSequence)
	assert.Equal(t, 200*time.Millisecond, o.DisposalDefer)
	assert.True(t, o.SeekOnRefocus)
	assert.Equal(t, 3, o.MaxRetries)
}

func TestConstrainedDefaults(t *testing.T) {
	o := ConstrainedDefaults()
	assert.Equal(t, 3, o.MaxHandles)
	assert.Equal(t, 1, o.MaxConcurrentInits)
	assert.Equal(t, 15*time.Second, o.InitTimeout)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	o, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), o)
}

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playcore.yaml")
	content := "maxHandles: 5\ninitTimeout: \"3s\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	o, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, o.MaxHandles)
	assert.Equal(t, 3*time.Second, o.InitTimeout)
	// Untouched fields retain their defaults.
	assert.Equal(t, 3, o.MaxConcurrentInits)
}

func TestHolder_ReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("maxHandles: 5\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)
	h := NewHolder(initial, path, noopLogger())
	assert.Equal(t, 5, h.Get().MaxHandles)

	require.NoError(t, os.WriteFile(path, []byte("maxHandles: 9\n"), 0o600))
	require.NoError(t, h.Reload())
	assert.Equal(t, 9, h.Get().MaxHandles)
}
