// SPDX-License-Identifier: MIT

package statetable

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotStore_FlushAllAndLoadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSnapshotStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	records := []Record{
		{ID: "a", State: Ready, RetryCount: 0, LastUsed: time.Unix(1700000000, 0), LastError: ""},
		{ID: "b", State: Failed, RetryCount: 2, LastUsed: time.Unix(1700000100, 0), LastError: "timeout"},
	}
	require.NoError(t, store.FlushAll(ctx, records))

	got, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := make(map[string]PersistedRecord, len(got))
	for _, r := range got {
		byID[r.ID] = r
	}
	assert.Equal(t, 0, byID["a"].RetryCount)
	assert.Equal(t, 2, byID["b"].RetryCount)
	assert.Equal(t, "timeout", byID["b"].LastError)
	assert.True(t, records[1].LastUsed.Equal(byID["b"].LastUsed))
}

func TestSnapshotStore_FlushAllReplacesPriorContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSnapshotStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.FlushAll(ctx, []Record{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, store.FlushAll(ctx, []Record{{ID: "c"}}))

	got, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestSnapshotStore_LoadAllOnEmptyDatabaseReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenSnapshotStore(path, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
