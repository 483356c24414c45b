package progress

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-filebridge/backend/internal/models"
)

func key(path, sheet string) models.ProgressKey {
	return models.ProgressKey{FilePath: path, Sheet: sheet}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "last_row_info.json"), nil)
	snap, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_row_info.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	snap, err := NewStore(path, nil).Load()
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestStore_MergePreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_row_info.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"/a.xlsx|S1": "2024-01-01 00:00:00", "/b.xlsx|S1": "2024-01-01 00:00:00"}`), 0o644))
	s := NewStore(path, nil)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.Merge(context.Background(), models.Delta{{Key: key("/a.xlsx", "S1"), Time: ts}}))

	snap, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02 03:04:05", snap["/a.xlsx|S1"])
	assert.Equal(t, "2024-01-01 00:00:00", snap["/b.xlsx|S1"])

	got, ok := snap.Lookup(key("/a.xlsx", "S1"))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))
}

func TestStore_MergeEmptyDeltaDoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_row_info.json")
	require.NoError(t, NewStore(path, nil).Merge(context.Background(), nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_ConcurrentMergesKeepAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_row_info.json")
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewStore(path, nil)
			err := s.Merge(context.Background(), models.Delta{{Key: key("/f.xlsx", string(rune('A'+i))), Time: ts}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap, err := NewStore(path, nil).Load()
	require.NoError(t, err)
	assert.Len(t, snap, 8)
}

func TestSnapshot_LookupInvalidValue(t *testing.T) {
	snap := Snapshot{"/a.xlsx|S": "yesterday", "/b.xlsx|S": "2024-01-01 00:00:00"}

	_, ok := snap.Lookup(key("/a.xlsx", "S"))
	assert.False(t, ok)
	_, ok = snap.Lookup(key("/missing.xlsx", "S"))
	assert.False(t, ok)

	entries := snap.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/a.xlsx", entries[0].Key.FilePath)
	assert.False(t, entries[0].Valid)
	assert.True(t, entries[1].Valid)
}

func TestStore_NonStringValuesAreInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"/a.xlsx|S": 12}`), 0o644))

	snap, err := NewStore(path, nil).Load()
	require.NoError(t, err)
	_, ok := snap.Lookup(key("/a.xlsx", "S"))
	assert.False(t, ok)
}
