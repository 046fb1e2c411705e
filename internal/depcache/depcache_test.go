package depcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeEntry(t *testing.T, root, key string, bytes int, mtime time.Time) {
	t.Helper()
	dir := filepath.Join(root, key)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.bin"), make([]byte, bytes), 0o644))
	require.NoError(t, os.Chtimes(dir, mtime, mtime))
}

func TestList_EmptyRootReturnsNil(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "does-not-exist"), 1024)
	entries, err := m.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestList_SizesEachEntry(t *testing.T) {
	root := t.TempDir()
	writeEntry(t, root, "a", 10, time.Now())
	writeEntry(t, root, "b", 20, time.Now())

	m := New(root, 1024)
	entries, err := m.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sizes := map[string]int64{}
	for _, e := range entries {
		sizes[e.Key] = e.Size
	}
	require.EqualValues(t, 10, sizes["a"])
	require.EqualValues(t, 20, sizes["b"])
}

func TestEntryInfo_MissingKey(t *testing.T) {
	m := New(t.TempDir(), 1024)
	_, exists := m.EntryInfo("nope")
	require.False(t, exists)
}

func TestSweep_EvictsOldestUntilUnderBudget(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	writeEntry(t, root, "oldest", 100, now.Add(-3*time.Hour))
	writeEntry(t, root, "middle", 100, now.Add(-2*time.Hour))
	writeEntry(t, root, "newest", 100, now.Add(-1*time.Hour))

	// budget 100, total 300: sweep must free at least (300-100)+20 = 220 bytes.
	m := New(root, 100)
	require.NoError(t, m.Sweep())

	_, oldestExists := m.EntryInfo("oldest")
	_, middleExists := m.EntryInfo("middle")
	require.False(t, oldestExists)
	require.False(t, middleExists)

	entries, err := m.List()
	require.NoError(t, err)
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	require.LessOrEqual(t, total, int64(100))
}

func TestSweep_NoOpUnderBudget(t *testing.T) {
	root := t.TempDir()
	writeEntry(t, root, "a", 10, time.Now())

	m := New(root, 1024)
	require.NoError(t, m.Sweep())

	_, exists := m.EntryInfo("a")
	require.True(t, exists)
}
