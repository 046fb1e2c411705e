// Package depcache implements the dependency cache manager (spec.md §4.4):
// enumeration, per-entry sizing, and LRU-by-mtime eviction with hysteresis.
package depcache

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"codeforge/internal/dirsize"
	"codeforge/internal/logging"
	"codeforge/internal/metrics"
)

// Entry describes one cache-root subdirectory, named by the client-supplied
// cache key.
type Entry struct {
	Key   string
	Path  string
	Size  int64
	MTime time.Time
}

// Manager owns a cache root directory and an eviction budget.
type Manager struct {
	root       string
	budgetByte int64
}

// New constructs a Manager rooted at root with the given byte budget.
func New(root string, budgetBytes int64) *Manager {
	return &Manager{root: root, budgetByte: budgetBytes}
}

// List enumerates every cache entry, sizing each concurrently (spec.md
// §4.4 list()).
func (m *Manager) List() ([]Entry, error) {
	log := logging.Get(logging.CategoryCache)

	children, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(children))
	for _, c := range children {
		if !c.IsDir() {
			continue
		}
		info, err := c.Info()
		if err != nil {
			log.Warn("skipping unreadable cache entry %s: %v", c.Name(), err)
			continue
		}
		entries = append(entries, Entry{
			Key:   c.Name(),
			Path:  filepath.Join(m.root, c.Name()),
			MTime: info.ModTime(),
		})
	}

	g := new(errgroup.Group)
	for i := range entries {
		i := i
		g.Go(func() error {
			size, err := dirsize.Sum(entries[i].Path)
			if err != nil {
				log.Warn("sizing cache entry %s failed: %v", entries[i].Key, err)
			}
			entries[i].Size = size
			return nil
		})
	}
	_ = g.Wait() // per-entry sizing errors are logged, never fatal to the listing

	return entries, nil
}

// EntryInfo returns the entry for key plus whether it exists.
func (m *Manager) EntryInfo(key string) (Entry, bool) {
	path := filepath.Join(m.root, key)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return Entry{}, false
	}
	size, _ := dirsize.Sum(path)
	return Entry{Key: key, Path: path, Size: size, MTime: info.ModTime()}, true
}

// Sweep does nothing while the total size is within budget. Otherwise it
// evicts the oldest entries by mtime until the bytes freed reach the
// overage (total minus budget) plus 20% of the budget, a hysteresis margin
// to avoid thrashing (spec.md §4.4).
func (m *Manager) Sweep() error {
	log := logging.Get(logging.CategoryCache)

	entries, err := m.List()
	if err != nil {
		return err
	}

	var total int64
	for _, e := range entries {
		total += e.Size
	}
	metrics.SetCacheSize(total)
	if total <= m.budgetByte {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].MTime.Before(entries[j].MTime) })

	target := (total - m.budgetByte) + (m.budgetByte * 20 / 100)
	var freed int64
	for _, e := range entries {
		if freed >= target {
			break
		}
		if err := os.RemoveAll(e.Path); err != nil {
			log.Warn("sweep: failed to remove %s: %v", e.Key, err)
			continue
		}
		log.Info("sweep: evicted %s (%d bytes, mtime %s)", e.Key, e.Size, e.MTime)
		freed += e.Size
		metrics.ObserveCacheEviction()
	}

	metrics.SetCacheSize(total - freed)
	return nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string { return m.root }
