// Package dirsize recursively sums the on-disk size of a directory tree.
package dirsize

import (
	"os"
	"path/filepath"

	"codeforge/internal/logging"
)

// Sum walks root and returns the total size in bytes of every regular file
// beneath it. Directories are recursed into; symbolic links contribute zero
// (both to avoid cycles and to avoid double-counting a cache entry that a
// workspace merely symlinks into). Entries that disappear mid-walk or that
// can't be stat'd are logged and skipped rather than failing the whole walk.
func Sum(root string) (int64, error) {
	log := logging.Get(logging.CategoryCache)

	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				// The root itself must exist; anything else disappearing
				// mid-walk is a transient race with another request and is
				// swallowed below.
				return err
			}
			if os.IsNotExist(err) {
				log.Debug("skipping vanished entry: %s", path)
				return nil
			}
			log.Warn("unreadable entry, skipping: %s: %v", path, err)
			return nil
		}

		mode := info.Mode()
		if mode&os.ModeSymlink != 0 {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, nil
}

// Lstat-based walk avoids following symlinks: filepath.Walk already uses
// os.Lstat internally for each visited entry, so symlinks are reported with
// ModeSymlink set rather than being dereferenced and descended into.
