// Package workspace allocates and prunes per-execution directories
// (spec.md §4.6).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeforge/internal/logging"
	"codeforge/internal/metrics"
)

// Allocator owns the executions root directory and a retention count.
type Allocator struct {
	root          string
	retentionKeep int
}

// New constructs an Allocator rooted at root, retaining at most keep
// workspaces after each allocation. keep <= 0 disables count-based
// retention; the caller is then responsible for synchronous reclaim
// (spec.md §4.6, §4.8).
func New(root string, keep int) *Allocator {
	return &Allocator{root: root, retentionKeep: keep}
}

// Allocate creates a new uniquely-named workspace directory and, if a
// retention budget is configured, prunes older workspaces beyond it.
func (a *Allocator) Allocate() (string, error) {
	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create root: %w", err)
	}

	name := fmt.Sprintf("exec-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:5])
	path := filepath.Join(a.root, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("workspace: allocate %s: %w", name, err)
	}

	metrics.ObserveWorkspaceAllocated()

	if a.retentionKeep > 0 {
		if err := a.prune(); err != nil {
			logging.Get(logging.CategoryWorkspace).Warn("prune after allocate failed: %v", err)
		}
	}

	return path, nil
}

// Reclaim deletes a workspace unconditionally, used when retention is
// disabled (spec.md §4.6 N<=0 path) or on error cleanup.
func (a *Allocator) Reclaim(path string) error {
	return os.RemoveAll(path)
}

// prune enumerates workspaces, sorts by the millisecond component parsed
// from each name, and deletes everything beyond the newest retentionKeep.
func (a *Allocator) prune() error {
	children, err := os.ReadDir(a.root)
	if err != nil {
		return err
	}

	type named struct {
		path string
		ms   int64
	}
	var workspaces []named
	for _, c := range children {
		if !c.IsDir() {
			continue
		}
		ms, ok := parseMs(c.Name())
		if !ok {
			continue
		}
		workspaces = append(workspaces, named{path: filepath.Join(a.root, c.Name()), ms: ms})
	}

	if len(workspaces) <= a.retentionKeep {
		return nil
	}

	sort.Slice(workspaces, func(i, j int) bool { return workspaces[i].ms < workspaces[j].ms })

	log := logging.Get(logging.CategoryWorkspace)
	cut := len(workspaces) - a.retentionKeep
	for _, w := range workspaces[:cut] {
		if err := os.RemoveAll(w.path); err != nil {
			log.Warn("prune: failed to remove %s: %v", w.path, err)
			continue
		}
		log.Debug("pruned workspace %s", w.path)
		metrics.ObserveWorkspacePruned()
	}
	return nil
}

// parseMs extracts the millisecond component from a "exec-<ms>-<rand>" name.
func parseMs(name string) (int64, bool) {
	parts := strings.SplitN(name, "-", 3)
	if len(parts) != 3 || parts[0] != "exec" {
		return 0, false
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}
