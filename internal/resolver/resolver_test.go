package resolver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeforge/internal/depcache"
	"codeforge/internal/model"
)

func writeFakePackage(t *testing.T, nodeModules, name, version string) {
	t.Helper()
	dir := filepath.Join(nodeModules, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(map[string]string{"name": name, "version": version})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), data, 0o644))
}

func TestResolve_EmptyDependencySet(t *testing.T) {
	cacheRoot := t.TempDir()
	ws := t.TempDir()
	r := New(depcache.New(cacheRoot, 1024*1024))

	result, err := r.Resolve(t.Context(), model.DependencySet{}, ws, "key", false)
	require.NoError(t, err)
	require.False(t, result.UsedCache)
	require.Empty(t, result.Versions)
	require.NoDirExists(t, filepath.Join(ws, "node_modules"))
}

func TestReuseComplete_MissingNodeModules(t *testing.T) {
	cacheEntry := t.TempDir()
	ok, err := reuseComplete(cacheEntry, model.DependencySet{"left-pad": "latest"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReuseComplete_AllPresent(t *testing.T) {
	cacheEntry := t.TempDir()
	nodeModules := filepath.Join(cacheEntry, "node_modules")
	writeFakePackage(t, nodeModules, "left-pad", "1.3.0")

	ok, err := reuseComplete(cacheEntry, model.DependencySet{"left-pad": "latest"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReuseComplete_ScopedPackage(t *testing.T) {
	cacheEntry := t.TempDir()
	nodeModules := filepath.Join(cacheEntry, "node_modules")
	writeFakePackage(t, nodeModules, "@scope/pkg", "2.0.0")

	ok, err := reuseComplete(cacheEntry, model.DependencySet{"@scope/pkg": "latest"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReuseComplete_PartialMissing(t *testing.T) {
	cacheEntry := t.TempDir()
	nodeModules := filepath.Join(cacheEntry, "node_modules")
	writeFakePackage(t, nodeModules, "left-pad", "1.3.0")

	ok, err := reuseComplete(cacheEntry, model.DependencySet{"left-pad": "latest", "lodash": "latest"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMaterialize_SymlinksWhenPossible(t *testing.T) {
	cacheEntry := t.TempDir()
	nodeModules := filepath.Join(cacheEntry, "node_modules")
	writeFakePackage(t, nodeModules, "left-pad", "1.3.0")

	ws := t.TempDir()
	require.NoError(t, materialize(cacheEntry, ws))

	linked := filepath.Join(ws, "node_modules")
	info, err := os.Lstat(linked)
	require.NoError(t, err)
	if info.Mode()&os.ModeSymlink == 0 {
		t.Skip("symlinks unsupported in this environment; fallback copy path exercised instead")
	}

	data, err := os.ReadFile(filepath.Join(linked, "left-pad", "package.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "1.3.0")
}

func TestWriteManifest(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, writeManifest(ws, model.DependencySet{"left-pad": "latest"}))

	data, err := os.ReadFile(filepath.Join(ws, "package.json"))
	require.NoError(t, err)

	var manifest struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Equal(t, "latest", manifest.Dependencies["left-pad"])
}

func TestReadInstalledVersions(t *testing.T) {
	ws := t.TempDir()
	nodeModules := filepath.Join(ws, "node_modules")
	writeFakePackage(t, nodeModules, "left-pad", "1.3.0")

	versions, err := readInstalledVersions(nodeModules, model.DependencySet{"left-pad": "latest"})
	require.NoError(t, err)
	require.Equal(t, "1.3.0", versions["left-pad"])
}

// TestResolve_ConcurrentSameKeyBothWorkspacesPopulated exercises the
// singleflight coalescing path: two requests sharing a cacheKey but using
// distinct workspaces both miss the reuse check and race into Resolve
// concurrently. Only one install should run, but every caller's own
// workspace must end up with a populated node_modules (spec.md §5/§9: both
// requests succeed, not just the leader).
func TestResolve_ConcurrentSameKeyBothWorkspacesPopulated(t *testing.T) {
	var installCount int32
	entered := make(chan struct{})
	proceed := make(chan struct{})
	origInstaller := runPackageManager
	runPackageManager = func(ctx context.Context, workspaceDir string) error {
		atomic.AddInt32(&installCount, 1)
		close(entered) // signal the leader is mid-install before it finishes
		<-proceed      // hold it open until the follower has raced into group.Do
		writeFakePackage(t, filepath.Join(workspaceDir, "node_modules"), "left-pad", "1.3.0")
		return nil
	}
	defer func() { runPackageManager = origInstaller }()

	cacheRoot := t.TempDir()
	r := New(depcache.New(cacheRoot, 1<<30))
	deps := model.DependencySet{"left-pad": "latest"}

	wsA := t.TempDir()
	wsB := t.TempDir()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = r.Resolve(t.Context(), deps, wsA, "shared-key", false)
	}()

	<-entered // leader is now blocked inside the fake installer
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = r.Resolve(t.Context(), deps, wsB, "shared-key", false)
	}()

	// Give the follower a moment to reach group.Do and register on the
	// same key before letting the leader's install complete.
	time.Sleep(20 * time.Millisecond)
	close(proceed)

	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, "1.3.0", results[0].Versions["left-pad"])
	require.Equal(t, "1.3.0", results[1].Versions["left-pad"])

	requireInstalled := func(ws string) {
		data, err := os.ReadFile(filepath.Join(ws, "node_modules", "left-pad", "package.json"))
		require.NoErrorf(t, err, "workspace %s was never materialized", ws)
		require.Contains(t, string(data), "1.3.0")
	}
	requireInstalled(wsA)
	requireInstalled(wsB)

	require.Equal(t, int32(1), atomic.LoadInt32(&installCount), "singleflight should coalesce the concurrent install into one call")
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "f.txt"), []byte("hello"), 0o644))

	dst := filepath.Join(t.TempDir(), "dst")
	require.NoError(t, copyTree(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "sub", "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}
