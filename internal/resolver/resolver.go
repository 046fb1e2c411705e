// Package resolver implements the dependency resolver (spec.md §4.5): it
// materialises a Dependency Set into a workspace's node_modules, reusing a
// cache entry keyed by the client-supplied cache key when possible and
// repopulating the cache entry otherwise.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"codeforge/internal/apperr"
	"codeforge/internal/depcache"
	"codeforge/internal/logging"
	"codeforge/internal/model"
	"codeforge/internal/procgroup"
)

// packageManagerBinary is the guest package manager invoked to install
// dependencies (SPEC_FULL.md decided Open Question: guest language is
// Node.js, package manager is npm).
const packageManagerBinary = "npm"

// Result is the outcome of a resolve operation.
type Result struct {
	Versions  map[string]string
	UsedCache bool
}

// Resolver materialises Dependency Sets into workspaces.
type Resolver struct {
	cache *depcache.Manager
	group singleflight.Group
}

// New constructs a Resolver backed by the given cache manager.
func New(cache *depcache.Manager) *Resolver {
	return &Resolver{cache: cache}
}

// Resolve runs the full materialisation algorithm for dependency set deps
// into workspace W, keyed by cacheKey (spec.md §4.5). When forceUpdate is
// true, the request always bypasses both the reuse check and the
// singleflight coalescing group and reinstalls from scratch into the
// workspace; the cache entry is neither swept nor rewritten in that case.
func (r *Resolver) Resolve(ctx context.Context, deps model.DependencySet, workspaceDir, cacheKey string, forceUpdate bool) (Result, error) {
	log := logging.Get(logging.CategoryResolver)

	if len(deps) == 0 {
		return Result{Versions: map[string]string{}}, nil
	}

	cacheEntryPath := filepath.Join(r.cache.Root(), cacheKey)

	if !forceUpdate {
		if ok, err := reuseComplete(cacheEntryPath, deps); err != nil {
			log.Warn("reuse completeness check errored for %s: %v", cacheKey, err)
		} else if ok {
			if err := materialize(cacheEntryPath, workspaceDir); err != nil {
				return Result{}, apperr.Wrap(apperr.DependencyInstallFailure, "reuse materialization failed", err)
			}
			versions, err := readInstalledVersions(filepath.Join(workspaceDir, "node_modules"), deps)
			if err != nil {
				return Result{}, apperr.Wrap(apperr.DependencyInstallFailure, "reading reused versions failed", err)
			}
			log.Info("cache hit for %s: reused %d packages", cacheKey, len(deps))
			return Result{Versions: versions, UsedCache: true}, nil
		}
	}

	// The singleflight closure captures workspaceDir, so only the caller
	// whose closure actually runs (the "leader") gets its workspace
	// populated; group.Do hands every other concurrent caller for this
	// cacheKey ("followers") the same Result without ever touching their
	// workspaceDir. installFresh always repopulates the cache entry from
	// its own workspace before returning (unless forceUpdate), so once
	// group.Do returns, a follower can materialize its own workspace from
	// that now-populated cache entry exactly like a reuse-cache hit does.
	install := func() (interface{}, error) {
		return r.installFresh(ctx, deps, workspaceDir, cacheEntryPath, forceUpdate)
	}

	var (
		v   interface{}
		err error
	)
	if forceUpdate {
		v, err = install()
	} else {
		v, err, _ = r.group.Do(cacheKey, install)
	}
	if err != nil {
		return Result{}, err
	}
	result := v.(Result)

	if !forceUpdate {
		if _, statErr := os.Stat(filepath.Join(workspaceDir, "node_modules")); statErr != nil {
			if err := materialize(cacheEntryPath, workspaceDir); err != nil {
				return Result{}, apperr.Wrap(apperr.DependencyInstallFailure, "follower materialization failed", err)
			}
			log.Info("materialized follower workspace for %s from repopulated cache entry", cacheKey)
		}
	}

	return result, nil
}

// installFresh writes the manifest, invokes the package manager, reads back
// installed versions, and (unless forceUpdate) repopulates the cache entry.
func (r *Resolver) installFresh(ctx context.Context, deps model.DependencySet, workspaceDir, cacheEntryPath string, forceUpdate bool) (Result, error) {
	log := logging.Get(logging.CategoryResolver)

	if err := writeManifest(workspaceDir, deps); err != nil {
		return Result{}, apperr.Wrap(apperr.Internal, "writing manifest failed", err)
	}

	if err := runPackageManager(ctx, workspaceDir); err != nil {
		return Result{}, apperr.Wrap(apperr.DependencyInstallFailure, "package manager install failed", err)
	}

	versions, err := readInstalledVersions(filepath.Join(workspaceDir, "node_modules"), deps)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.DependencyInstallFailure, "reading installed versions failed", err)
	}

	if !forceUpdate {
		if err := r.cache.Sweep(); err != nil {
			log.Warn("sweep before repopulate failed: %v", err)
		}
		if err := os.RemoveAll(cacheEntryPath); err != nil && !os.IsNotExist(err) {
			log.Warn("removing stale cache entry %s failed: %v", cacheEntryPath, err)
		}
		if err := copyTree(filepath.Join(workspaceDir, "node_modules"), filepath.Join(cacheEntryPath, "node_modules")); err != nil {
			log.Warn("repopulating cache entry %s failed: %v", cacheEntryPath, err)
		}
	}

	log.Info("installed %d packages into %s", len(deps), workspaceDir)
	return Result{Versions: versions, UsedCache: false}, nil
}

// reuseComplete verifies that every dependency in deps is present (with
// metadata) under cacheEntryPath/node_modules.
func reuseComplete(cacheEntryPath string, deps model.DependencySet) (bool, error) {
	nodeModules := filepath.Join(cacheEntryPath, "node_modules")
	if _, err := os.Stat(nodeModules); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	for name := range deps {
		pkgDir := filepath.Join(nodeModules, filepath.FromSlash(name))
		if strings.HasPrefix(name, "@") {
			scope, pkg, ok := strings.Cut(name, "/")
			if !ok {
				return false, nil
			}
			if _, err := os.Stat(filepath.Join(nodeModules, scope)); err != nil {
				return false, nil
			}
			pkgDir = filepath.Join(nodeModules, scope, pkg)
		}
		if _, err := os.Stat(filepath.Join(pkgDir, "package.json")); err != nil {
			return false, nil
		}
	}
	return true, nil
}

// materialize links (preferred) or copies cacheEntryPath/node_modules into
// workspaceDir/node_modules (spec.md §4.5 tie-break rule).
func materialize(cacheEntryPath, workspaceDir string) error {
	src := filepath.Join(cacheEntryPath, "node_modules")
	dst := filepath.Join(workspaceDir, "node_modules")

	if err := os.Symlink(src, dst); err == nil {
		return nil
	}
	return copyTree(src, dst)
}

// writeManifest writes a package.json naming deps at constraint "latest".
func writeManifest(workspaceDir string, deps model.DependencySet) error {
	manifest := struct {
		Name         string            `json:"name"`
		Version      string            `json:"version"`
		Private      bool              `json:"private"`
		Dependencies map[string]string `json:"dependencies"`
	}{
		Name:         "codeforge-execution",
		Version:      "0.0.0",
		Private:      true,
		Dependencies: map[string]string(deps),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workspaceDir, "package.json"), data, 0o644)
}

// runPackageManager is a package var so tests can substitute a fake
// installer instead of invoking the real npm binary.
var runPackageManager = runPackageManagerExec

// runPackageManagerExec invokes npm install in workspaceDir with its own
// process group so a later timeout can reliably reap the whole tree.
func runPackageManagerExec(ctx context.Context, workspaceDir string) error {
	cmd := exec.CommandContext(ctx, packageManagerBinary, "install", "--no-audit", "--no-fund", "--loglevel=error")
	cmd.Dir = workspaceDir
	procgroup.Setup(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd) }

	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s install: %w: %s", packageManagerBinary, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// readInstalledVersions reads each dependency's own package.json out of
// nodeModules and returns its "version" field.
func readInstalledVersions(nodeModules string, deps model.DependencySet) (map[string]string, error) {
	versions := make(map[string]string, len(deps))
	for name := range deps {
		pkgDir := filepath.Join(nodeModules, filepath.FromSlash(name))
		data, err := os.ReadFile(filepath.Join(pkgDir, "package.json"))
		if err != nil {
			return nil, fmt.Errorf("reading metadata for %s: %w", name, err)
		}
		var meta struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("parsing metadata for %s: %w", name, err)
		}
		versions[name] = meta.Version
	}
	return versions, nil
}

// copyTree recursively copies src to dst, used as the symlink fallback and
// for cache repopulation.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		}
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}
