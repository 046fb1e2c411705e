// Package orchestrator implements the request orchestrator (spec.md §4.8):
// it validates inputs, allocates a workspace, resolves dependencies, runs
// the sandbox, merges debug telemetry, reclaims the workspace, and scrubs
// error stacks before they leave the process.
package orchestrator

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"codeforge/internal/apperr"
	"codeforge/internal/depcache"
	"codeforge/internal/depscan"
	"codeforge/internal/logging"
	"codeforge/internal/metrics"
	"codeforge/internal/model"
	"codeforge/internal/resolver"
	"codeforge/internal/sandbox"
	"codeforge/internal/sizefmt"
	"codeforge/internal/workspace"
)

// Orchestrator wires every request-path component into the end-to-end
// pipeline: validate -> allocate -> resolve -> execute -> reclaim. Reclaim
// runs when Execute returns, so the workspace is already removed before the
// caller writes the response.
type Orchestrator struct {
	cache            *depcache.Manager
	resolver         *resolver.Resolver
	allocator        *workspace.Allocator
	runner           *sandbox.Runner
	defaultTimeoutMs int64
	retentionKeep    int
}

// New constructs an Orchestrator from its component dependencies.
func New(cache *depcache.Manager, res *resolver.Resolver, allocator *workspace.Allocator, runner *sandbox.Runner, defaultTimeoutMs int64, retentionKeep int) *Orchestrator {
	return &Orchestrator{
		cache:            cache,
		resolver:         res,
		allocator:        allocator,
		runner:           runner,
		defaultTimeoutMs: defaultTimeoutMs,
		retentionKeep:    retentionKeep,
	}
}

// Validate checks the request against the required fields (spec.md §6: 400
// if code or cacheKey is missing).
func Validate(req model.Request) error {
	if strings.TrimSpace(req.Code) == "" {
		return apperr.New(apperr.BadRequest, "code is required")
	}
	if strings.TrimSpace(req.CacheKey) == "" {
		return apperr.New(apperr.BadRequest, "cacheKey is required")
	}
	return nil
}

// Telemetry carries per-request timing and cache-outcome data out of Execute
// for callers that persist it (the audit log) without re-deriving it from
// the client-facing model.Result.
type Telemetry struct {
	UsedCache   bool
	InstallMs   int64
	ExecutionMs int64
}

// Execute runs the full request pipeline and always returns a model.Result
// (even on failure, per spec.md §7: dependency and execution failures are
// client-facing results, not server faults).
func (o *Orchestrator) Execute(ctx context.Context, req model.Request) (model.Result, Telemetry, error) {
	log := logging.Get(logging.CategoryRequest)

	if err := Validate(req); err != nil {
		return model.Result{}, Telemetry{}, err
	}

	startTime := time.Now()

	ws, err := o.allocator.Allocate()
	if err != nil {
		return model.Result{}, Telemetry{}, apperr.Wrap(apperr.Internal, "workspace allocation failed", err)
	}

	reclaim := func() {
		if o.retentionKeep > 0 {
			return // allocator already enforces count-based retention on the next Allocate
		}
		if err := o.allocator.Reclaim(ws); err != nil {
			log.Warn("reclaiming workspace %s failed: %v", ws, err)
		}
	}
	defer reclaim()

	deps := depscan.Scan(req.Code)

	installStart := time.Now()
	resolveResult, err := o.resolver.Resolve(ctx, deps, ws, req.CacheKey, req.Options.ForceUpdate)
	installElapsed := time.Since(installStart)
	metrics.ObserveCache(resolveResult.UsedCache)
	metrics.ObserveInstallDuration(installElapsed)
	telemetry := Telemetry{UsedCache: resolveResult.UsedCache, InstallMs: installElapsed.Milliseconds()}
	if err != nil {
		result := model.Result{Success: false, Error: err.Error(), Console: []model.ConsoleEntry{}}
		if req.Options.Debug {
			result.Debug = o.debugPayload(req, startTime, installElapsed, 0, resolveResult, nil)
		}
		log.Warn("dependency resolution failed for cacheKey=%s: %v", req.CacheKey, err)
		return result, telemetry, nil
	}

	runResult, err := o.runner.Run(ctx, ws, req.Code, req.Items, req.Options.TimeoutMs)
	if err != nil {
		return model.Result{}, telemetry, apperr.Wrap(apperr.Internal, "sandbox execution failed", err)
	}
	metrics.ObserveExecutionDuration(time.Duration(runResult.ElapsedMs) * time.Millisecond)
	telemetry.ExecutionMs = runResult.ElapsedMs

	result := runResult.Result
	if !result.Success && result.Stack != "" {
		result.Stack = scrubStack(result.Stack, ws)
	}

	if req.Options.Debug {
		result.Debug = o.debugPayload(req, startTime, installElapsed, runResult.ElapsedMs, resolveResult, runResult.ResourceUsage)
	}

	log.Info("request cacheKey=%s completed success=%v usedCache=%v installMs=%d execMs=%d",
		req.CacheKey, result.Success, resolveResult.UsedCache, installElapsed.Milliseconds(), runResult.ElapsedMs)

	return result, telemetry, nil
}

func (o *Orchestrator) debugPayload(req model.Request, startTime time.Time, installElapsed time.Duration, execMs int64, resolveResult resolver.Result, usage *model.ResourceUsage) *model.DebugPayload {
	entry, _ := o.cache.EntryInfo(req.CacheKey)

	var totalSize int64
	if entries, err := o.cache.List(); err == nil {
		for _, e := range entries {
			totalSize += e.Size
		}
	}

	return &model.DebugPayload{
		Server: model.ServerDebug{NodeVersion: nodeVersion()},
		Cache: model.CacheDebug{
			UsedCache:             resolveResult.UsedCache,
			CacheKey:              req.CacheKey,
			CurrentCacheSize:      entry.Size,
			CurrentCacheSizeHuman: formatSize(entry.Size),
			TotalCacheSize:        totalSize,
			TotalCacheSizeHuman:   formatSize(totalSize),
		},
		Execution: model.ExecutionDebug{
			StartTime:               startTime,
			InstalledDependencies:   resolveResult.Versions,
			DependencyInstallTimeMs: installElapsed.Milliseconds(),
			TotalResponseTimeMs:     time.Since(startTime).Milliseconds(),
			ExecutionTimeMs:         execMs,
			ResourceUsage:           usage,
		},
	}
}

func formatSize(bytes int64) string { return sizefmt.Format(bytes) }

var (
	nodeVersionOnce   sync.Once
	nodeVersionString string
)

// nodeVersion reports the guest node interpreter's version (SPEC_FULL.md
// §4.8 server.nodeVersion), not the Go runtime's. Shelled out once per
// process and cached; "unknown" if node isn't on PATH.
func nodeVersion() string {
	nodeVersionOnce.Do(func() {
		out, err := exec.Command("node", "--version").Output()
		if err != nil {
			nodeVersionString = "unknown"
			return
		}
		nodeVersionString = strings.TrimSpace(string(out))
	})
	return nodeVersionString
}
