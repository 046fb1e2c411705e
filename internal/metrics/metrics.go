// Package metrics exposes Prometheus counters and histograms for the
// request pipeline (SPEC_FULL.md §C.3), following the once.Do-guarded
// package-level registration pattern used for ingestion metrics in the
// rest of the example pack.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	registered bool

	RequestsTotal       *prometheus.CounterVec
	ExecutionDuration   prometheus.Histogram
	InstallDuration     prometheus.Histogram
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheSweepEvictions prometheus.Counter
	CacheSizeBytes      prometheus.Gauge
	WorkspacesAllocated prometheus.Counter
	WorkspacesPruned    prometheus.Counter
)

var durationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Init registers every metric exactly once. Safe to call multiple times;
// only the first call has effect.
func Init() {
	once.Do(func() {
		requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeforge_requests_total",
			Help: "Total execution requests by outcome (success, execution_failure, internal). Dependency install failures count as execution_failure; requests rejected as bad requests are not counted.",
		}, []string{"outcome"})

		executionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeforge_execution_duration_seconds",
			Help:    "Wall-clock duration of sandboxed child execution.",
			Buckets: durationBuckets,
		})
		installDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeforge_dependency_install_duration_seconds",
			Help:    "Wall-clock duration of dependency resolution.",
			Buckets: durationBuckets,
		})

		cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeforge_cache_hits_total",
			Help: "Requests that reused an existing cache entry.",
		})
		cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeforge_cache_misses_total",
			Help: "Requests that repopulated a cache entry.",
		})
		cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeforge_cache_sweep_evictions_total",
			Help: "Cache entries removed by the sweeper.",
		})
		cacheSizeBytes := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeforge_cache_size_bytes",
			Help: "Total size of the dependency cache, last measured at sweep time.",
		})

		workspacesAllocated := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeforge_workspaces_allocated_total",
			Help: "Workspaces created.",
		})
		workspacesPruned := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeforge_workspaces_pruned_total",
			Help: "Workspaces removed by retention pruning.",
		})

		prometheus.MustRegister(
			requestsTotal, executionDuration, installDuration,
			cacheHits, cacheMisses, cacheEvictions, cacheSizeBytes,
			workspacesAllocated, workspacesPruned,
		)

		RequestsTotal = requestsTotal
		ExecutionDuration = executionDuration
		InstallDuration = installDuration
		CacheHitsTotal = cacheHits
		CacheMissesTotal = cacheMisses
		CacheSweepEvictions = cacheEvictions
		CacheSizeBytes = cacheSizeBytes
		WorkspacesAllocated = workspacesAllocated
		WorkspacesPruned = workspacesPruned
		registered = true
	})
}

// ObserveRequest records one completed request's outcome. A no-op until
// Init has run (METRICS_ENABLED=false disables collection entirely).
func ObserveRequest(outcome string) {
	if !registered {
		return
	}
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCache records a cache hit or miss.
func ObserveCache(usedCache bool) {
	if !registered {
		return
	}
	if usedCache {
		CacheHitsTotal.Inc()
	} else {
		CacheMissesTotal.Inc()
	}
}

// ObserveInstallDuration records the dependency-resolution wall-clock time.
func ObserveInstallDuration(d time.Duration) {
	if !registered {
		return
	}
	InstallDuration.Observe(d.Seconds())
}

// ObserveExecutionDuration records the sandboxed child's wall-clock time.
func ObserveExecutionDuration(d time.Duration) {
	if !registered {
		return
	}
	ExecutionDuration.Observe(d.Seconds())
}

// ObserveCacheEviction records one cache entry removed by the sweeper.
func ObserveCacheEviction() {
	if !registered {
		return
	}
	CacheSweepEvictions.Inc()
}

// SetCacheSize records the dependency cache's total size in bytes.
func SetCacheSize(bytes int64) {
	if !registered {
		return
	}
	CacheSizeBytes.Set(float64(bytes))
}

// ObserveWorkspaceAllocated records one workspace creation.
func ObserveWorkspaceAllocated() {
	if !registered {
		return
	}
	WorkspacesAllocated.Inc()
}

// ObserveWorkspacePruned records one workspace removed by retention pruning.
func ObserveWorkspacePruned() {
	if !registered {
		return
	}
	WorkspacesPruned.Inc()
}
