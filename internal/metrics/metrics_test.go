package metrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestInit_IsIdempotent(t *testing.T) {
	Init()
	Init() // must not panic on double registration
	require.NotNil(t, RequestsTotal)
}

func TestObserveRequest_IncrementsCounter(t *testing.T) {
	Init()

	ObserveRequest("success")

	var metric dto.Metric
	require.NoError(t, RequestsTotal.WithLabelValues("success").Write(&metric))
	require.GreaterOrEqual(t, metric.GetCounter().GetValue(), 1.0)
}

func TestObserveCache(t *testing.T) {
	Init()

	var hit, miss dto.Metric
	require.NoError(t, CacheHitsTotal.Write(&hit))
	require.NoError(t, CacheMissesTotal.Write(&miss))
	before := hit.GetCounter().GetValue()

	ObserveCache(true)

	var after dto.Metric
	require.NoError(t, CacheHitsTotal.Write(&after))
	require.Equal(t, before+1, after.GetCounter().GetValue())
}

func TestObserveInstallAndExecutionDuration(t *testing.T) {
	Init()

	var before, after dto.Metric
	require.NoError(t, InstallDuration.Write(&before))

	ObserveInstallDuration(250 * time.Millisecond)
	ObserveExecutionDuration(100 * time.Millisecond)

	require.NoError(t, InstallDuration.Write(&after))
	require.Equal(t, before.GetHistogram().GetSampleCount()+1, after.GetHistogram().GetSampleCount())
}

func TestSetCacheSize(t *testing.T) {
	Init()

	SetCacheSize(4096)

	var metric dto.Metric
	require.NoError(t, CacheSizeBytes.Write(&metric))
	require.Equal(t, float64(4096), metric.GetGauge().GetValue())
}

func TestObserveCacheEviction_IncrementsCounter(t *testing.T) {
	Init()

	var before, after dto.Metric
	require.NoError(t, CacheSweepEvictions.Write(&before))

	ObserveCacheEviction()

	require.NoError(t, CacheSweepEvictions.Write(&after))
	require.Equal(t, before.GetCounter().GetValue()+1, after.GetCounter().GetValue())
}

func TestObserveWorkspaceAllocatedAndPruned(t *testing.T) {
	Init()

	var beforeAlloc, afterAlloc, beforePrune, afterPrune dto.Metric
	require.NoError(t, WorkspacesAllocated.Write(&beforeAlloc))
	require.NoError(t, WorkspacesPruned.Write(&beforePrune))

	ObserveWorkspaceAllocated()
	ObserveWorkspacePruned()

	require.NoError(t, WorkspacesAllocated.Write(&afterAlloc))
	require.NoError(t, WorkspacesPruned.Write(&afterPrune))
	require.Equal(t, beforeAlloc.GetCounter().GetValue()+1, afterAlloc.GetCounter().GetValue())
	require.Equal(t, beforePrune.GetCounter().GetValue()+1, afterPrune.GetCounter().GetValue())
}

func TestObservers_NoopBeforeInit(t *testing.T) {
	registered = false
	defer func() { registered = true }()

	require.NotPanics(t, func() {
		ObserveRequest("success")
		ObserveCache(true)
		ObserveInstallDuration(time.Second)
		ObserveExecutionDuration(time.Second)
		ObserveCacheEviction()
		SetCacheSize(10)
		ObserveWorkspaceAllocated()
		ObserveWorkspacePruned()
	})
}
