package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/clubnet/billing-service/pkg/logger"
)

func TestRuntimeMetricsCollect(t *testing.T) {
	registry := prometheus.NewRegistry()
	rm := NewRuntimeMetrics(registry, logger.New(logger.ERROR))

	rm.Collect()
	rm.Collect()

	families, err := registry.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue() + mf.GetMetric()[0].GetCounter().GetValue()
	}

	require.Greater(t, values["billing_runtime_goroutines"], 0.0)
	require.Greater(t, values["billing_runtime_heap_alloc_bytes"], 0.0)
	// Счетчик GC растет на приращение, повторный Collect не удваивает накопленное
	require.GreaterOrEqual(t, values["billing_runtime_gc_runs_total"], 0.0)
	require.Contains(t, values, "billing_runtime_heap_sys_bytes")
}
