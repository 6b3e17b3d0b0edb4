package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.AddCacheHit(ctx)
	m.AddCacheHit(ctx)
	m.AddCacheMiss(ctx)
	m.AddCacheLoadError(ctx)
	m.AddCacheMemory(ctx, 4096)
	m.AddPackLoaded(ctx, "READY")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			if data, ok := met.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				sums[met.Name] = total
			}
		}
	}

	tests := []struct {
		name     string
		expected int64
	}{
		{name: "shimeji.cache.hits", expected: 2},
		{name: "shimeji.cache.misses", expected: 1},
		{name: "shimeji.cache.load_errors", expected: 1},
		{name: "shimeji.cache.memory_bytes", expected: 4096},
		{name: "shimeji.packs.loaded", expected: 1},
	}
	for _, tt := range tests {
		if sums[tt.name] != tt.expected {
			t.Errorf("%s = %d, want %d", tt.name, sums[tt.name], tt.expected)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	// None of these may panic.
	m.AddCacheHit(ctx)
	m.AddCacheMiss(ctx)
	m.AddCacheLoadError(ctx)
	m.AddCacheEviction(ctx, 3)
	m.AddCacheMemory(ctx, -10)
	m.AddPackLoaded(ctx, "BROKEN")
	m.AddFramesAdvanced(ctx, 5)
	m.PlayerStarted(ctx)
	m.PlayerStopped(ctx)
}
