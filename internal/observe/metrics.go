// Package observe provides the OpenTelemetry metric instruments for the
// sprite engine: cache traffic, pack load outcomes, and playback activity.
//
// Metrics are recorded through the OTel Metrics API. A Prometheus exporter
// bridge is available via [InitProvider] so an embedding host can scrape
// them from its own /metrics endpoint. Tests should build their own
// [Metrics] from a private MeterProvider to avoid cross-test pollution.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all engine metrics.
const meterName = "github.com/auziqni/learn-shimeji-sub000"

// Metrics holds every metric instrument the engine records into. All
// fields are safe for concurrent use; the OTel types synchronise
// themselves. A nil *Metrics is valid and records nothing, so callers
// never need to guard call sites.
type Metrics struct {
	// CacheHits counts sprite cache lookups served from memory.
	CacheHits metric.Int64Counter

	// CacheMisses counts lookups that had to touch the disk.
	CacheMisses metric.Int64Counter

	// CacheLoadErrors counts sprites that could not be read or decoded.
	CacheLoadErrors metric.Int64Counter

	// CacheEvictions counts entries pushed out by the size bounds.
	CacheEvictions metric.Int64Counter

	// CacheMemory tracks the estimated bytes held by the sprite cache.
	CacheMemory metric.Int64UpDownCounter

	// PacksLoaded counts pack validations. Use with attribute:
	//   attribute.String("status", "READY"|"PARTIAL"|"BROKEN")
	PacksLoaded metric.Int64Counter

	// FramesAdvanced counts playback frame transitions across all pets.
	FramesAdvanced metric.Int64Counter

	// ActivePlayers tracks the number of live playback instances.
	ActivePlayers metric.Int64UpDownCounter
}

// NewMetrics creates a fully initialised [Metrics] using the given
// MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CacheHits, err = m.Int64Counter("shimeji.cache.hits",
		metric.WithDescription("Sprite cache lookups served from memory."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("shimeji.cache.misses",
		metric.WithDescription("Sprite cache lookups that loaded from disk."),
	); err != nil {
		return nil, err
	}
	if met.CacheLoadErrors, err = m.Int64Counter("shimeji.cache.load_errors",
		metric.WithDescription("Sprite loads that failed to read or decode."),
	); err != nil {
		return nil, err
	}
	if met.CacheEvictions, err = m.Int64Counter("shimeji.cache.evictions",
		metric.WithDescription("Sprite cache entries evicted by size bounds."),
	); err != nil {
		return nil, err
	}
	if met.CacheMemory, err = m.Int64UpDownCounter("shimeji.cache.memory_bytes",
		metric.WithDescription("Estimated bytes held by the sprite cache."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.PacksLoaded, err = m.Int64Counter("shimeji.packs.loaded",
		metric.WithDescription("Pack validations by resulting status."),
	); err != nil {
		return nil, err
	}
	if met.FramesAdvanced, err = m.Int64Counter("shimeji.playback.frames_advanced",
		metric.WithDescription("Playback frame transitions across all pets."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayers, err = m.Int64UpDownCounter("shimeji.playback.active_players",
		metric.WithDescription("Live playback instances."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// AddCacheHit records a cache hit. Safe on a nil receiver.
func (m *Metrics) AddCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1)
}

// AddCacheMiss records a cache miss. Safe on a nil receiver.
func (m *Metrics) AddCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1)
}

// AddCacheLoadError records a failed sprite load. Safe on a nil receiver.
func (m *Metrics) AddCacheLoadError(ctx context.Context) {
	if m == nil {
		return
	}
	m.CacheLoadErrors.Add(ctx, 1)
}

// AddCacheEviction records n evicted entries. Safe on a nil receiver.
func (m *Metrics) AddCacheEviction(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.CacheEvictions.Add(ctx, n)
}

// AddCacheMemory adjusts the tracked byte estimate by delta, which may be
// negative. Safe on a nil receiver.
func (m *Metrics) AddCacheMemory(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.CacheMemory.Add(ctx, delta)
}

// AddPackLoaded records one pack validation outcome. Safe on a nil
// receiver.
func (m *Metrics) AddPackLoaded(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.PacksLoaded.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// AddFramesAdvanced records n playback frame transitions. Safe on a nil
// receiver.
func (m *Metrics) AddFramesAdvanced(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.FramesAdvanced.Add(ctx, n)
}

// PlayerStarted and PlayerStopped adjust the live player gauge. Safe on a
// nil receiver.
func (m *Metrics) PlayerStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActivePlayers.Add(ctx, 1)
}

func (m *Metrics) PlayerStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActivePlayers.Add(ctx, -1)
}
