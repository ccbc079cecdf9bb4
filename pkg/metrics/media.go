package metrics

import "github.com/prometheus/client_golang/prometheus"

// MediaMetrics tracks projection URL resolution, preview cache usage and asset cleanup.
type MediaMetrics struct {
	resolutions *prometheus.CounterVec
	cache       *prometheus.CounterVec
	cleanup     *prometheus.CounterVec
}

// NewMediaMetrics registers the media metrics on the provided registerer.
func NewMediaMetrics(reg prometheus.Registerer) *MediaMetrics {
	if reg == nil {
		return &MediaMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_url_resolutions_total",
		Help: "Media URL resolutions during view projection by outcome.",
	}, []string{"collection", "outcome"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_preview_cache_total",
		Help: "Preview URL cache lookups by result.",
	}, []string{"result"})
	cleanup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_cleanup_total",
		Help: "Best-effort asset deletions by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(resolutions, cache, cleanup)
	return &MediaMetrics{resolutions: resolutions, cache: cache, cleanup: cleanup}
}

// IncResolution counts one projection outcome ("resolved", "absent", "failed").
func (m *MediaMetrics) IncResolution(collection, outcome string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(collection), normalizeLabel(outcome)).Inc()
}

// IncCache counts a preview cache "hit" or "miss".
func (m *MediaMetrics) IncCache(result string) {
	if m == nil || m.cache == nil {
		return
	}
	m.cache.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCleanup counts a cleanup outcome ("deleted", "failed", "queued").
func (m *MediaMetrics) IncCleanup(outcome string) {
	if m == nil || m.cleanup == nil {
		return
	}
	m.cleanup.WithLabelValues(normalizeLabel(outcome)).Inc()
}
