// Package observability holds the Prometheus collectors shared by the pipeline and the HTTP service.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dggs_upstream_latency_seconds",
			Help:    "Latency of DGGS API calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"endpoint"},
	)

	zoneFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dggs_zone_fetch_total",
			Help: "Zone data fetches by outcome (ok, miss, error).",
		},
		[]string{"outcome"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dggs_cache_results_total",
			Help: "Zone response cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	exportedLayers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stac_exported_layers_total",
			Help: "Exported layers by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dggs_zone_invalidations_total",
			Help: "Zone update events by outcome (ok, stale, decode, invalid, resolve, purge).",
		},
		[]string{"outcome"},
	)

	archiveBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stac_archive_bytes",
			Help: "Size of the most recently built export archive.",
		},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, zoneFetchTotal, cacheResults,
		exportedLayers, invalidations, archiveBytes, buildInfo,
	}
}

// Init registers the collectors with reg. Collectors are always usable; registration only
// controls exposure, so a disabled or nil registerer is a no-op.
func Init(reg prometheus.Registerer, enabled bool) error {
	if !enabled || reg == nil {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(endpoint string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(endpoint).Observe(durationSeconds)
}

// zone fetch outcomes
const (
	ZoneOK    = "ok"
	ZoneMiss  = "miss"
	ZoneError = "error"
)

func IncZoneFetch(outcome string) {
	zoneFetchTotal.WithLabelValues(outcome).Inc()
}

func IncCacheResult(outcome string) {
	cacheResults.WithLabelValues(outcome).Inc()
}

func IncExportedLayer(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	exportedLayers.WithLabelValues(kind, outcome).Inc()
}

func IncInvalidation(outcome string) {
	invalidations.WithLabelValues(outcome).Inc()
}

func SetArchiveBytes(n int64) {
	archiveBytes.Set(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
