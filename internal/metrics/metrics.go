package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ReportsSubmittedTotal counts reports appended to the store, by urgency.
	ReportsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "reports",
		Name:      "submitted_total",
		Help:      "Total number of reports accepted into the store, labeled by urgency.",
	}, []string{"urgency"})

	// SubmitRejectedTotal counts drafts refused before reaching the store.
	SubmitRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "reports",
		Name:      "submit_rejected_total",
		Help:      "Total number of submissions refused, labeled by reason.",
	}, []string{"reason"})

	// GeocodeRequestsTotal counts Kakao Local API calls by operation and result.
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Total number of geocode and reverse-geocode calls, labeled by operation and result.",
	}, []string{"operation", "result"})

	GeocodeDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "civic",
		Subsystem: "geocode",
		Name:      "request_duration_seconds",
		Help:      "Latency of geocode and reverse-geocode calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"})

	// LocationResolutionsTotal counts picker runs by mode and outcome.
	LocationResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civic",
		Subsystem: "location",
		Name:      "resolutions_total",
		Help:      "Total number of location picker resolutions, labeled by mode and result.",
	}, []string{"mode", "result"})

	// StreamClients is the number of connected websocket clients.
	StreamClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "civic",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Current number of connected websocket clients, labeled by stream.",
	}, []string{"stream"})
)

// Register adds every collector to the default registry. Safe to call repeatedly.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ReportsSubmittedTotal,
			SubmitRejectedTotal,
			GeocodeRequestsTotal,
			GeocodeDurationSeconds,
			LocationResolutionsTotal,
			StreamClients,
		)
	})
}
