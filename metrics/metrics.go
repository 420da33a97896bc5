package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescan_scans_total",
			Help: "Finished scans by outcome (succeeded, degraded, failed).",
		},
		[]string{"outcome"},
	)

	ActiveScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitescan_active_scans",
			Help: "Scans currently running.",
		},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitescan_scan_duration_seconds",
			Help:    "Wall-clock duration of a scan run.",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 75, 90},
		},
	)

	PagesScanned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitescan_pages_scanned",
			Help:    "Pages contributing signals per scan.",
			Buckets: prometheus.LinearBuckets(0, 2, 8),
		},
	)

	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescan_fetches_total",
			Help: "Page fetch attempts by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	AIResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescan_ai_results_total",
			Help: "AI augmentation outcomes by status and error code.",
		},
		[]string{"status", "code"},
	)

	CompetitorLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitescan_competitor_lookups_total",
			Help: "Competitor price lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(ActiveScans)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(PagesScanned)
	prometheus.MustRegister(FetchesTotal)
	prometheus.MustRegister(AIResultsTotal)
	prometheus.MustRegister(CompetitorLookups)
}
