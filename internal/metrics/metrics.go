package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run metrics
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionsentinel_runs_total",
			Help: "Total number of ingest and screen runs",
		},
		[]string{"job", "side", "status"}, // status: success|error
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optionsentinel_run_duration_seconds",
			Help:    "Run duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job", "side"},
	)

	LastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optionsentinel_last_success_timestamp",
			Help: "Unix timestamp of the last successful run",
		},
		[]string{"job", "side"},
	)

	// Screen output metrics
	ScreenRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "optionsentinel_screen_rows",
			Help: "Row counts of the last screen run",
		},
		[]string{"side", "kind"}, // kind: quotes|tickers|candidates|ranked|invalid|missing_snapshot
	)

	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optionsentinel_provider_calls_total",
			Help: "Total number of market data provider calls",
		},
		[]string{"provider", "endpoint", "status"},
	)
)

var once sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(Runs, RunDuration, LastSuccess, ScreenRows, ProviderCalls)
	})
}

// ObserveRun records the outcome and duration of one job run.
func ObserveRun(job, side string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		LastSuccess.WithLabelValues(job, side).SetToCurrentTime()
	}
	Runs.WithLabelValues(job, side, status).Inc()
	RunDuration.WithLabelValues(job, side).Observe(time.Since(started).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
