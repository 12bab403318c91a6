// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var (
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_store_operations_total",
			Help: "Total number of funnel repository operations against the document store",
		},
		[]string{"operation", "status"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "funnel_store_operation_duration_seconds",
			Help:    "Duration of funnel repository operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	Migrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_legacy_migrations_total",
			Help: "Legacy quiz migrations attempted, by outcome",
		},
		[]string{"status"},
	)

	Autosaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "funnel_autosaves_total",
			Help: "Total number of debounced editor saves",
		},
		[]string{"status"},
	)

	EditorSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "funnel_editor_sessions_active",
			Help: "Number of open editor sessions",
		},
	)

	PlayerSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quiz_player_sessions_active",
			Help: "Number of live quiz player sessions",
		},
	)

	QuizAnswers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Total number of accepted answer clicks",
		},
	)

	QuizRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_redirects_total",
			Help: "Total number of visitors that reached the final redirect",
		},
	)
)

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
