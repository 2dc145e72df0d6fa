package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsProcessedTotal,
		jobStageDuration,
		jobState,
	)
}

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_jobs_processed_total",
			Help: "Total number of transcription jobs processed, labeled by status and error kind.",
		},
		[]string{"status", "kind"}, // status: 'completed', 'failed'
	)

	jobStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stt_job_stage_duration_seconds",
			Help:    "Duration of each job pipeline stage in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"stage"},
	)

	jobState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stt_worker_state",
			Help: "1 for the lifecycle state the worker is currently in, 0 otherwise.",
		},
		[]string{"state"},
	)
)

var knownStates = []string{"idle", "received", "downloading", "transcribing", "publishing", "completed", "failed"}

func IncJob(status, kind string) {
	jobsProcessedTotal.WithLabelValues(norm(status), kind).Inc()
}

func ObserveStage(stage string, d time.Duration) {
	jobStageDuration.WithLabelValues(norm(stage)).Observe(d.Seconds())
}

// SetState flags the current lifecycle state.
func SetState(state string) {
	state = norm(state)
	for _, s := range knownStates {
		v := 0.0
		if s == state {
			v = 1
		}
		jobState.WithLabelValues(s).Set(v)
	}
}
