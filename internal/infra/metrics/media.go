package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		mediaProbesTotal,
		mediaSecondsTotal,
		modelLoadsTotal,
		artifactsUploadedTotal,
	)
}

var (
	mediaProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_media_probes_total",
			Help: "Media probes by result.",
		},
		[]string{"result"}, // 'ok', 'invalid', 'error'
	)

	mediaSecondsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_media_seconds_total",
			Help: "Seconds of media transcribed per model.",
		},
		[]string{"model"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_model_loads_total",
			Help: "Model loads per model and device (cache misses).",
		},
		[]string{"model", "device"},
	)

	artifactsUploadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_artifacts_uploaded_total",
			Help: "Transcript artifacts uploaded by file extension.",
		},
		[]string{"ext"},
	)
)

func IncProbe(result string) {
	mediaProbesTotal.WithLabelValues(norm(result)).Inc()
}

func AddMediaSeconds(model string, seconds float64) {
	if seconds > 0 {
		mediaSecondsTotal.WithLabelValues(norm(model)).Add(seconds)
	}
}

func IncModelLoad(model, device string) {
	modelLoadsTotal.WithLabelValues(norm(model), norm(device)).Inc()
}

func IncArtifactUploaded(ext string) {
	artifactsUploadedTotal.WithLabelValues(norm(ext)).Inc()
}
