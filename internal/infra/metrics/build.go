package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "stt_build_info",
		Help: "A constant metric with labels for version, commit and transcription engine.",
	},
	[]string{"version", "commit", "engine"},
)

func SetBuildInfo(version, commit, engine string) {
	buildInfo.WithLabelValues(version, commit, engine).Set(1)
}
