package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(errorReportsTotal) }

var errorReportsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stt_error_reports_total",
		Help: "Notifications sent to the error tracker by error class and delivery result.",
	},
	[]string{"class", "result"}, // result: 'sent', 'error'
)

func IncErrorReport(class, result string) {
	errorReportsTotal.WithLabelValues(class, norm(result)).Inc()
}
