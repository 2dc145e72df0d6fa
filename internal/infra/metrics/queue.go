package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueReceivesTotal, queueSendsTotal) }

var (
	queueReceivesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_queue_receives_total",
			Help: "Receive calls on the work queue by result.",
		},
		[]string{"queue", "result"}, // result: 'empty', 'one', 'protocol_violation', 'error'
	)

	queueSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stt_queue_sends_total",
			Help: "Messages sent to a queue by kind of record.",
		},
		[]string{"queue", "record"}, // record: 'completed', 'failed', 'submitted', 'error'
	)
)

func IncReceive(queue, result string) {
	queueReceivesTotal.WithLabelValues(queue, norm(result)).Inc()
}

func IncSend(queue, record string) {
	queueSendsTotal.WithLabelValues(queue, norm(record)).Inc()
}
