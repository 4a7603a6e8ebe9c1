package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imposter_protocol"

var (
	metricOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Protocol controller operations completed on the I/O runner, by operation and status.",
	}, []string{"operation", "status"})
	metricDroppedReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_replies_total",
		Help:      "Operation replies discarded because the controller was destroyed.",
	}, []string{"operation"})
	metricJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_total",
		Help:      "Request jobs served by custom protocol handlers, by strategy and outcome.",
	}, []string{"strategy", "outcome"})
	metricPrivilegedSchemes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "privileged_schemes",
		Help:      "Schemes registered as privileged in this process.",
	})
)

func RecordOperation(operation, status string) {
	metricOperations.WithLabelValues(operation, status).Inc()
}

func RecordDroppedReply(operation string) {
	metricDroppedReplies.WithLabelValues(operation).Inc()
}

// RecordJob counts a finished request job; outcome is "ok" or "failed"
func RecordJob(strategy, outcome string) {
	metricJobs.WithLabelValues(strategy, outcome).Inc()
}

func AddPrivilegedSchemes(n int) {
	metricPrivilegedSchemes.Add(float64(n))
}

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
