package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the giftbot collectors.
	Registry = prometheus.NewRegistry()

	workflowOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "giftbot",
			Subsystem: "workflow",
			Name:      "operations_total",
			Help:      "Workflow operations by outcome.",
		},
		[]string{"workflow", "op", "result"},
	)

	workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "giftbot",
			Subsystem: "workflow",
			Name:      "duration_seconds",
			Help:      "Duration of workflow operations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"workflow", "op"},
	)

	generatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "giftbot",
			Subsystem: "generator",
			Name:      "duration_seconds",
			Help:      "Duration of artifact generations.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
		},
		[]string{"result"},
	)

	generatorInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "giftbot",
			Subsystem: "generator",
			Name:      "inflight",
			Help:      "Artifact generations currently running.",
		},
	)

	draftsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "giftbot",
			Subsystem: "drafts",
			Name:      "swept_total",
			Help:      "Expired drafts removed by the sweeper.",
		},
	)
)

func init() {
	Registry.MustRegister(
		workflowOps,
		workflowDuration,
		generatorDuration,
		generatorInflight,
		draftsSwept,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordWorkflow records one workflow operation. result is the error kind
// name, or "ok".
func RecordWorkflow(workflow, op, result string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	workflowOps.WithLabelValues(workflow, op, result).Inc()
	workflowDuration.WithLabelValues(workflow, op).Observe(duration.Seconds())
}

func RecordGeneration(success bool, duration time.Duration) {
	result := "error"
	if success {
		result = "ok"
	}
	generatorDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func GenerationStarted()  { generatorInflight.Inc() }
func GenerationFinished() { generatorInflight.Dec() }

func RecordSwept(n int64) {
	if n > 0 {
		draftsSwept.Add(float64(n))
	}
}
