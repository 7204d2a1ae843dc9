package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a worker reports to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	running      prometheus.Gauge
	pollErrors   prometheus.Counter
}

// NewMetrics registers the worker collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bgjob_jobs_finished_total",
				Help: "Jobs processed by this worker, by queue and resulting status",
			},
			[]string{"queue", "status"}, // done, failed, abandoned
		),
		// 10ms to ~163s
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bgjob_job_duration_seconds",
				Help:    "Job run time in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"queue", "type"},
		),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bgjob_jobs_running",
			Help: "Jobs currently executing in this worker",
		}),
		pollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "bgjob_poll_errors_total",
			Help: "Store errors while looking for the next job",
		}),
	}
}

func (m *Metrics) jobStarted() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) jobFinished(queue, typeName, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.running.Dec()
	m.jobsFinished.WithLabelValues(queue, status).Inc()
	m.jobDuration.WithLabelValues(queue, typeName).Observe(elapsed.Seconds())
}

func (m *Metrics) pollFailed() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}
