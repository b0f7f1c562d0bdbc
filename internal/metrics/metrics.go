package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	OperationInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "operation_invocations_total",
		Help: "Total number of catalog operation invocations",
	}, []string{"operation", "status"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "operation_duration_seconds",
		Help:    "Duration of catalog operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TranslationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "translation_requests_total",
		Help: "Total number of natural language translation requests",
	}, []string{"status"})

	TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "translation_duration_seconds",
		Help:    "Duration of natural language translations including the model call",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	DatasetRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataset_rows",
		Help: "Number of rows in the loaded sales dataset",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status_code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status_code"})
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordOperation counts one invocation and observes its duration.
func RecordOperation(name string, err error, d time.Duration) {
	OperationInvocations.WithLabelValues(name, status(err)).Inc()
	OperationDuration.WithLabelValues(name).Observe(d.Seconds())
}

func RecordTranslation(err error, d time.Duration) {
	TranslationRequests.WithLabelValues(status(err)).Inc()
	TranslationDuration.Observe(d.Seconds())
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
