package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "department_tree"

type metrics struct {
	mutationsTotal  *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	reapedTotal     *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var get = sync.OnceValue(func() *metrics {
	return &metrics{
		mutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Total number of structural tree mutations by outcome.",
		}, []string{"operation", "result"}),
		mutationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Duration of structural tree mutations including lock wait.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		reapedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_rows_total",
			Help:      "Rows affected by the inactive department reaper.",
		}, []string{"kind"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
})

// ObserveMutation фиксирует результат операции над деревом
func ObserveMutation(operation string, started time.Time, err error) {
	m := get()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mutationsTotal.WithLabelValues(operation, result).Inc()
	m.mutationLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// AddReaped учитывает строки, затронутые сборщиком неактивных подразделений
func AddReaped(kind string, n int) {
	if n <= 0 {
		return
	}
	get().reapedTotal.WithLabelValues(kind).Add(float64(n))
}

// ObserveHTTP фиксирует длительность HTTP запроса
func ObserveHTTP(method string, status int, d time.Duration) {
	get().httpDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(d.Seconds())
}
