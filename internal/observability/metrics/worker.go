package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	ingestPages    *prometheus.HistogramVec
	queueLag       *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docchat",
			Subsystem: "worker",
			Name:      "ingest_total",
			Help:      "Total ingestion requests by terminal state.",
		},
		[]string{"service", "state"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "worker",
			Name:      "ingest_duration_seconds",
			Help:      "Ingestion pipeline duration in seconds by terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "state"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docchat",
			Subsystem: "worker",
			Name:      "ingest_in_flight",
			Help:      "Number of in-flight ingestion requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestPages := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "worker",
			Name:      "ingest_pages",
			Help:      "Distribution of loaded pages per ingested document.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docchat",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between request enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, ingestPages, queueLag)

	return &WorkerMetrics{
		registry:       registry,
		ingestTotal:    ingestTotal,
		ingestDuration: ingestDuration,
		ingestInFlight: ingestInFlight,
		ingestPages:    ingestPages,
		queueLag:       queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartIngestion() {
	m.ingestInFlight.Inc()
}

func (m *WorkerMetrics) FinishIngestion(service, state string, duration time.Duration) {
	m.ingestInFlight.Dec()
	if state == "" {
		state = "unknown"
	}
	m.ingestTotal.WithLabelValues(service, state).Inc()
	m.ingestDuration.WithLabelValues(service, state).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObservePages(service string, pages int) {
	if pages <= 0 {
		return
	}
	m.ingestPages.WithLabelValues(service).Observe(float64(pages))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
