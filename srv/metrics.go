package srv

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry      *prom.Registry
	jobs          *prom.CounterVec
	duration      prom.Histogram
	pages         prom.Histogram
	tocPages      prom.Histogram
	rejected      *prom.CounterVec
	queueLength   prom.Gauge
	activeJobs    prom.Gauge
	cachedResults prom.Gauge
}

// NewMetrics registers the bookmaker collectors together with the Go and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prom.NewRegistry(),
		jobs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookmaker",
			Name:      "jobs_total",
			Help:      "Generation jobs by outcome",
		}, []string{"outcome"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bookmaker",
			Name:      "generation_duration_seconds",
			Help:      "Time spent compiling one book",
			Buckets:   prom.DefBuckets,
		}),
		pages: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bookmaker",
			Name:      "document_pages",
			Help:      "Pages per generated document",
			Buckets:   prom.ExponentialBuckets(2, 2, 10),
		}),
		tocPages: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "bookmaker",
			Name:      "document_toc_pages",
			Help:      "Table of contents pages per generated document",
			Buckets:   prom.LinearBuckets(1, 1, 8),
		}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "bookmaker",
			Name:      "requests_rejected_total",
			Help:      "Book submissions rejected before queueing",
		}, []string{"reason"}),
		queueLength: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookmaker",
			Name:      "queue_length",
			Help:      "Jobs waiting for the worker",
		}),
		activeJobs: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookmaker",
			Name:      "active_jobs",
			Help:      "Jobs currently being generated",
		}),
		cachedResults: prom.NewGauge(prom.GaugeOpts{
			Namespace: "bookmaker",
			Name:      "cached_results",
			Help:      "Finished jobs kept for download",
		}),
	}
	m.registry.MustRegister(m.jobs, m.duration, m.pages, m.tocPages, m.rejected,
		m.queueLength, m.activeJobs, m.cachedResults)
	m.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeJob(outcome string, d time.Duration, pages, tocPages int) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
	if pages > 0 {
		m.pages.Observe(float64(pages))
		m.tocPages.Observe(float64(tocPages))
	}
}

func (m *Metrics) reject(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}
