// Package metrics collects per-run synchronization metrics and pushes them to
// a Prometheus Pushgateway. A one-shot job has no scrape endpoint, so the
// collectors live on a private registry that is pushed once at the end.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "blocklist_sync"

// Recorder groups the collectors of one run.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stages          *prometheus.CounterVec
	destinations    prometheus.Gauge
	lastSuccess     prometheus.Gauge
}

// New creates a Recorder with all collectors registered on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Number of API requests by endpoint, method and status code.",
		}, []string{"endpoint", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Outcome of each pipeline stage.",
		}, []string{"stage", "status"}),
		destinations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "destinations_added",
			Help:      "Destinations added to the list by the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run where every stage succeeded.",
		}),
	}
	r.registry.MustRegister(r.requests, r.requestDuration, r.stages, r.destinations, r.lastSuccess)
	return r
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveRequest records one API call. code is 0 for transport failures.
// A nil Recorder is a no-op.
func (r *Recorder) ObserveRequest(endpoint, method string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(endpoint, method, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveStage records a stage outcome.
func (r *Recorder) ObserveStage(stage, status string) {
	if r == nil {
		return
	}
	r.stages.WithLabelValues(stage, status).Inc()
}

// SetAdded records how many destinations the run added.
func (r *Recorder) SetAdded(n int) {
	if r == nil {
		return
	}
	r.destinations.Set(float64(n))
}

// MarkSuccess stamps the last-success gauge with t.
func (r *Recorder) MarkSuccess(t time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(t.Unix()))
}

// Push sends the collected metrics to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(r.registry).PushContext(ctx)
}
