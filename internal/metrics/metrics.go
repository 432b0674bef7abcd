// Package metrics exposes admission and issuance counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is what services and middleware report to.
type Collector interface {
	RecordAdmission(guard, outcome string)
	RecordIssuance(source, code string)
	RecordAuthFailure(code string)
	RecordCacheResult(hit bool)
	RecordRequestDuration(route string, d time.Duration)
	SetInFlight(n int64)
}

// NoopCollector is a no-op implementation of Collector
type NoopCollector struct{}

func (NoopCollector) RecordAdmission(string, string)              {}
func (NoopCollector) RecordIssuance(string, string)               {}
func (NoopCollector) RecordAuthFailure(string)                    {}
func (NoopCollector) RecordCacheResult(bool)                      {}
func (NoopCollector) RecordRequestDuration(string, time.Duration) {}
func (NoopCollector) SetInFlight(int64)                           {}

type Prometheus struct {
	registry  *prometheus.Registry
	admission *prometheus.CounterVec
	issuance  *prometheus.CounterVec
	authFail  *prometheus.CounterVec
	cache     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	inFlight  prometheus.Gauge
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "paylink"
	}
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		admission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Admission decisions on the payment surface by guard and outcome.",
		}, []string{"guard", "outcome"}),
		issuance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_link_generations_total",
			Help:      "Payment link issuance attempts by source and result code.",
		}, []string{"source", "code"}),
		authFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_auth_failures_total",
			Help:      "Rejected merchant token authentications by code.",
		}, []string{"code"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_cache_lookups_total",
			Help:      "Resolved-link cache lookups by result.",
		}, []string{"result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_request_duration_seconds",
			Help:      "Duration of payment surface requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "payment_requests_in_flight",
			Help:      "Payment surface requests currently admitted.",
		}),
	}
	p.registry.MustRegister(p.admission, p.issuance, p.authFail, p.cache, p.durations, p.inFlight)
	return p
}

func (p *Prometheus) RecordAdmission(guard, outcome string) {
	p.admission.WithLabelValues(guard, outcome).Inc()
}

func (p *Prometheus) RecordIssuance(source, code string) {
	p.issuance.WithLabelValues(source, code).Inc()
}

func (p *Prometheus) RecordAuthFailure(code string) {
	p.authFail.WithLabelValues(code).Inc()
}

func (p *Prometheus) RecordCacheResult(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cache.WithLabelValues(result).Inc()
}

func (p *Prometheus) RecordRequestDuration(route string, d time.Duration) {
	p.durations.WithLabelValues(route).Observe(d.Seconds())
}

func (p *Prometheus) SetInFlight(n int64) {
	p.inFlight.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
