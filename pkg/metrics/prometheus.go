// Package metrics exports Prometheus metrics for generation, form
// transitions and submissions, and queries them back for reports.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docassist/pkg/form"
	"docassist/pkg/steps"
	"docassist/pkg/submission"
)

// PrometheusRecorder implements the LLM metrics recorder, form.Observer and
// submission.Observer on one registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	tokensTotal        *prometheus.CounterVec
	costsTotal         *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	transitionsTotal   *prometheus.CounterVec
	submissionsTotal   *prometheus.CounterVec
	submissionDuration prometheus.Histogram
}

// NewPrometheusRecorder registers every metric on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, operation and status",
			},
			[]string{"model", "operation", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"model", "operation", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_costs_total",
				Help: "Total cost in USD for LLM requests",
			},
			[]string{"model", "operation"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "operation"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "form_transitions_total",
				Help: "Next outcomes by step",
			},
			[]string{"step", "outcome"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "form_submissions_total",
				Help: "Submissions by error category; empty category is success",
			},
			[]string{"category"},
		),
		submissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "form_submission_duration_seconds",
			Help:    "Duration of documentation submissions in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
	}
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// ObserveRequest records one LLM call.
func (p *PrometheusRecorder) ObserveRequest(
	model, operation string,
	promptTokens, completionTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, operation, status, errorType).Inc()
	if success {
		p.tokensTotal.WithLabelValues(model, operation, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, operation, "completion").Add(float64(completionTokens))
		p.costsTotal.WithLabelValues(model, operation).Add(cost)
	}
	p.requestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// ObserveTransition implements form.Observer.
func (p *PrometheusRecorder) ObserveTransition(step steps.ID, t form.Transition) {
	p.transitionsTotal.WithLabelValues(string(step), t.String()).Inc()
}

// ObserveSubmission implements submission.Observer.
func (p *PrometheusRecorder) ObserveSubmission(category submission.Category, duration time.Duration) {
	label := string(category)
	if label == "" {
		label = "success"
	}
	p.submissionsTotal.WithLabelValues(label).Inc()
	p.submissionDuration.Observe(duration.Seconds())
}
