// Package metrics exposes Prometheus instruments for tool and model calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	toolCalls    *prometheus.CounterVec
	modelCalls   *prometheus.CounterVec
	modelLatency *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	sessions     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citysense",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citysense",
			Name:      "model_calls_total",
			Help:      "Language model calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citysense",
			Name:      "model_call_duration_seconds",
			Help:      "Language model call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}, []string{"provider"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citysense",
			Name:      "model_tokens_total",
			Help:      "Tokens reported by the model, by kind.",
		}, []string{"kind"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "citysense",
			Name:      "active_sessions",
			Help:      "Sessions held by the session store.",
		}),
	}
	m.registry.MustRegister(m.toolCalls, m.modelCalls, m.modelLatency, m.tokens, m.sessions)
	return m
}

func (m *Metrics) ToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome(failed)).Inc()
}

func (m *Metrics) ModelCall(provider string, d time.Duration, prompt, completion int, failed bool) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(provider, outcome(failed)).Inc()
	m.modelLatency.WithLabelValues(provider).Observe(d.Seconds())
	m.tokens.WithLabelValues("prompt").Add(float64(prompt))
	m.tokens.WithLabelValues("completion").Add(float64(completion))
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func outcome(failed bool) string {
	if failed {
		return OutcomeError
	}
	return OutcomeOK
}
