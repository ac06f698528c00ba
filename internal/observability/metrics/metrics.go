// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parley"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Turn orchestration
	TurnsTotal    *prometheus.CounterVec
	TurnFallbacks *prometheus.CounterVec

	// LLM calls
	LLMLatency *prometheus.HistogramVec
	LLMErrors  *prometheus.CounterVec

	// Feedback
	VerdictsTotal *prometheus.CounterVec

	// Speech
	STTLatency  *prometheus.HistogramVec
	STTErrors   *prometheus.CounterVec
	TTSRequests *prometheus.CounterVec

	// Event publishing
	EventsPublished *prometheus.CounterVec
	PublishLatency  prometheus.Histogram

	// OTP
	OTPIssued   prometheus.Counter
	OTPVerified *prometheus.CounterVec
	OTPSwept    prometheus.Counter

	// HTTP
	RateLimited prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TurnsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns generated",
		}, []string{"mode", "phase"}),
		TurnFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_fallbacks_total",
			Help:      "Turns answered with a canned fallback instead of a model reply",
		}, []string{"mode", "reason"}),

		LLMLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM completion latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider", "operation"}),
		LLMErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_errors_total",
			Help:      "Total number of failed LLM completions",
		}, []string{"provider", "operation"}),

		VerdictsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Practice feedback verdicts by outcome",
		}, []string{"verdict"}),

		STTLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		TTSRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tts_requests_total",
			Help:      "Text-to-speech requests by result",
		}, []string{"result"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Practice events handed to the publisher",
		}, []string{"event_type", "result"}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		OTPIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "Total number of one-time passcodes issued",
		}),
		OTPVerified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "OTP verification attempts by result",
		}, []string{"result"}),
		OTPSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_swept_total",
			Help:      "Expired passcodes removed by the sweeper",
		}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}
}

// RecordTurn records a generated turn.
func (m *Metrics) RecordTurn(mode, phase string) {
	m.TurnsTotal.WithLabelValues(mode, phase).Inc()
}

// RecordFallback records a turn served from a canned reply.
func (m *Metrics) RecordFallback(mode, reason string) {
	m.TurnFallbacks.WithLabelValues(mode, reason).Inc()
}

// RecordLLMCall records one LLM completion.
func (m *Metrics) RecordLLMCall(provider, operation string, err error, latencySeconds float64) {
	m.LLMLatency.WithLabelValues(provider, operation).Observe(latencySeconds)
	if err != nil {
		m.LLMErrors.WithLabelValues(provider, operation).Inc()
	}
}

// RecordVerdict records a coerced feedback verdict.
func (m *Metrics) RecordVerdict(verdict string) {
	m.VerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordSTT records one transcription call.
func (m *Metrics) RecordSTT(provider string, latencySeconds float64) {
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordTTS records a synthesis request.
func (m *Metrics) RecordTTS(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TTSRequests.WithLabelValues(result).Inc()
}

// RecordPublish records a practice event publish attempt.
func (m *Metrics) RecordPublish(eventType string, err error, latencySeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
	m.PublishLatency.Observe(latencySeconds)
}

// RecordPublishDropped counts an event discarded before any publish attempt.
func (m *Metrics) RecordPublishDropped(eventType string) {
	m.EventsPublished.WithLabelValues(eventType, "dropped").Inc()
}

// RecordOTPVerification records the outcome of a verify call.
func (m *Metrics) RecordOTPVerification(result string) {
	m.OTPVerified.WithLabelValues(result).Inc()
}
