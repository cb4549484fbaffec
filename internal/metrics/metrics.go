// Package metrics exports decoder and session counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dbehnke/mbedecode/internal/codec"
	"github.com/dbehnke/mbedecode/internal/session"
	"github.com/dbehnke/mbedecode/internal/vocoder"
)

// Metrics contains all Prometheus metrics for the decoder service
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	SessionsRefused prometheus.Counter

	// Negotiation metrics
	NegotiationFailures *prometheus.CounterVec

	// Frame metrics
	FramesIn          *prometheus.CounterVec
	FramesOut         *prometheus.CounterVec
	SynthErrors       *prometheus.CounterVec
	SynthErrors2      *prometheus.CounterVec
	SynthesisDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates all metrics on a private registry, together with the
// Go and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mbedecode_active_sessions",
			Help: "Current number of decode sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mbedecode_sessions_started_total",
			Help: "Total number of decode sessions started",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_sessions_ended_total",
			Help: "Total number of decode sessions ended, by reason",
		}, []string{"reason"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbedecode_session_duration_seconds",
			Help:    "Duration of decode sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		SessionsRefused: factory.NewCounter(prometheus.CounterOpts{
			Name: "mbedecode_sessions_refused_total",
			Help: "Sessions refused because max_sessions was reached",
		}),

		NegotiationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_negotiation_failures_total",
			Help: "Rejected negotiation requests, by reason",
		}, []string{"reason"}),

		FramesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_frames_in_total",
			Help: "Channel frames queued for decoding, by mode",
		}, []string{"mode"}),
		FramesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_frames_out_total",
			Help: "Audio frames produced, by mode",
		}, []string{"mode"}),
		SynthErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_synth_errors_total",
			Help: "Channel errors corrected by the synthesizer, by mode",
		}, []string{"mode"}),
		SynthErrors2: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_synth_errors2_total",
			Help: "Secondary channel errors reported by the synthesizer, by mode",
		}, []string{"mode"}),
		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mbedecode_synthesis_duration_seconds",
			Help:    "Time spent deinterleaving and synthesizing one frame",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 12), // 10us to ~20ms
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mbedecode_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionStarted records a new session
func (m *Metrics) SessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// SessionEnded records the end of a session that lasted d
func (m *Metrics) SessionEnded(reason string, d time.Duration) {
	m.ActiveSessions.Dec()
	m.SessionsEnded.WithLabelValues(reason).Inc()
	m.SessionDuration.Observe(d.Seconds())
}

// FramesQueued implements session.Observer
func (m *Metrics) FramesQueued(mode codec.Mode, frames int) {
	m.FramesIn.WithLabelValues(mode.String()).Add(float64(frames))
}

// FrameDecoded implements session.Observer
func (m *Metrics) FrameDecoded(mode codec.Mode, report vocoder.Report, elapsed time.Duration) {
	label := mode.String()
	m.FramesOut.WithLabelValues(label).Inc()
	if report.Errors > 0 {
		m.SynthErrors.WithLabelValues(label).Add(float64(report.Errors))
	}
	if report.Errors2 > 0 {
		m.SynthErrors2.WithLabelValues(label).Add(float64(report.Errors2))
	}
	m.SynthesisDuration.Observe(elapsed.Seconds())
}

// NegotiationFailed implements session.Observer
func (m *Metrics) NegotiationFailed(err error) {
	m.NegotiationFailures.WithLabelValues(session.FailureReason(err)).Inc()
}

var _ session.Observer = (*Metrics)(nil)
