// Package metrics exposes the streaming pipeline's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "facestream"

// Drop reasons for frames that never reach the wire.
const (
	DropNoRegion    = "no_region"
	DropLinkNotOpen = "link_not_open"
	DropRateLimited = "rate_limited"
	DropSendFailed  = "send_failed"
	DropSuperseded  = "superseded"
	DropEncode      = "encode"
)

type Metrics struct {
	LinkState        prometheus.Gauge
	Reconnects       prometheus.Counter
	FramesSent       prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	InboundMessages  *prometheus.CounterVec
	ViewerClients    prometheus.Gauge
	ExtractDurations prometheus.Histogram

	registry *prometheus.Registry
}

// New builds the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		LinkState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "state",
			Help:      "Link state (0=idle, 1=connecting, 2=open, 3=closed, 4=reconnecting, 5=failed)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts scheduled after a link closure",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Face snapshots written to the classifier link",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "dropped_total",
			Help:      "Detection cycles that produced no send, by reason",
		}, []string{"reason"}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inbound",
			Name:      "messages_total",
			Help:      "Classifier replies, by kind (emotion, error, malformed)",
		}, []string{"kind"}),
		ViewerClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "viewer",
			Name:      "clients",
			Help:      "Connected browser viewers",
		}),
		ExtractDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "extract_duration_seconds",
			Help:      "Crop and JPEG encode time per detection cycle",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.LinkState,
		m.Reconnects,
		m.FramesSent,
		m.FramesDropped,
		m.InboundMessages,
		m.ViewerClients,
		m.ExtractDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SetLinkState(state int) {
	if m == nil {
		return
	}
	m.LinkState.Set(float64(state))
}

func (m *Metrics) IncReconnects() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) IncSent() {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.FramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncInbound(kind string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetViewers(count int) {
	if m == nil {
		return
	}
	m.ViewerClients.Set(float64(count))
}

func (m *Metrics) ObserveExtract(seconds float64) {
	if m == nil {
		return
	}
	m.ExtractDurations.Observe(seconds)
}
