package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "healthmirror"

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	frames          *prometheus.CounterVec
	inference       prometheus.Histogram
	inferenceErrors prometheus.Counter
	sessions        prometheus.Counter
	summaries       *prometheus.CounterVec
	alerts          *prometheus.CounterVec
}

// New registers all collectors. liveSessions backs the live-session gauge.
func New(liveSessions func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames analysed, by outcome (face, no_face, error, degraded).",
		}, []string{"outcome"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emotion_inference_seconds",
			Help:      "Latency of emotion model calls.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		inferenceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_inference_errors_total",
			Help:      "Emotion model calls that failed.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Monitoring sessions opened.",
		}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_saved_total",
			Help:      "Session summaries persisted, by result (ok, error).",
		}, []string{"result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Alerts fired, by rule.",
		}, []string{"rule"}),
	}

	m.registry.MustRegister(m.frames, m.inference, m.inferenceErrors, m.sessions, m.summaries, m.alerts)
	if liveSessions != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Monitoring sessions currently open.",
		}, liveSessions))
	}
	return m
}

// Frame counts one analysed frame.
func (m *Metrics) Frame(outcome string) {
	m.frames.WithLabelValues(outcome).Inc()
}

// Inference records one emotion model call.
func (m *Metrics) Inference(elapsed time.Duration, err error) {
	m.inference.Observe(elapsed.Seconds())
	if err != nil {
		m.inferenceErrors.Inc()
	}
}

// SessionOpened counts a new session.
func (m *Metrics) SessionOpened() {
	m.sessions.Inc()
}

// SummarySaved counts a persistence outcome.
func (m *Metrics) SummarySaved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.summaries.WithLabelValues(result).Inc()
}

// AlertFired counts an alert.
func (m *Metrics) AlertFired(rule string) {
	m.alerts.WithLabelValues(rule).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather returns the current metric families.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// Values flattens counters and gauges into "name{k=v,...}" keys, and
// histograms into their sample count, for the JSON status endpoint.
func (m *Metrics) Values() (map[string]float64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := seriesKey(mf.GetName(), metric.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[key+"_count"] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func seriesKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"="+l.GetValue())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
