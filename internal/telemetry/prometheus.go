package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// promMetrics implements Metrics by registering counter/gauge/histogram
// vectors against a prometheus.Registerer, for deployments (following
// kubernaut's convention) that scrape /metrics directly instead of exporting
// OTLP. tags are treated as alternating label key/value pairs; the label
// *names* seen on the first call for a given metric name are fixed for the
// lifetime of the process (Prometheus vectors require a fixed label set).
type promMetrics struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics constructs a Metrics recorder backed by reg.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	return &promMetrics{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(tags []string) ([]string, prometheus.Labels) {
	names := make([]string, 0, len(tags)/2)
	labels := make(prometheus.Labels, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		names = append(names, tags[i])
		labels[tags[i]] = tags[i+1]
	}
	return names, labels
}

func (m *promMetrics) IncCounter(name string, value float64, tags ...string) {
	names, labels := labelNames(tags)
	m.mu.Lock()
	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, names)
		_ = m.reg.Register(c)
		m.counters[name] = c
	}
	m.mu.Unlock()
	c.With(labels).Add(value)
}

func (m *promMetrics) RecordGauge(name string, value float64, tags ...string) {
	names, labels := labelNames(tags)
	m.mu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, names)
		_ = m.reg.Register(g)
		m.gauges[name] = g
	}
	m.mu.Unlock()
	g.With(labels).Set(value)
}

func (m *promMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	names, labels := labelNames(tags)
	m.mu.Lock()
	h, ok := m.histograms[name]
	if !ok {
		h = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, names)
		_ = m.reg.Register(h)
		m.histograms[name] = h
	}
	m.mu.Unlock()
	h.With(labels).Observe(d.Seconds())
}
