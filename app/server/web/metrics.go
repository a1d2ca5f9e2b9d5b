package web

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds prometheus collectors for theme activity.
type Metrics struct {
	applied       *prometheus.CounterVec
	events        *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
	pages         prometheus.Gauge
}

// NewMetrics creates collectors and registers them with reg. nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themer", Name: "theme_applied_total", Help: "themes applied to page roots",
		}, []string{"theme"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themer", Name: "events_total", Help: "page events delivered to controllers",
		}, []string{"type"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "themer", Name: "storage_errors_total", Help: "failed persistence operations",
		}, []string{"op"}),
		pages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "themer", Name: "pages", Help: "live page sessions",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.applied, m.events, m.storageErrors, m.pages)
	}
	return m
}

func (m *Metrics) themeApplied(th string) { m.applied.WithLabelValues(th).Inc() }
func (m *Metrics) event(kind string) { m.events.WithLabelValues(kind).Inc() }
func (m *Metrics) storageError(op string) { m.storageErrors.WithLabelValues(op).Inc() }
func (m *Metrics) setPages(n int) { m.pages.Set(float64(n)) }
