package resolver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records which tier answered each lookup and how long the
// point-in-polygon query took.
type Metrics struct {
	Lookups        *prometheus.CounterVec
	EngineDuration prometheus.Histogram
	StoreWrites    *prometheus.CounterVec
}

// NewMetrics creates the resolver metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattr_lookups_total",
			Help: "Total lookups by the tier that answered (memory, store, engine, none)",
		}, []string{"tier"}),
		EngineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geoattr_engine_duration_seconds",
			Help:    "Point-in-polygon query duration, including dataset loading",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		StoreWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geoattr_store_writes_total",
			Help: "Persistent store writes by outcome (inserted, existing)",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.EngineDuration, m.StoreWrites)
	}
	return m
}

func (m *Metrics) lookup(t Tier) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) engine(start time.Time) {
	if m == nil {
		return
	}
	m.EngineDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) storeWrite(inserted bool) {
	if m == nil {
		return
	}
	outcome := "existing"
	if inserted {
		outcome = "inserted"
	}
	m.StoreWrites.WithLabelValues(outcome).Inc()
}
