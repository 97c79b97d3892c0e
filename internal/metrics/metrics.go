package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the review service.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	LoadsTotal              *prometheus.CounterVec
	RegistrationsLoaded     prometheus.Gauge
	CanonicalRegistrations  prometheus.Gauge
	TimestampFallbacksTotal prometheus.Counter
	MutationsTotal          *prometheus.CounterVec
	ExportsTotal            *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regreview_loads_total",
				Help: "Total number of full registration reloads",
			},
			[]string{"result"},
		),
		RegistrationsLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regreview_registrations_loaded",
				Help: "Raw registration documents read by the last successful load",
			},
		),
		CanonicalRegistrations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "regreview_canonical_registrations",
				Help: "Registrations left after deduplication by email",
			},
		),
		TimestampFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "regreview_timestamp_fallbacks_total",
				Help: "Registrations loaded without a usable timestamp",
			},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regreview_mutations_total",
				Help: "Status updates and deletions by outcome",
			},
			[]string{"operation", "result"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regreview_exports_total",
				Help: "PDF exports by delivery mode and outcome",
			},
			[]string{"mode", "result"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.LoadsTotal,
		m.RegistrationsLoaded,
		m.CanonicalRegistrations,
		m.TimestampFallbacksTotal,
		m.MutationsTotal,
		m.ExportsTotal,
	)
	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Load records the outcome of a full reload.
func (m *Metrics) Load(err error, raw, canonical int) {
	if m == nil {
		return
	}
	if err != nil {
		m.LoadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.LoadsTotal.WithLabelValues("ok").Inc()
	m.RegistrationsLoaded.Set(float64(raw))
	m.CanonicalRegistrations.Set(float64(canonical))
}

// TimestampFallback counts a record normalized to the sentinel timestamp.
func (m *Metrics) TimestampFallback() {
	if m == nil {
		return
	}
	m.TimestampFallbacksTotal.Inc()
}

// Mutation records a status update or deletion.
func (m *Metrics) Mutation(operation string, err error) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(operation, result(err)).Inc()
}

// Export records a PDF export.
func (m *Metrics) Export(mode string, err error) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(mode, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
