package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Wizard lifecycle
	WizardSessionsStarted prometheus.Counter
	WizardSessionsActive  prometheus.Gauge
	WizardOperations      *prometheus.CounterVec
	PaymentOutcomes       *prometheus.CounterVec
	RegistrationsTotal    prometheus.Counter

	// Upstream backend API
	BackendLatency *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec

	// Edges
	HTTPLatency   *prometheus.HistogramVec
	LoginAttempts *prometheus.CounterVec
	VisitsTracked *prometheus.CounterVec
	RateLimited   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WizardSessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "brpl_wizard_sessions_started_total",
			Help: "Total number of registration wizard sessions started",
		}),
		WizardSessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "brpl_wizard_sessions_active",
			Help: "Current number of live registration wizard sessions",
		}),
		WizardOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brpl_wizard_operations_total",
			Help: "Wizard operations by name and outcome",
		}, []string{"operation", "outcome"}), // outcome: "ok" or the domain error code
		PaymentOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brpl_payment_outcomes_total",
			Help: "Hosted checkout resolutions by outcome",
		}, []string{"outcome"}), // outcome: "verified", "failed", "dismissed"
		RegistrationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "brpl_registrations_total",
			Help: "Total number of registrations accepted by the backend",
		}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brpl_backend_request_duration_seconds",
			Help:    "Duration of backend API calls by endpoint and outcome",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "brpl_backend_breaker_open",
			Help: "1 when the named circuit breaker is open",
		}, []string{"breaker"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brpl_http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brpl_login_attempts_total",
			Help: "Partner and admin login attempts by portal and outcome",
		}, []string{"portal", "outcome"}),
		VisitsTracked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brpl_visits_tracked_total",
			Help: "Landing page visits recorded, by device class",
		}, []string{"device"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "brpl_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter, by endpoint class",
		}, []string{"class"}),
		gatherer: gatherer,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementSessionsStarted() {
	if m != nil {
		m.WizardSessionsStarted.Inc()
		m.WizardSessionsActive.Inc()
	}
}

func (m *Metrics) DecrementSessionsActive(n int) {
	if m != nil && n > 0 {
		m.WizardSessionsActive.Sub(float64(n))
	}
}

// IncrementOperation records a wizard operation outcome.
func (m *Metrics) IncrementOperation(operation, outcome string) {
	if m != nil {
		m.WizardOperations.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncrementPaymentOutcome(outcome string) {
	if m != nil {
		m.PaymentOutcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementRegistrations() {
	if m != nil {
		m.RegistrationsTotal.Inc()
	}
}

// ObserveBackendLatency records the duration of a backend API call started at start.
func (m *Metrics) ObserveBackendLatency(endpoint, outcome string, start time.Time) {
	if m != nil {
		m.BackendLatency.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

func (m *Metrics) ObserveHTTPLatency(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(method, route, http.StatusText(status)).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementLoginAttempt(portal, outcome string) {
	if m != nil {
		m.LoginAttempts.WithLabelValues(portal, outcome).Inc()
	}
}

func (m *Metrics) IncrementVisitsTracked(device string) {
	if m != nil {
		m.VisitsTracked.WithLabelValues(device).Inc()
	}
}

func (m *Metrics) IncrementRateLimited(class string) {
	if m != nil {
		m.RateLimited.WithLabelValues(class).Inc()
	}
}
