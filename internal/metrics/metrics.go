// Package metrics содержит счётчики Prometheus сервиса.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы операций.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics хранит реестр и коллекторы сервиса. Нулевой указатель допустим: все методы становятся no-op.
type Metrics struct {
	registry *prometheus.Registry

	claims      *prometheus.CounterVec
	submissions *prometheus.CounterVec
	requests    *prometheus.CounterVec
	liveClients prometheus.Gauge
	contentLoad *prometheus.CounterVec
}

// New создаёт и регистрирует коллекторы в отдельном реестре.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyspin",
			Name:      "bonus_claims_total",
			Help:      "Bonus claim attempts by kind, strategy and outcome.",
		}, []string{"kind", "strategy", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyspin",
			Name:      "payment_submissions_total",
			Help:      "Deposit and withdrawal submissions by outcome.",
		}, []string{"kind", "outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyspin",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "luckyspin",
			Name:      "live_clients",
			Help:      "Connected live feed clients.",
		}),
		contentLoad: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luckyspin",
			Name:      "content_loads_total",
			Help:      "Site content section loads by section and outcome.",
		}, []string{"section", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.claims,
		m.submissions,
		m.requests,
		m.liveClients,
		m.contentLoad,
	)
	return m
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry возвращает реестр коллекторов.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveClaim(kind, strategy, outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(kind, strategy, outcome).Inc()
}

func (m *Metrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func (m *Metrics) ObserveContentLoad(section, outcome string) {
	if m == nil {
		return
	}
	m.contentLoad.WithLabelValues(section, outcome).Inc()
}

func (m *Metrics) LiveClientConnected() {
	if m == nil {
		return
	}
	m.liveClients.Inc()
}

func (m *Metrics) LiveClientDisconnected() {
	if m == nil {
		return
	}
	m.liveClients.Dec()
}

// ClaimCount возвращает текущее значение счётчика получений.
func (m *Metrics) ClaimCount(kind, strategy, outcome string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.claims.WithLabelValues(kind, strategy, outcome))
}

// SubmissionCount возвращает текущее значение счётчика заявок.
func (m *Metrics) SubmissionCount(kind, outcome string) float64 {
	if m == nil {
		return 0
	}
	return counterValue(m.submissions.WithLabelValues(kind, outcome))
}
