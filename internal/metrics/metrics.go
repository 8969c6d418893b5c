package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa os contadores Prometheus expostos em /metrics.
type Metrics struct {
	RegistrationsSubmitted prometheus.Counter
	ReviewDecisions        *prometheus.CounterVec
	RealtimeClients        prometheus.Gauge
	HTTPRequestDuration    *prometheus.HistogramVec
}

// New cria e registra as métricas no registry default.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registra as métricas no registerer informado; testes usam um
// registry isolado para não colidir com o default.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistrationsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "registrocivil_registrations_submitted_total",
			Help: "Total de registros de nascimento/óbito submetidos",
		}),
		ReviewDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrocivil_review_decisions_total",
			Help: "Decisões de análise por resultado",
		}, []string{"decision"}),
		RealtimeClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "registrocivil_realtime_clients",
			Help: "Conexões websocket ativas no feed de mudanças",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registrocivil_http_request_duration_seconds",
			Help:    "Duração das requisições HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}

// IncSubmitted contabiliza submissão aceita. Seguro com receptor nulo.
func (m *Metrics) IncSubmitted() {
	if m == nil {
		return
	}
	m.RegistrationsSubmitted.Inc()
}

// IncDecision contabiliza decisão terminal de análise (approved/rejected).
func (m *Metrics) IncDecision(decision string) {
	if m == nil {
		return
	}
	m.ReviewDecisions.WithLabelValues(decision).Inc()
}

// AddRealtimeClient ajusta o gauge de conexões do feed.
func (m *Metrics) AddRealtimeClient(delta float64) {
	if m == nil {
		return
	}
	m.RealtimeClients.Add(delta)
}

// ObserveRequest registra duração de requisição HTTP.
func (m *Metrics) ObserveRequest(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, status).Observe(seconds)
}
