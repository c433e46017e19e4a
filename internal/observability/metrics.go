package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. A disabled instance
// accepts every call and records nothing.
type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	authAttemptsTotal   *prometheus.CounterVec
	tokenRejectedTotal  *prometheus.CounterVec
	policyDecisionTotal *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// NewMetrics registers collectors on a private registry so tests can build
// as many instances as they like.
func NewMetrics(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}
	if !enabled {
		return m
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.authAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityinfo_auth_attempts_total",
		Help: "Authentication attempts by result",
	}, []string{"result"})

	m.tokenRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityinfo_token_rejected_total",
		Help: "Bearer tokens rejected by reason",
	}, []string{"reason"})

	m.policyDecisionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cityinfo_policy_decisions_total",
		Help: "Authorization policy decisions",
	}, []string{"policy", "result"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cityinfo_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	m.registry.MustRegister(m.authAttemptsTotal, m.tokenRejectedTotal, m.policyDecisionTotal, m.requestDuration)
	return m
}

func (m *Metrics) AuthAttempt(result string) {
	if !m.enabled {
		return
	}
	m.authAttemptsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) TokenRejected(reason string) {
	if !m.enabled {
		return
	}
	m.tokenRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) PolicyDecision(policy string, allowed bool) {
	if !m.enabled {
		return
	}
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.policyDecisionTotal.WithLabelValues(policy, result).Inc()
}

func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler exposes the registry, or 404 when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
