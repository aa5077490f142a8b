package gateway

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	// Requests counts logical requests by realm, method and outcome
	Requests *prometheus.CounterVec
	// Refreshes counts refresh endpoint calls by realm and result
	Refreshes *prometheus.CounterVec
	// Fallbacks counts reads answered from offline content
	Fallbacks *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of logical API requests.",
			},
			[]string{"realm", "method", "outcome"},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gateway",
				Name:      "token_refreshes_total",
				Help:      "Total number of token refresh calls.",
			},
			[]string{"realm", "result"},
		),
		Fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront",
				Subsystem: "gateway",
				Name:      "fallbacks_total",
				Help:      "Total number of reads served from offline content.",
			},
			[]string{"realm"},
		),
	}

	if reg == nil {
		return m
	}
	m.Requests = register(reg, m.Requests)
	m.Refreshes = register(reg, m.Refreshes)
	m.Fallbacks = register(reg, m.Fallbacks)
	return m
}

// register adds c to reg, reusing the collector already registered under the same
// descriptor so several clients can share one registry.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}
	log.Warn().Err(err).Msg("Failed to register gateway metric")
	return c
}

func (m *Metrics) request(req Request, outcome string) {
	m.Requests.WithLabelValues(string(req.Realm()), req.Method, outcome).Inc()
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
