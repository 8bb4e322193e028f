package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for VerifiedTotal.
const (
	OutcomePaid       = "paid"
	OutcomeFailed     = "failed"
	OutcomeUnverified = "unverified"
	OutcomeUnknown    = "unknown_txn"
	OutcomeReplayed   = "replayed"
)

type Payments struct {
	registry      *prometheus.Registry
	CreatedTotal  prometheus.Counter
	VerifiedTotal *prometheus.CounterVec
}

func NewPayments() *Payments {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := promauto.With(reg)
	return &Payments{
		registry: reg,
		CreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "bazaar_payments_created_total",
			Help: "Signed payment requests handed out to checkouts.",
		}),
		VerifiedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bazaar_payments_verified_total",
			Help: "Gateway callbacks processed, by outcome.",
		}, []string{"outcome"}),
	}
}

func (p *Payments) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
