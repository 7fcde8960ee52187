package blacklist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"library-gateway/middleware/blacklist/domain"
)

// Metrics expõe contadores Prometheus da lista negra. Um *Metrics nil é
// válido e não registra nada.
type Metrics struct {
	verdicts    *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	violations  prometheus.Counter
	globalBans  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blacklist",
			Name:      "verdicts_total",
			Help:      "Decisions taken by the blacklist middleware.",
		}, []string{"verdict", "escalated"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blacklist",
			Name:      "store_errors_total",
			Help:      "Store failures per pipeline step.",
		}, []string{"step", "policy"}),
		violations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "blacklist",
			Name:      "rate_limit_violations_total",
			Help:      "Downstream rate-limit rejections observed.",
		}),
		globalBans: f.NewCounter(prometheus.CounterOpts{
			Namespace: "blacklist",
			Name:      "global_bans_total",
			Help:      "Global bans created by the violation counter.",
		}),
	}
}

func (m *Metrics) verdict(v domain.Verdict, escalated bool) {
	if m == nil {
		return
	}
	esc := "false"
	if escalated {
		esc = "true"
	}
	m.verdicts.WithLabelValues(v.String(), esc).Inc()
}

func (m *Metrics) storeError(step, policy string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(step, policy).Inc()
}

func (m *Metrics) violation(tripped bool) {
	if m == nil {
		return
	}
	m.violations.Inc()
	if tripped {
		m.globalBans.Inc()
	}
}
