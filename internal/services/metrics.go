package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics holds the service counters. Each process builds its own and
// registers it on the registry served at /metrics.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	LedgerMutations  *prometheus.CounterVec
	LedgerRejections *prometheus.CounterVec
	Rounds           *prometheus.CounterVec
	RewardClaims     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		LedgerMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_mutations_total",
				Help: "Committed balance changes by transaction kind",
			},
			[]string{"kind"},
		),
		LedgerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_rejections_total",
				Help: "Balance changes refused, by reason",
			},
			[]string{"reason"},
		),
		Rounds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rounds_total",
				Help: "Round lifecycle events by game",
			},
			[]string{"game", "event"},
		),
		RewardClaims: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reward_claims_total",
				Help: "Daily reward claims by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.HTTPRequests, m.LedgerMutations, m.LedgerRejections, m.Rounds, m.RewardClaims)
	}
	return m
}

// RegisterOutstanding exposes the ledger's platform-wide liability as a gauge
// computed at scrape time.
func RegisterOutstanding(reg prometheus.Registerer, ledger *Ledger) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ledger_outstanding_points",
			Help: "Sum of all account balances according to the transaction log",
		},
		func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			totals, err := ledger.Totals(ctx)
			if err != nil {
				ledger.logger.Warn("ledger totals unavailable", zap.Error(err))
				return 0
			}
			return float64(totals.Outstanding)
		},
	))
}
