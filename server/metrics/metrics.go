package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blackjack"

var (
	RoundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Settled rounds by winner.",
	}, []string{"winner"})

	WageredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wagered_chips_total",
		Help:      "Sum of all accepted bets.",
	})

	WalletOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_ops_total",
		Help:      "Deposits and withdrawals by outcome.",
	}, []string{"op", "outcome"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory.",
	})

	AdviceSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "advice_seconds",
		Help:      "Time spent computing Monte Carlo advice.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// Registry creates a registry with the process/Go collectors and the table collectors.
func Registry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(prometheus.NewProcessCollector(
		prometheus.ProcessCollectorOpts{Namespace: namespace},
	))
	registry.MustRegister(prometheus.NewGoCollector())

	registry.MustRegister(RoundsTotal)
	registry.MustRegister(WageredTotal)
	registry.MustRegister(WalletOpsTotal)
	registry.MustRegister(ActiveSessions)
	registry.MustRegister(AdviceSeconds)

	return registry
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
