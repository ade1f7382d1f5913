package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweeper",
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"service", "method"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sweeper",
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "method"},
	)

	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sweeper",
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limited HTTP requests.",
		},
		[]string{"route"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		CBRejectTotal, CBState, RateLimitBlockTotal,
		CycleDuration, ActionsTotal, BalanceQueryErrors, Accounts, LastCycleTimestamp,
		RedisPoolOpen, RedisPoolIdle, RedisPoolWaits, RedisCmdDuration, RedisErrors,
	)
}
