package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// phase: load/scan/execute/total
	CycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sweeper",
		Name:      "cycle_duration_seconds",
		Help:      "Poll cycle latency per phase.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms ~ 100s
	}, []string{"phase"})

	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "actions_total",
		Help:      "Bridge/forward actions by outcome.",
	}, []string{"kind", "status"})

	BalanceQueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "balance_query_errors_total",
		Help:      "Failed balance queries per chain.",
	}, []string{"chain"})

	// state: active/stale/scanned/needs_action/failed
	Accounts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sweeper",
		Name:      "accounts",
		Help:      "Accounts seen in the last cycle by state.",
	}, []string{"state"})

	LastCycleTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweeper",
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix time of the last cycle start.",
	})
)
