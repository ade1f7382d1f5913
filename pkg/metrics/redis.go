package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RedisPoolOpen  = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sweeper", Name: "redis_pool_open"})
	RedisPoolIdle  = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sweeper", Name: "redis_pool_idle"})
	RedisPoolWaits = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sweeper", Name: "redis_pool_wait_count"})

	RedisCmdDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sweeper",
		Name:      "redis_cmd_duration_seconds",
		Help:      "Redis command latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms ~ 16s
	}, []string{"cmd", "status"})

	RedisErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweeper",
		Name:      "redis_errors_total",
		Help:      "Redis errors",
	}, []string{"cmd"})
)
