package xredis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"sweepbridge.com/pkg/metrics"
	"sweepbridge.com/pkg/safe"
)

// metricsHook 记录每条命令的耗时和错误，redis.Nil 不算错误
type metricsHook struct{}

var _ redis.Hook = metricsHook{}

func (metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observe(cmd.Name(), start, err)
		return err
	}
}

func (metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observe("pipeline", start, err)
		return err
	}
}

func observe(cmd string, start time.Time, err error) {
	status := "ok"
	if err != nil && !errors.Is(err, redis.Nil) {
		status = "error"
		metrics.RedisErrors.WithLabelValues(cmd).Inc()
	}
	metrics.RedisCmdDuration.WithLabelValues(cmd, status).Observe(time.Since(start).Seconds())
}

// Instrument 给客户端挂上命令指标
func Instrument(rdb redis.UniversalClient) {
	rdb.AddHook(metricsHook{})
}

// StartPoolStats 定时把连接池状态写到 gauge
func StartPoolStats(ctx context.Context, rdb *redis.Client, every time.Duration) {
	safe.GoCtx(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := rdb.PoolStats()
				metrics.RedisPoolOpen.Set(float64(s.TotalConns))
				metrics.RedisPoolIdle.Set(float64(s.IdleConns))
				metrics.RedisPoolWaits.Set(float64(s.WaitCount))
			}
		}
	})
}
