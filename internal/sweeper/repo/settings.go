package repo

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/logger"
)

// FeeCollector 未设置时返回空字符串，此时不收手续费
func (r *Repo) FeeCollector(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, r.keys.FeeCollector()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable("fee collector", err)
	}
	return v, nil
}

func (r *Repo) SetFeeCollector(ctx context.Context, addr string) error {
	addr = domain.NormalizeAddress(addr)
	if err := r.rdb.Set(ctx, r.keys.FeeCollector(), addr, 0).Err(); err != nil {
		return unavailable("set fee collector", err)
	}
	logger.Info(ctx, "fee collector updated", zap.String("address", addr))
	return nil
}
