package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/bigjson"
	"sweepbridge.com/pkg/logger"
)

// Repo redis 上的会话注册表、历史账本和设置
type Repo struct {
	rdb  redis.UniversalClient
	keys Keys
}

var (
	_ domain.SessionRepository = (*Repo)(nil)
	_ domain.HistoryLedger     = (*Repo)(nil)
	_ domain.SettingsStore     = (*Repo)(nil)
)

func New(rdb redis.UniversalClient, prefix string) *Repo {
	return &Repo{rdb: rdb, keys: Keys{Prefix: prefix}}
}

func (r *Repo) Keys() Keys { return r.keys }

var errCodec = errors.New("record codec")

// unavailable redis.Nil 之外的错误统一视为存储不可用
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// Register 覆盖写入，记录和 active 索引在同一个事务里
func (r *Repo) Register(ctx context.Context, s *domain.AccountSession) error {
	addr := domain.NormalizeAddress(s.Address)
	if addr == "" {
		return errors.New("register: empty address")
	}
	rec := *s
	rec.Address = addr
	data, err := bigjson.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", addr, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.keys.Session(addr), data, 0)
		if rec.Active {
			p.SAdd(ctx, r.keys.Active(), addr)
		} else {
			p.SRem(ctx, r.keys.Active(), addr)
		}
		return nil
	})
	if err != nil {
		return unavailable("register", err)
	}
	logger.Info(ctx, "session registered", zap.String("address", addr), zap.Bool("active", rec.Active))
	return nil
}

// Get 不存在时返回 ErrSessionNotFound
func (r *Repo) Get(ctx context.Context, address string) (*domain.AccountSession, error) {
	addr := domain.NormalizeAddress(address)
	data, err := r.rdb.Get(ctx, r.keys.Session(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, addr)
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	var s domain.AccountSession
	if err := bigjson.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", addr, err)
	}
	return &s, nil
}

// Update 浅合并，WATCH 记录 key 防止并发覆盖
func (r *Repo) Update(ctx context.Context, address string, patch domain.SessionPatch) error {
	addr := domain.NormalizeAddress(address)
	key := r.keys.Session(addr)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, addr)
		}
		if err != nil {
			return unavailable("update", err)
		}
		var s domain.AccountSession
		if err := bigjson.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: decode session %s: %v", errCodec, addr, err)
		}
		patch.Apply(&s)
		s.Address = addr
		out, err := bigjson.Marshal(&s)
		if err != nil {
			return fmt.Errorf("%w: encode session %s: %v", errCodec, addr, err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, out, 0)
			if patch.Active != nil {
				if *patch.Active {
					p.SAdd(ctx, r.keys.Active(), addr)
				} else {
					p.SRem(ctx, r.keys.Active(), addr)
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return unavailable("update", err)
		}
		return err
	}

	// 乐观锁冲突时重试几次
	for i := 0; i < 3; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err == nil,
			errors.Is(err, domain.ErrSessionNotFound),
			errors.Is(err, domain.ErrStoreUnavailable),
			errors.Is(err, errCodec):
			return err
		default:
			// WATCH 本身失败
			return unavailable("update", err)
		}
	}
	return unavailable("update", redis.TxFailedErr)
}

// Delete 删除记录、索引和历史
func (r *Repo) Delete(ctx context.Context, address string) error {
	addr := domain.NormalizeAddress(address)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.keys.Session(addr), r.keys.History(addr))
		p.SRem(ctx, r.keys.Active(), addr)
		return nil
	})
	if err != nil {
		return unavailable("delete", err)
	}
	logger.Info(ctx, "session deleted", zap.String("address", addr))
	return nil
}

func (r *Repo) ListActive(ctx context.Context) ([]string, error) {
	addrs, err := r.rdb.SMembers(ctx, r.keys.Active()).Result()
	if err != nil {
		return nil, unavailable("list active", err)
	}
	return addrs, nil
}

// WipeAll 删除前缀下的所有数据，返回删除前的活跃会话数，不可恢复
func (r *Repo) WipeAll(ctx context.Context) (int, error) {
	count, err := r.rdb.SCard(ctx, r.keys.Active()).Result()
	if err != nil {
		return 0, unavailable("wipe", err)
	}

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.keys.All(), 200).Result()
		if err != nil {
			return 0, unavailable("wipe scan", err)
		}
		if len(keys) > 0 {
			if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
				return 0, unavailable("wipe del", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	logger.Warn(ctx, "registry wiped", zap.Int64("active_sessions", count))
	return int(count), nil
}
