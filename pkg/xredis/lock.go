package xredis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1]: 锁的 key
// ARGV[1]: 锁的 token，只有持有者才能删
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

var unlock = redis.NewScript(unlockScript)

// DistLock 基于 SETNX 的单实例锁，带过期时间防止持有者崩溃后死锁
type DistLock struct {
	client     redis.UniversalClient
	key        string
	token      string
	expiration time.Duration
}

func NewDistLock(client redis.UniversalClient, key string, expiration time.Duration) *DistLock {
	return &DistLock{
		client:     client,
		key:        key,
		token:      uuid.New().String(), // 每个锁实例生成唯一的 Token
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞，一次性）
func (l *DistLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Unlock 安全释放锁，返回 false 表示锁已过期或被别人持有
func (l *DistLock) Unlock(ctx context.Context) (bool, error) {
	res, err := unlock.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
