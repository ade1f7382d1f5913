package domain

import (
	"context"
	"math/big"

	"github.com/segmentio/encoding/json"
)

// BalanceReader 只读余额查询，token 为空表示原生币
type BalanceReader interface {
	BalanceOf(ctx context.Context, chainID uint64, token string, owner string) (*big.Int, error)
}

// ExecutionChannel 外部的权限执行服务
type ExecutionChannel interface {
	CheckEnabled(ctx context.Context, grant json.RawMessage) (EnabledMap, error)
	// Submit 返回结算句柄
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	Status(ctx context.Context, handle string) (MiningStatus, error)
}

// RouteQuoter 跨币种桥接路由/报价服务
type RouteQuoter interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResult, error)
}

// SessionRepository 会话注册表
type SessionRepository interface {
	Register(ctx context.Context, s *AccountSession) error
	Get(ctx context.Context, address string) (*AccountSession, error)
	Update(ctx context.Context, address string, patch SessionPatch) error
	Delete(ctx context.Context, address string) error
	ListActive(ctx context.Context) ([]string, error)
	WipeAll(ctx context.Context) (int, error)
}

// HistoryLedger 每个账户一条只追加的历史，最新的在前
type HistoryLedger interface {
	AppendHistory(ctx context.Context, address string, entry HistoryEntry) error
	GetHistory(ctx context.Context, address string, offset, limit int) ([]HistoryEntry, int, error)
}

// SettingsStore 运营可改的全局配置
type SettingsStore interface {
	FeeCollector(ctx context.Context) (string, error)
	SetFeeCollector(ctx context.Context, addr string) error
}

// HeartbeatStore 最近一次轮询的开始时间
type HeartbeatStore interface {
	Beat(unixMilli int64)
	Last() int64
}
