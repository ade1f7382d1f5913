package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"sweepbridge.com/pkg/metrics"
)

// ErrBreakerOpen 熔断器拒绝，调用没有真正发出去
var ErrBreakerOpen = errors.New("circuit breaker open")

type Rule struct {
	// Half-Open 状态允许通过的探测请求数
	MaxRequests uint32 `mapstructure:"maxRequests"`
	// Closed 状态计数窗口
	Interval time.Duration `mapstructure:"interval"`
	// Open 状态持续时间，到期进入 Half-Open
	Timeout time.Duration `mapstructure:"timeout"`
	// 连续失败阈值
	TripConsecutiveFailures uint32 `mapstructure:"consecutiveFailures"`
}

// Permanent 由调用方的错误实现：true 表示是请求本身的问题 (4xx)，不代表下游不健康
type Permanent interface {
	Permanent() bool
}

// Manager 按下游操作名懒加载熔断器
type Manager struct {
	mu      sync.RWMutex
	m       map[string]*gobreaker.CircuitBreaker[any]
	service string
	rule    Rule
}

func NewManager(service string, rule Rule) *Manager {
	if rule.MaxRequests == 0 {
		rule.MaxRequests = 1
	}
	if rule.Timeout <= 0 {
		rule.Timeout = 30 * time.Second
	}
	if rule.Interval <= 0 {
		rule.Interval = time.Minute
	}
	if rule.TripConsecutiveFailures == 0 {
		rule.TripConsecutiveFailures = 5
	}
	return &Manager{
		m:       make(map[string]*gobreaker.CircuitBreaker[any], 8),
		service: service,
		rule:    rule,
	}
}

func (m *Manager) Get(method string) *gobreaker.CircuitBreaker[any] {
	m.mu.RLock()
	cb := m.m[method]
	m.mu.RUnlock()
	if cb != nil {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb = m.m[method]; cb != nil {
		return cb
	}

	rule := m.rule
	service := m.service
	cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        method,
		MaxRequests: rule.MaxRequests,
		Interval:    rule.Interval,
		Timeout:     rule.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= rule.TripConsecutiveFailures
		},
		IsSuccessful: isSuccessfulForBreaker,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CBState.WithLabelValues(service, name).Set(float64(to))
		},
	})
	m.m[method] = cb
	return cb
}

// Execute 通过 method 对应的熔断器执行 fn
func Execute[T any](m *Manager, method string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := m.Get(method).Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CBRejectTotal.WithLabelValues(m.service, method).Inc()
		return zero, ErrBreakerOpen
	}
	if err != nil {
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

func isSuccessfulForBreaker(err error) bool {
	if err == nil {
		return true
	}
	var p Permanent
	if errors.As(err, &p) && p.Permanent() {
		return true
	}
	return false
}
