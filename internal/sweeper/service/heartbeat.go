package service

import (
	"sync/atomic"
	"time"

	"sweepbridge.com/internal/sweeper/domain"
)

// Heartbeat 进程内的最近一次轮询时间，重启后清零
type Heartbeat struct {
	last atomic.Int64
}

var _ domain.HeartbeatStore = (*Heartbeat)(nil)

func (h *Heartbeat) Beat(unixMilli int64) { h.last.Store(unixMilli) }

// Last 没有心跳时为 0
func (h *Heartbeat) Last() int64 { return h.last.Load() }

// Since 距离上次心跳的时长，ok=false 表示还没有跑过
func (h *Heartbeat) Since(now time.Time) (time.Duration, bool) {
	ms := h.Last()
	if ms == 0 {
		return 0, false
	}
	return now.Sub(time.UnixMilli(ms)), true
}
