package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/common"
)

type Status struct {
	Store    domain.HeartbeatStore
	Interval time.Duration
	Now      func() time.Time
}

type heartbeatResp struct {
	LastSweepAt     *time.Time `json:"lastSweepAt"`
	SecondsSince    *int64     `json:"secondsSince"`
	IntervalSeconds int64      `json:"intervalSeconds"`
}

// Heartbeat 给看板显示距离下次扫描还有多久
func (h *Status) Heartbeat(c *gin.Context) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	resp := heartbeatResp{IntervalSeconds: int64(h.Interval / time.Second)}
	if ms := h.Store.Last(); ms > 0 {
		at := time.UnixMilli(ms).UTC()
		since := int64(now().Sub(at) / time.Second)
		resp.LastSweepAt = &at
		resp.SecondsSince = &since
	}
	common.Success(c, resp)
}
