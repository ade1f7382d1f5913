package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/internal/sweeper/service"
	"sweepbridge.com/pkg/common"
	"sweepbridge.com/pkg/xerr"
)

// CycleRunner 一轮轮询
type CycleRunner interface {
	Run(ctx context.Context) (*service.Summary, error)
}

type Sweep struct {
	Runner CycleRunner
	// 外部调度器给一次调用的执行预算
	Timeout time.Duration
}

// Trigger 外部调度器定时调用，鉴权在中间件里做。
// 账户级别的失败都在 errors 里，只有存储不可用才返回非 200。
func (h *Sweep) Trigger(c *gin.Context) {
	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	summary, err := h.Runner.Run(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			err = xerr.Wrap(err, xerr.StoreUnavailable, xerr.MapErrMsg(xerr.StoreUnavailable))
		}
		common.FailErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
