package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"sweepbridge.com/pkg/common"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/metrics"
	"sweepbridge.com/pkg/ratelimit"
	"sweepbridge.com/pkg/xerr"
)

func RateLimit(store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := c.ClientIP() + ":" + route

		if !store.Allow(key) {
			// 限流属于可控拒绝，不打堆栈
			logger.Warn(c.Request.Context(), "http rate limited",
				zap.String("ip", c.ClientIP()),
				zap.String("route", route),
			)
			metrics.RateLimitBlockTotal.WithLabelValues(route).Inc()
			common.Fail(c, http.StatusTooManyRequests, xerr.TooManyRequests, xerr.MapErrMsg(xerr.TooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
