package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"sweepbridge.com/pkg/common"
)

func ReqId() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(common.HeaderRequestID)
		if rid == "" {
			rid = common.New()
		}
		c.Set(common.CtxKeyRequestID, rid)
		c.Header(common.HeaderRequestID, rid)
		// 写入 request context，logger 会自动带上 request_id
		ctx := context.WithValue(c.Request.Context(), common.CtxKeyRequestID, rid)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
