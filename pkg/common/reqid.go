package common

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"sweepbridge.com/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-Id"
	CtxKeyRequestID = logger.RequestIdKey
)

func New() string { return uuid.NewString() }

// 获取id
func RequestIDFromGin(c *gin.Context) string {
	if v, ok := c.Get(CtxKeyRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
