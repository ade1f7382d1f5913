package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/xerr"
)

// 定义http返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailErr 按错误链上的 CodeError 决定 HTTP 状态，对外只给固定文案
func FailErr(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	if code >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "http error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("biz_code", code),
			zap.Error(err),
		)
	}
	Fail(c, code, code, xerr.MapErrMsg(code))
}
