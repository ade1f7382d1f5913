package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"sweepbridge.com/pkg/common"
	"sweepbridge.com/pkg/xerr"
)

// BearerSecret 校验 Authorization: Bearer <secret>，secret 为空时一律拒绝
func BearerSecret(secret func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		want := secret()
		if want == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
			subtle.ConstantTimeCompare([]byte(parts[1]), []byte(want)) != 1 {
			common.Fail(c, http.StatusUnauthorized, xerr.Unauthorized, xerr.MapErrMsg(xerr.Unauthorized))
			c.Abort()
			return
		}
		c.Next()
	}
}
