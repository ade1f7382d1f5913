package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
	"sweepbridge.com/pkg/common"
	"sweepbridge.com/pkg/ratelimit"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.RequestIDFromGin(c))
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestBearerSecret(t *testing.T) {
	r := newRouter(BearerSecret(func() string { return "s3cret" }))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "ok", header: "Bearer s3cret", want: http.StatusOK},
		{name: "case insensitive scheme", header: "bearer s3cret", want: http.StatusOK},
		{name: "wrong secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "basic", header: "Basic s3cret", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBearerSecret_EmptySecretRejects(t *testing.T) {
	r := newRouter(BearerSecret(func() string { return "" }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReqIdAndRecover(t *testing.T) {
	r := newRouter(ReqId(), Recover())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(common.HeaderRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-1", w.Body.String())
	assert.Equal(t, "rid-1", w.Header().Get(common.HeaderRequestID))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newRouter(RateLimit(ratelimit.NewStore(rate.Limit(0.001), 1, 0)))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
