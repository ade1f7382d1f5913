package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"sweepbridge.com/internal/sweeper/handler"
	"sweepbridge.com/internal/sweeper/http/router"
	"sweepbridge.com/pkg/middleware"
	"sweepbridge.com/pkg/ratelimit"
)

type Options struct {
	Service string
	Addr    string
	// 为空时 /metrics 挂在业务端口上
	MetricsAddr string
	// false 时不挂 prometheus 中间件，单测用
	EnableMetrics bool
	RPS           float64
	Burst         int
	// 每次请求都读取，配置热更新后立即生效
	Secret func() string
}

type Handlers struct {
	Sweep   *handler.Sweep
	Status  *handler.Status
	Account *handler.Account
}

// NewEngine 组装中间件和路由
func NewEngine(ctx context.Context, opt Options, h Handlers) *gin.Engine {
	store := ratelimit.NewStore(rate.Limit(opt.RPS), opt.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	if opt.EnableMetrics {
		p := ginprom.NewPrometheus("sweeper")
		if opt.MetricsAddr != "" {
			p.SetListenAddress(opt.MetricsAddr)
		}
		p.Use(r)
	}
	r.Use(
		otelgin.Middleware(opt.Service),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(store),
	)

	auth := middleware.BearerSecret(opt.Secret)
	api := r.Group("/api")
	router.Cron(api, h.Sweep, auth)
	router.Account(api, h.Account, auth)
	router.Status(api, h.Status)
	return r
}

func NewServer(addr string, engine *gin.Engine) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: 10 * time.Second,
		// 触发接口会同步跑完一整轮
		WriteTimeout:   5 * time.Minute,
		MaxHeaderBytes: 1 << 20,
	}
}
