package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"sweepbridge.com/internal/sweeper/catalog"
	"sweepbridge.com/internal/sweeper/chain/eth"
	sweeperConfig "sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/handler"
	shttp "sweepbridge.com/internal/sweeper/http"
	"sweepbridge.com/internal/sweeper/relay"
	"sweepbridge.com/internal/sweeper/repo"
	"sweepbridge.com/internal/sweeper/scanner"
	"sweepbridge.com/internal/sweeper/service"
	vipConfig "sweepbridge.com/pkg/config"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/metrics"
	"sweepbridge.com/pkg/safe"
	"sweepbridge.com/pkg/seal"
	"sweepbridge.com/pkg/trace"
	"sweepbridge.com/pkg/xredis"
)

// 一轮最长不会超过触发超时，锁多留一点余量，进程崩了也能自动释放
const cycleLockTTL = 5 * time.Minute

type App struct {
	ctx context.Context
	// 启动时的快照，除了 cronSecret 其它配置改动需要重启
	cfg sweeperConfig.SweeperConfig
	// viper 热更新写这里，只在 watcher 协程里读写，和 cfg 不共享任何切片
	live       *sweeperConfig.SweeperConfig
	cronSecret atomic.Value

	rdb           *redis.Client
	reader        *eth.Reader
	heartbeat     *service.Heartbeat
	repo          *repo.Repo
	coordinator   *service.Coordinator
	traceShutDown func(context.Context) error
}

func New(configName string) (*App, error) {
	if configName == "" {
		configName = "sweeper"
	}
	app := &App{live: &sweeperConfig.SweeperConfig{}}
	// 先单独读一份快照，再开始监听，watcher 回调不会碰到 cfg
	if _, err := vipConfig.Load(configName, &app.cfg); err != nil {
		return nil, err
	}
	app.cfg.SetDefaults()
	if err := app.cfg.Validate(); err != nil {
		return nil, err
	}
	app.cronSecret.Store(app.cfg.HTTP.CronSecret)

	if _, err := vipConfig.LoadAndWatch(configName, app.live, app.reload); err != nil {
		return nil, err
	}
	return app, nil
}

// reload 配置文件变更回调，校验不过就保留旧值
func (app *App) reload() error {
	app.live.SetDefaults()
	if err := app.live.Validate(); err != nil {
		return err
	}
	app.cronSecret.Store(app.live.HTTP.CronSecret)
	return nil
}

func (app *App) secret() string {
	s, _ := app.cronSecret.Load().(string)
	return s
}

func (app *App) StartService(ctx context.Context) func() {
	logger.InitWithFile(app.cfg.Name, app.cfg.Log.Level, app.cfg.Log.File)
	metrics.MustRegister()
	app.ctx = ctx

	app.startTrace()
	app.startRedis()
	app.startChains()
	app.startCoordinator()

	var cleanUp = func() {
		app.reader.Close()
		_ = app.rdb.Close()
		_ = app.traceShutDown(context.Background())
		logger.Sync()
	}
	return cleanUp
}

func (app *App) StartHttp() *http.Server {
	engine := shttp.NewEngine(app.ctx, shttp.Options{
		Service:       app.cfg.Name,
		Addr:          app.cfg.HTTP.Addr,
		MetricsAddr:   app.cfg.Metrics.Addr,
		EnableMetrics: true,
		RPS:           app.cfg.HTTP.RateLimit.RPS,
		Burst:         app.cfg.HTTP.RateLimit.Burst,
		Secret:        app.secret,
	}, shttp.Handlers{
		Sweep:   &handler.Sweep{Runner: app.coordinator, Timeout: app.cfg.HTTP.TriggerTimeout},
		Status:  &handler.Status{Store: app.heartbeat, Interval: app.cfg.Schedule.Interval},
		Account: &handler.Account{Ledger: app.repo},
	})
	return shttp.NewServer(app.cfg.HTTP.Addr, engine)
}

// StartLocalTicker 本地开发没有外部调度器时用，进程内定时跑
func (app *App) StartLocalTicker() {
	every := app.cfg.Schedule.LocalInterval
	if every <= 0 {
		return
	}
	logger.Info(app.ctx, "local sweep ticker enabled", zap.Duration("interval", every))
	safe.GoCtx(app.ctx, func(ctx context.Context) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCtx, cancel := context.WithTimeout(ctx, app.cfg.HTTP.TriggerTimeout)
				if _, err := app.coordinator.Run(runCtx); err != nil {
					logger.Error(ctx, "local sweep failed", zap.Error(err))
				}
				cancel()
			}
		}
	})
}

func (app *App) startTrace() {
	shutdown, err := trace.InitTrace(app.cfg.Name, app.cfg.Trace.Endpoint)
	if err != nil {
		log.Fatal("init tracer error", err)
	}
	app.traceShutDown = shutdown
}

func (app *App) startRedis() {
	app.rdb = xredis.NewRedis(&app.cfg.Redis.Config)
	xredis.Instrument(app.rdb)
	xredis.StartPoolStats(app.ctx, app.rdb, 15*time.Second)
	app.repo = repo.New(app.rdb, app.cfg.Redis.KeyPrefix)
}

func (app *App) startChains() {
	dialCtx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()
	reader, err := eth.Dial(dialCtx, app.cfg.Chains)
	if err != nil {
		log.Fatalf("connect chains: %v", err)
	}
	app.reader = reader
}

func (app *App) startCoordinator() {
	sealer, err := seal.New(app.cfg.Crypto.MasterKey)
	if err != nil {
		log.Fatalf("init sealer: %v", err)
	}
	cat, err := catalog.New(&app.cfg)
	if err != nil {
		log.Fatalf("init token catalog: %v", err)
	}

	execution := relay.NewExecutionClient(app.cfg.Execution, app.cfg.Breaker)
	quoter := relay.NewQuoteClient(app.cfg.Quote, app.cfg.Breaker)
	executor := service.NewExecutor(cat, execution, quoter, app.repo, sealer, service.ExecutorConfig{
		FeeBasisPoints:     app.cfg.Fee.BasisPoints,
		Validity:           app.cfg.Execution.Validity,
		MiningPollInterval: app.cfg.Execution.MiningPollInterval,
		MiningTimeout:      app.cfg.Execution.MiningTimeout,
	})

	lockKey := app.repo.Keys().CycleLock()
	newLock := func() service.Locker {
		return xredis.NewDistLock(app.rdb, lockKey, cycleLockTTL)
	}

	app.heartbeat = &service.Heartbeat{}
	app.coordinator = service.NewCoordinator(
		app.repo, app.repo, scanner.New(cat, app.reader), executor, app.heartbeat, newLock,
		service.CoordinatorConfig{
			SchemaVersion: app.cfg.Schema.Version,
			MiningTimeout: app.cfg.Execution.MiningTimeout,
		},
	)
}

// IsServerClosed ListenAndServe 正常关闭时返回的错误
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
