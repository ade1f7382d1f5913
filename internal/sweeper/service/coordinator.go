package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/internal/sweeper/scanner"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/metrics"
	"sweepbridge.com/pkg/safe"
)

// WalletScanner 单账户余额扫描
type WalletScanner interface {
	Scan(ctx context.Context, session *domain.AccountSession) *domain.WalletScan
}

// AccountExecutor 单账户存款执行
type AccountExecutor interface {
	Execute(ctx context.Context, session *domain.AccountSession, deposits []domain.DetectedDeposit, feeCollector string) (*AccountResult, error)
}

// Locker 防止两轮重叠，每轮新建一个
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) (bool, error)
}

type Bridged struct {
	Address string `json:"address"`
	TxHash  string `json:"txHash"`
}

type Failure struct {
	Address string `json:"address"`
	Error   string `json:"error"`
}

// Summary 一轮的汇总，也是触发接口的响应体
type Summary struct {
	CycleID   string    `json:"cycleId"`
	Skipped   bool      `json:"skipped,omitempty"`
	Processed int       `json:"processed"`
	Bridged   []Bridged `json:"bridged"`
	Errors    []Failure `json:"errors"`
	Stale     int       `json:"stale"`
	Deferred  int       `json:"deferred"`
}

type CoordinatorConfig struct {
	SchemaVersion int
	// 剩余时间小于它就不再启动新的账户任务
	MiningTimeout time.Duration
}

// Coordinator 一轮轮询的入口
type Coordinator struct {
	sessions  domain.SessionRepository
	settings  domain.SettingsStore
	scanner   WalletScanner
	executor  AccountExecutor
	heartbeat domain.HeartbeatStore
	newLock   func() Locker
	cfg       CoordinatorConfig
	tracer    trace.Tracer
	now       func() time.Time
}

// NewCoordinator newLock 可以为 nil，此时不加锁
func NewCoordinator(sessions domain.SessionRepository, settings domain.SettingsStore, sc WalletScanner,
	ex AccountExecutor, hb domain.HeartbeatStore, newLock func() Locker, cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		settings:  settings,
		scanner:   sc,
		executor:  ex,
		heartbeat: hb,
		newLock:   newLock,
		cfg:       cfg,
		tracer:    otel.Tracer("sweeper/coordinator"),
		now:       time.Now,
	}
}

// Run 执行一轮。只有存储不可用才返回 error，账户级别的失败都在 Summary.Errors 里
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	cycleID := uuid.NewString()
	ctx = logger.WithCycle(ctx, cycleID)
	summary := &Summary{CycleID: cycleID, Bridged: []Bridged{}, Errors: []Failure{}}

	if c.newLock != nil {
		lock := c.newLock()
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: cycle lock: %v", domain.ErrStoreUnavailable, err)
		}
		if !ok {
			logger.Warn(ctx, "previous cycle still running, skip")
			summary.Skipped = true
			return summary, nil
		}
		defer func() {
			if _, err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Error(ctx, "release cycle lock failed", zap.Error(err))
			}
		}()
	}

	ctx, span := c.tracer.Start(ctx, "sweep.cycle", trace.WithAttributes(attribute.String("cycle_id", cycleID)))
	defer span.End()

	start := c.now()
	c.heartbeat.Beat(start.UnixMilli())
	metrics.LastCycleTimestamp.Set(float64(start.Unix()))

	sessions, feeCollector, err := c.load(ctx, summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	loadDone := c.now()

	scans := c.scanAll(ctx, sessions, summary)
	scanDone := c.now()

	// 存储在加载之后断开也不能继续提交，否则历史记不下来
	if err := c.touchPolled(ctx, scans, scanDone); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		return nil, err
	}

	var pending []*domain.WalletScan
	for _, s := range scans {
		if len(s.Deposits) > 0 {
			pending = append(pending, s)
		}
	}
	if err := c.executeAll(ctx, pending, feeCollector, summary); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		logger.Error(ctx, "store unavailable during execution, cycle aborted",
			zap.Int("bridged", len(summary.Bridged)), zap.Error(err))
		return nil, err
	}
	execDone := c.now()

	metrics.CycleDuration.WithLabelValues("load").Observe(loadDone.Sub(start).Seconds())
	metrics.CycleDuration.WithLabelValues("scan").Observe(scanDone.Sub(loadDone).Seconds())
	metrics.CycleDuration.WithLabelValues("execute").Observe(execDone.Sub(scanDone).Seconds())
	metrics.CycleDuration.WithLabelValues("total").Observe(execDone.Sub(start).Seconds())
	metrics.Accounts.WithLabelValues("scanned").Set(float64(summary.Processed))
	metrics.Accounts.WithLabelValues("stale").Set(float64(summary.Stale))
	metrics.Accounts.WithLabelValues("needs_action").Set(float64(len(pending)))

	span.SetAttributes(
		attribute.Int("processed", summary.Processed),
		attribute.Int("bridged", len(summary.Bridged)),
		attribute.Int("errors", len(summary.Errors)),
	)
	logger.Info(ctx, "sweep cycle finished",
		zap.Int("processed", summary.Processed),
		zap.Int("needs_action", len(pending)),
		zap.Int("no_action", len(scans)-len(pending)),
		zap.Int("stale", summary.Stale),
		zap.Int("deferred", summary.Deferred),
		zap.Int("bridged", len(summary.Bridged)),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("load", loadDone.Sub(start)),
		zap.Duration("scan", scanDone.Sub(loadDone)),
		zap.Duration("execute", execDone.Sub(scanDone)),
		zap.Duration("total", execDone.Sub(start)),
	)
	return summary, nil
}

// load 读取活跃账户，跳过 schema 版本不一致的记录
func (c *Coordinator) load(ctx context.Context, summary *Summary) ([]*domain.AccountSession, string, error) {
	ctx, span := c.tracer.Start(ctx, "sweep.load")
	defer span.End()

	addrs, err := c.sessions.ListActive(ctx)
	if err != nil {
		return nil, "", err
	}
	metrics.Accounts.WithLabelValues("active").Set(float64(len(addrs)))

	feeCollector, err := c.settings.FeeCollector(ctx)
	if err != nil {
		return nil, "", err
	}

	sessions := make([]*domain.AccountSession, 0, len(addrs))
	for _, addr := range addrs {
		s, err := c.sessions.Get(ctx, addr)
		switch {
		case errors.Is(err, domain.ErrStoreUnavailable):
			return nil, "", err
		case err != nil:
			logger.Warn(ctx, "load session failed, skip", zap.String("address", addr), zap.Error(err))
			continue
		}
		if s.SchemaVersion != c.cfg.SchemaVersion {
			summary.Stale++
			logger.Info(ctx, "stale session skipped, user must re-run setup",
				zap.String("address", addr),
				zap.Int("schema_version", s.SchemaVersion),
				zap.Int("expected", c.cfg.SchemaVersion),
			)
			continue
		}
		if !s.Active {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, feeCollector, nil
}

// scanAll 所有账户并发扫描，并发度由底层 RPC 限流决定
func (c *Coordinator) scanAll(ctx context.Context, sessions []*domain.AccountSession, summary *Summary) []*domain.WalletScan {
	ctx, span := c.tracer.Start(ctx, "sweep.scan", trace.WithAttributes(attribute.Int("accounts", len(sessions))))
	defer span.End()

	scans := make([]*domain.WalletScan, len(sessions))
	errs := make([]error, len(sessions))
	var g errgroup.Group
	for i, s := range sessions {
		g.Go(func() error {
			errs[i] = safe.Run(ctx, func(ctx context.Context) error {
				scans[i] = c.scanner.Scan(ctx, s)
				return nil
			})
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.WalletScan, 0, len(scans))
	for i, s := range scans {
		summary.Processed++
		if errs[i] != nil || s == nil {
			if errs[i] == nil {
				errs[i] = errors.New("empty scan result")
			}
			summary.Errors = append(summary.Errors, Failure{
				Address: sessions[i].Address,
				Error:   fmt.Errorf("%w: scan: %v", domain.ErrAccountProcessingFailed, errs[i]).Error(),
			})
			// 扫描失败也算轮询过
			out = append(out, &domain.WalletScan{Session: sessions[i]})
			continue
		}
		s.Deposits = scanner.Actionable(s.Deposits, s.Session.Destination)
		out = append(out, s)
	}
	return out
}

// touchPolled 不论结果如何都更新 lastPolledAt，存储不可用时直接返回
func (c *Coordinator) touchPolled(ctx context.Context, scans []*domain.WalletScan, at time.Time) error {
	at = at.UTC()
	for _, s := range scans {
		err := c.sessions.Update(ctx, s.Session.Address, domain.SessionPatch{LastPolledAt: &at})
		switch {
		case errors.Is(err, domain.ErrStoreUnavailable):
			return err
		case err != nil:
			logger.Warn(ctx, "update lastPolledAt failed", zap.String("address", s.Session.Address), zap.Error(err))
		}
	}
	return nil
}

// executeAll 账户之间并发，单个账户的 panic/错误只影响它自己。
// 只有存储不可用会返回 error，此时不再启动新的账户任务
func (c *Coordinator) executeAll(ctx context.Context, pending []*domain.WalletScan, feeCollector string, summary *Summary) error {
	ctx, span := c.tracer.Start(ctx, "sweep.execute", trace.WithAttributes(attribute.Int("accounts", len(pending))))
	defer span.End()

	var (
		mu       sync.Mutex
		g        errgroup.Group
		storeErr error
	)
	for _, scan := range pending {
		session := scan.Session
		mu.Lock()
		down := storeErr != nil
		mu.Unlock()
		if down {
			break
		}
		if c.deadlineNear(ctx) {
			mu.Lock()
			summary.Deferred++
			mu.Unlock()
			logger.Warn(ctx, "invocation deadline near, account deferred", zap.String("address", session.Address))
			continue
		}
		g.Go(func() error {
			var res *AccountResult
			err := safe.Run(ctx, func(ctx context.Context) error {
				var err error
				res, err = c.executor.Execute(ctx, session, scan.Deposits, feeCollector)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				for _, s := range res.Successes {
					summary.Bridged = append(summary.Bridged, Bridged{Address: s.Address, TxHash: s.TxHash})
				}
			}
			if errors.Is(err, domain.ErrStoreUnavailable) {
				if storeErr == nil {
					storeErr = err
				}
				return nil
			}
			if err != nil {
				if !errors.Is(err, domain.ErrAccountProcessingFailed) {
					err = fmt.Errorf("%w: %w", domain.ErrAccountProcessingFailed, err)
				}
				logger.Error(ctx, "account processing failed", zap.String("address", session.Address), zap.Error(err))
				summary.Errors = append(summary.Errors, Failure{Address: session.Address, Error: err.Error()})
				return nil
			}
			for _, f := range res.Failures {
				summary.Errors = append(summary.Errors, Failure{Address: f.Address, Error: f.Err.Error()})
			}
			return nil
		})
	}
	_ = g.Wait()
	metrics.Accounts.WithLabelValues("deferred").Set(float64(summary.Deferred))
	return storeErr
}

func (c *Coordinator) deadlineNear(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok || c.cfg.MiningTimeout <= 0 {
		return false
	}
	return deadline.Sub(c.now()) < c.cfg.MiningTimeout
}
