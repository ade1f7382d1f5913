package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"
	"sweepbridge.com/internal/sweeper/catalog"
	"sweepbridge.com/internal/sweeper/chain/eth"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/metrics"
	"sweepbridge.com/pkg/seal"
)

// KeyOpener 解密 session key
type KeyOpener interface {
	Open(sealed string) (string, error)
}

type ExecutorConfig struct {
	FeeBasisPoints     int64
	Validity           time.Duration
	MiningPollInterval time.Duration
	MiningTimeout      time.Duration
}

// ActionResult 单个存款的处理结果
type ActionResult struct {
	Address string
	Deposit domain.DetectedDeposit
	Kind    domain.HistoryKind
	TxHash  string
	Err     error
}

// AccountResult 单个账户一轮的结果
type AccountResult struct {
	Address   string
	Successes []ActionResult
	Failures  []ActionResult
	// 等待上链失败后本轮放弃的存款数
	Abandoned int
}

// Executor 单个账户内的存款处理，账户之间互不共享状态
type Executor struct {
	catalog *catalog.Catalog
	channel domain.ExecutionChannel
	quoter  domain.RouteQuoter
	ledger  domain.HistoryLedger
	keys    KeyOpener
	cfg     ExecutorConfig
	now     func() time.Time
}

func NewExecutor(cat *catalog.Catalog, channel domain.ExecutionChannel, quoter domain.RouteQuoter,
	ledger domain.HistoryLedger, keys KeyOpener, cfg ExecutorConfig) *Executor {
	if cfg.MiningPollInterval <= 0 {
		cfg.MiningPollInterval = 2 * time.Second
	}
	if cfg.MiningTimeout <= 0 {
		cfg.MiningTimeout = 45 * time.Second
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 10 * time.Minute
	}
	return &Executor{
		catalog: cat,
		channel: channel,
		quoter:  quoter,
		ledger:  ledger,
		keys:    keys,
		cfg:     cfg,
		now:     time.Now,
	}
}

// action 一次要提交的动作
type action struct {
	deposit   domain.DetectedDeposit
	kind      domain.HistoryKind
	symbol    string
	destChain uint64
	recipient string
	fee       *big.Int
	calls     []domain.Call
}

// accountRun 一个账户一轮内的执行状态
type accountRun struct {
	session    *domain.AccountSession
	sessionKey string
	// 已启用权限的链，本轮 ENABLE_AND_USE 上链成功后也会加进来
	enabled      map[uint64]bool
	feeCollector string
	result       *AccountResult
	// 历史写不进去时不再提交新的动作
	storeErr error
}

// Execute 按发现顺序处理存款。
// 第一阶段：需要 ENABLE_AND_USE 的动作提交后等它上链，否则第二个启用请求会和第一个冲突；
// 第二阶段：剩下的动作依次提交，单个失败不影响后面的。
// 存储不可用时停止提交，返回已有结果和 ErrStoreUnavailable。
func (e *Executor) Execute(ctx context.Context, session *domain.AccountSession, deposits []domain.DetectedDeposit, feeCollector string) (*AccountResult, error) {
	result := &AccountResult{Address: session.Address}
	if len(deposits) == 0 {
		return result, nil
	}

	sessionKey, err := e.keys.Open(session.EncryptedSessionKey)
	if err != nil {
		return nil, fmt.Errorf("open session key: %w", err)
	}
	if err := checkSigner(session, sessionKey); err != nil {
		return nil, err
	}

	run := &accountRun{
		session:      session,
		sessionKey:   sessionKey,
		enabled:      make(map[uint64]bool),
		feeCollector: feeCollector,
		result:       result,
	}

	enabledMap, err := e.channel.CheckEnabled(ctx, session.PermissionGrant)
	if err != nil {
		if !errors.Is(err, domain.ErrPermissionCheckFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrPermissionCheckFailed, err)
		}
		logger.Error(ctx, "permission check failed", zap.String("address", session.Address), zap.Error(err))
		for _, d := range deposits {
			e.fail(ctx, run, e.describe(run, d), err)
		}
		return result, run.storeErr
	}
	for _, ch := range e.catalog.Chains() {
		if enabledMap.EnabledOn(ch.ID) {
			run.enabled[ch.ID] = true
		}
	}

	remaining, ok := e.activationPhase(ctx, run, deposits)
	if !ok {
		e.abandon(ctx, run, remaining)
		return result, run.storeErr
	}
	e.usePhase(ctx, run, remaining)
	return result, run.storeErr
}

// checkSigner 解出来的 key 必须对应注册时的 signer，记录为空时跳过
func checkSigner(session *domain.AccountSession, sessionKey string) error {
	if session.SessionSignerAddress == "" {
		return nil
	}
	signer, err := seal.SignerAddress(sessionKey)
	if err != nil {
		return fmt.Errorf("derive session signer: %w", err)
	}
	if !strings.EqualFold(signer, session.SessionSignerAddress) {
		return fmt.Errorf("session key signer %s does not match registered %s", signer, session.SessionSignerAddress)
	}
	return nil
}

func (e *Executor) abandon(ctx context.Context, run *accountRun, rest []domain.DetectedDeposit) {
	run.result.Abandoned = len(rest)
	msg := "activation not confirmed, remaining deposits deferred to next cycle"
	if run.storeErr != nil {
		msg = "store unavailable, remaining deposits deferred to next cycle"
	}
	logger.Warn(ctx, msg, zap.String("address", run.session.Address), zap.Int("abandoned", len(rest)))
}

// activationPhase 依次提交，遇到需要启用权限的动作时提交并等待上链。
// 返回剩余待提交的存款；false 表示等待失败，剩余存款本轮放弃。
func (e *Executor) activationPhase(ctx context.Context, run *accountRun, deposits []domain.DetectedDeposit) ([]domain.DetectedDeposit, bool) {
	for i, d := range deposits {
		if run.storeErr != nil {
			return deposits[i:], false
		}
		if e.modeFor(run, d.ChainID) != domain.ModeEnableAndUse {
			return deposits[i:], true
		}
		act := e.describe(run, d)
		handle, err := e.submit(ctx, run, &act, domain.ModeEnableAndUse)
		if err != nil {
			// 没上链就没启用，下一个仍然需要 ENABLE_AND_USE
			continue
		}
		if i == len(deposits)-1 {
			return nil, true
		}
		if err := e.waitMined(ctx, handle); err != nil {
			e.markMiningFailure(ctx, run, act, handle, err)
			return deposits[i+1:], false
		}
		run.enabled[d.ChainID] = true
	}
	return nil, true
}

// usePhase 剩余动作依次提交，只有遇到未启用的链才会退回第一阶段
func (e *Executor) usePhase(ctx context.Context, run *accountRun, deposits []domain.DetectedDeposit) {
	for i := 0; i < len(deposits); i++ {
		if run.storeErr != nil {
			e.abandon(ctx, run, deposits[i:])
			return
		}
		d := deposits[i]
		if e.modeFor(run, d.ChainID) == domain.ModeEnableAndUse {
			rest, ok := e.activationPhase(ctx, run, deposits[i:])
			if !ok {
				e.abandon(ctx, run, rest)
				return
			}
			deposits, i = rest, -1
			continue
		}
		act := e.describe(run, d)
		_, _ = e.submit(ctx, run, &act, domain.ModeUse)
	}
}

func (e *Executor) modeFor(run *accountRun, chainID uint64) domain.ActivationMode {
	if run.enabled[chainID] {
		return domain.ModeUse
	}
	return domain.ModeEnableAndUse
}

// describe 填好历史记录需要的字段，calls 在提交前才构建
func (e *Executor) describe(run *accountRun, d domain.DetectedDeposit) action {
	dest := run.session.Destination
	act := action{
		deposit:   d,
		kind:      domain.KindBridge,
		symbol:    d.TokenSymbol,
		destChain: dest.DestinationChainID,
		recipient: dest.Recipient(run.session.Address),
		fee:       new(big.Int),
	}
	if d.IsForward(dest) {
		act.kind = domain.KindForward
	}
	return act
}

// submit 构建调用并提交，结果写入历史和 result
func (e *Executor) submit(ctx context.Context, run *accountRun, act *action, mode domain.ActivationMode) (string, error) {
	var err error
	if act.kind == domain.KindForward {
		err = e.buildForward(act)
	} else {
		err = e.buildBridge(ctx, run, act)
	}
	if err != nil {
		e.fail(ctx, run, *act, err)
		return "", err
	}

	now := e.now()
	handle, err := e.channel.Submit(ctx, domain.SubmitRequest{
		SessionKey:      run.sessionKey,
		PermissionGrant: run.session.PermissionGrant,
		Mode:            mode,
		Calls:           act.calls,
		ChainID:         act.deposit.ChainID,
		ValidAfter:      now,
		ValidUntil:      now.Add(e.cfg.Validity),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSubmissionFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
		}
		e.fail(ctx, run, *act, err)
		return "", err
	}

	logger.Info(ctx, "action submitted",
		zap.String("address", run.session.Address),
		zap.String("kind", string(act.kind)),
		zap.String("mode", string(mode)),
		zap.Uint64("chain_id", act.deposit.ChainID),
		zap.String("token", act.deposit.TokenSymbol),
		zap.String("amount", e.catalog.Format(act.deposit.TokenSymbol, act.deposit.Amount)),
		zap.String("fee", e.catalog.Format(act.symbol, act.fee)),
		zap.String("tx_hash", handle),
	)
	metrics.ActionsTotal.WithLabelValues(string(act.kind), string(domain.StatusSuccess)).Inc()
	e.record(ctx, run, *act, domain.StatusSuccess, handle, nil)
	run.result.Successes = append(run.result.Successes, ActionResult{
		Address: run.session.Address,
		Deposit: act.deposit,
		Kind:    act.kind,
		TxHash:  handle,
	})
	return handle, nil
}

// buildForward 同链直接转给收款人，原生币先包装
func (e *Executor) buildForward(act *action) error {
	d := act.deposit
	symbol := e.catalog.Normalize(d.TokenSymbol, d.ChainID)
	token, err := e.catalog.Address(symbol, d.ChainID)
	if err != nil {
		return err
	}
	act.symbol = symbol

	var calls []domain.Call
	if strings.EqualFold(d.TokenSymbol, domain.NativeSymbol) {
		wrap, err := eth.WrapCall(token, d.Amount)
		if err != nil {
			return err
		}
		calls = append(calls, wrap)
	}
	transfer, err := eth.TransferCall(token, act.recipient, d.Amount)
	if err != nil {
		return err
	}
	act.calls = append(calls, transfer)
	return nil
}

// buildBridge 跨链：可选包装、可选手续费转账、报价服务返回的 approve + bridge
func (e *Executor) buildBridge(ctx context.Context, run *accountRun, act *action) error {
	d := act.deposit
	dest := run.session.Destination

	inSymbol := e.catalog.Normalize(d.TokenSymbol, d.ChainID)
	outSymbol := inSymbol
	if dest.RecipientTokenSymbol != "" {
		outSymbol = e.catalog.Normalize(dest.RecipientTokenSymbol, dest.DestinationChainID)
	}
	inToken, err := e.catalog.Address(inSymbol, d.ChainID)
	if err != nil {
		return err
	}
	outToken, err := e.catalog.Address(outSymbol, dest.DestinationChainID)
	if err != nil {
		return err
	}
	act.symbol = inSymbol

	var calls []domain.Call
	if strings.EqualFold(d.TokenSymbol, domain.NativeSymbol) {
		wrap, err := eth.WrapCall(inToken, d.Amount)
		if err != nil {
			return err
		}
		calls = append(calls, wrap)
	}

	amount := new(big.Int).Set(d.Amount)
	if inSymbol != outSymbol && run.feeCollector != "" {
		act.fee = ComputeFee(d.Amount, e.cfg.FeeBasisPoints, e.catalog.FeeCap(inSymbol))
		if act.fee.Sign() > 0 {
			feeCall, err := eth.TransferCall(inToken, run.feeCollector, act.fee)
			if err != nil {
				return err
			}
			calls = append(calls, feeCall)
			amount.Sub(amount, act.fee)
		}
	}

	quote, err := e.quoter.Quote(ctx, domain.QuoteRequest{
		InputToken:       inToken,
		OutputToken:      outToken,
		OriginChainID:    d.ChainID,
		DestinationChain: dest.DestinationChainID,
		Amount:           amount,
		Depositor:        run.session.Address,
		Recipient:        act.recipient,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrQuoteService) {
			err = fmt.Errorf("%w: %w", domain.ErrQuoteService, err)
		}
		return err
	}
	approvals := quote.Approvals
	if len(approvals) == 0 {
		// 报价服务认为已有额度时不返回 approve，这里按桥接金额补一个，保证本次调用自洽
		approve, err := eth.ApproveCall(inToken, quote.Swap.To, amount)
		if err != nil {
			return err
		}
		approvals = []domain.Call{approve}
	}
	calls = append(calls, approvals...)
	act.calls = append(calls, quote.Swap)
	return nil
}

// waitMined 固定间隔轮询状态，直到出结果或超时；查询出错按 pending 处理
func (e *Executor) waitMined(ctx context.Context, handle string) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.MiningTimeout)
	defer cancel()

	ticker := time.NewTicker(e.cfg.MiningPollInterval)
	defer ticker.Stop()
	for {
		status, err := e.channel.Status(ctx, handle)
		switch {
		case err != nil:
			logger.Debug(ctx, "mining status query failed", zap.String("tx_hash", handle), zap.Error(err))
		case status == domain.MiningMinedSuccess:
			return nil
		case status.Done():
			return fmt.Errorf("%w: %s is %s", domain.ErrMiningFailed, handle, status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not mined within %s", domain.ErrMiningTimeout, handle, e.cfg.MiningTimeout)
		case <-ticker.C:
		}
	}
}

// markMiningFailure 已提交成功的动作没有确认上链，改记为失败
func (e *Executor) markMiningFailure(ctx context.Context, run *accountRun, act action, handle string, err error) {
	res := run.result
	for i := len(res.Successes) - 1; i >= 0; i-- {
		if res.Successes[i].TxHash == handle {
			res.Successes = append(res.Successes[:i], res.Successes[i+1:]...)
			break
		}
	}
	logger.Error(ctx, "activation action not confirmed",
		zap.String("address", run.session.Address),
		zap.String("tx_hash", handle),
		zap.Error(err),
	)
	metrics.ActionsTotal.WithLabelValues(string(act.kind), string(domain.StatusError)).Inc()
	e.record(ctx, run, act, domain.StatusError, handle, err)
	res.Failures = append(res.Failures, ActionResult{
		Address: run.session.Address,
		Deposit: act.deposit,
		Kind:    act.kind,
		TxHash:  handle,
		Err:     err,
	})
}

func (e *Executor) fail(ctx context.Context, run *accountRun, act action, err error) {
	logger.Error(ctx, "action failed",
		zap.String("address", run.session.Address),
		zap.String("kind", string(act.kind)),
		zap.Uint64("chain_id", act.deposit.ChainID),
		zap.String("token", act.deposit.TokenSymbol),
		zap.String("error_kind", domain.ErrorKind(err)),
		zap.Error(err),
	)
	metrics.ActionsTotal.WithLabelValues(string(act.kind), string(domain.StatusError)).Inc()
	e.record(ctx, run, act, domain.StatusError, "", err)
	run.result.Failures = append(run.result.Failures, ActionResult{
		Address: run.session.Address,
		Deposit: act.deposit,
		Kind:    act.kind,
		Err:     err,
	})
}

// record 写历史失败打日志；存储不可用时记到 run 上，后续动作不再提交
func (e *Executor) record(ctx context.Context, run *accountRun, act action, status domain.HistoryStatus, txHash string, cause error) {
	entry := domain.HistoryEntry{
		Timestamp:     e.now().UTC(),
		Kind:          act.kind,
		Status:        status,
		TxHash:        txHash,
		TokenSymbol:   act.deposit.TokenSymbol,
		Amount:        act.deposit.Amount,
		SourceChainID: act.deposit.ChainID,
		DestChainID:   act.destChain,
		Recipient:     act.recipient,
	}
	if act.fee != nil && act.fee.Sign() > 0 {
		entry.Fee = act.fee
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := e.ledger.AppendHistory(ctx, run.session.Address, entry); err != nil {
		logger.Error(ctx, "append history failed", zap.String("address", run.session.Address), zap.Error(err))
		if errors.Is(err, domain.ErrStoreUnavailable) && run.storeErr == nil {
			run.storeErr = err
		}
	}
}
