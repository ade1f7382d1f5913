package scanner

import (
	"context"
	"math/big"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"sweepbridge.com/internal/sweeper/catalog"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/logger"
	"sweepbridge.com/pkg/metrics"
)

// Scanner 单个账户的余额扫描
type Scanner struct {
	catalog *catalog.Catalog
	reader  domain.BalanceReader
}

func New(cat *catalog.Catalog, reader domain.BalanceReader) *Scanner {
	return &Scanner{catalog: cat, reader: reader}
}

type query struct {
	chainID uint64
	symbol  string
	token   string
}

// Scan 并发查询所有 (监控链 x token)，单个查询失败只记在 observation 上
func (s *Scanner) Scan(ctx context.Context, session *domain.AccountSession) *domain.WalletScan {
	dest := session.Destination
	var queries []query

	for _, chainID := range s.catalog.WatchedChains(dest.DestinationChainID, dest.RecipientIsSelf) {
		for _, symbol := range s.catalog.TokensOn(chainID) {
			addr, err := s.catalog.Address(symbol, chainID)
			if err != nil {
				continue
			}
			queries = append(queries, query{chainID: chainID, symbol: symbol, token: addr})
		}
	}

	observations := make([]domain.BalanceObservation, len(queries))
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			observations[i] = s.observe(ctx, session.Address, q)
			return nil
		})
	}
	_ = g.Wait()

	return &domain.WalletScan{
		Session:      session,
		Observations: observations,
		Deposits:     Detect(observations),
	}
}

func (s *Scanner) observe(ctx context.Context, owner string, q query) domain.BalanceObservation {
	obs := domain.BalanceObservation{
		ChainID:     q.chainID,
		TokenSymbol: q.symbol,
		Threshold:   s.catalog.MinAmount(q.symbol),
	}
	bal, err := s.reader.BalanceOf(ctx, q.chainID, q.token, owner)
	if err != nil {
		metrics.BalanceQueryErrors.WithLabelValues(s.catalog.ChainName(q.chainID)).Inc()
		logger.Warn(ctx, "balance query failed",
			zap.String("address", owner),
			zap.Uint64("chain_id", q.chainID),
			zap.String("token", q.symbol),
			zap.Error(err),
		)
		obs.Err = err
		return obs
	}
	if bal == nil {
		bal = new(big.Int)
	}
	obs.Balance = bal
	obs.AboveThreshold = bal.Cmp(obs.Threshold) >= 0
	return obs
}
