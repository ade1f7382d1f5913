package scanner

import (
	"math/big"

	"sweepbridge.com/internal/sweeper/domain"
)

// Detect 余额 >= 阈值才算存款，查询失败的直接跳过
func Detect(observations []domain.BalanceObservation) []domain.DetectedDeposit {
	var out []domain.DetectedDeposit
	for _, o := range observations {
		if o.Err != nil || o.Balance == nil || o.Threshold == nil {
			continue
		}
		if o.Balance.Cmp(o.Threshold) < 0 {
			continue
		}
		out = append(out, domain.DetectedDeposit{
			ChainID:     o.ChainID,
			TokenSymbol: o.TokenSymbol,
			Amount:      new(big.Int).Set(o.Balance),
		})
	}
	return out
}

// Actionable 过滤掉已经在目标链且收款人就是自己的存款，其余保持发现顺序
func Actionable(deposits []domain.DetectedDeposit, dest domain.DestinationConfig) []domain.DetectedDeposit {
	out := make([]domain.DetectedDeposit, 0, len(deposits))
	for _, d := range deposits {
		if d.ChainID == dest.DestinationChainID && dest.RecipientIsSelf {
			continue
		}
		out = append(out, d)
	}
	return out
}
