package domain

import "math/big"

// NativeSymbol EVM 链原生币
const NativeSymbol = "ETH"

// DetectedDeposit 一个轮询周期内达到阈值的余额
type DetectedDeposit struct {
	ChainID     uint64
	TokenSymbol string
	Amount      *big.Int
}

// BalanceObservation 每个 (chain, token) 都会产生一条，便于排查
type BalanceObservation struct {
	ChainID        uint64
	TokenSymbol    string
	Balance        *big.Int
	Threshold      *big.Int
	AboveThreshold bool
	Err            error
}

// WalletScan 单个账户一次扫描的结果
type WalletScan struct {
	Session      *AccountSession
	Observations []BalanceObservation
	Deposits     []DetectedDeposit
}

// IsForward 存款已经在目标链上，只需要同链转给收款人
func (d DetectedDeposit) IsForward(dest DestinationConfig) bool {
	return d.ChainID == dest.DestinationChainID
}
