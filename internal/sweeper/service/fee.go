package service

import "math/big"

const bpsDenominator = 10000

// ComputeFee min(amount * bps / 10000, cap)，cap 为 nil 表示不封顶
func ComputeFee(amount *big.Int, basisPoints int64, feeCap *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || basisPoints <= 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(basisPoints))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	if feeCap != nil && fee.Cmp(feeCap) > 0 {
		fee.Set(feeCap)
	}
	return fee
}
