package domain

import (
	"math/big"
	"time"
)

type HistoryKind string

const (
	KindBridge  HistoryKind = "bridge"
	KindForward HistoryKind = "forward"
	KindSweep   HistoryKind = "sweep"
)

type HistoryStatus string

const (
	StatusSuccess HistoryStatus = "success"
	StatusError   HistoryStatus = "error"
)

// HistoryEntry 写入后不可修改
type HistoryEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	Kind          HistoryKind   `json:"kind"`
	Status        HistoryStatus `json:"status"`
	TxHash        string        `json:"txHash,omitempty"`
	Error         string        `json:"error,omitempty"`
	TokenSymbol   string        `json:"tokenSymbol"`
	Amount        *big.Int      `json:"amount"`
	Fee           *big.Int      `json:"fee,omitempty"`
	SourceChainID uint64        `json:"sourceChainId"`
	DestChainID   uint64        `json:"destChainId"`
	Recipient     string        `json:"recipient"`
}
