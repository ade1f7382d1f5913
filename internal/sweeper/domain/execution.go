package domain

import (
	"math/big"
	"time"

	"github.com/segmentio/encoding/json"
)

// Call 一次合约调用
type Call struct {
	To    string   `json:"to"`
	Value *big.Int `json:"value"`
	Data  string   `json:"data"`
}

// ActivationMode 提交时是否需要顺带在链上启用权限
type ActivationMode string

const (
	ModeEnableAndUse ActivationMode = "ENABLE_AND_USE"
	ModeUse          ActivationMode = "USE"
)

type MiningStatus string

const (
	MiningPending      MiningStatus = "pending"
	MiningMinedSuccess MiningStatus = "minedSuccess"
	MiningMinedFailure MiningStatus = "minedFailure"
	MiningReverted     MiningStatus = "reverted"
)

// Done 是否已经出结果
func (s MiningStatus) Done() bool {
	return s == MiningMinedSuccess || s == MiningMinedFailure || s == MiningReverted
}

// EnabledMap permissionId -> chainId -> enabled
type EnabledMap map[string]map[uint64]bool

// EnabledOn 任意一个 permission 在 chainID 上已启用即可
func (m EnabledMap) EnabledOn(chainID uint64) bool {
	for _, chains := range m {
		if chains[chainID] {
			return true
		}
	}
	return false
}

// SubmitRequest 提交给执行通道的一次动作
type SubmitRequest struct {
	// 解密后的 session key，只在内存中传递
	SessionKey      string
	PermissionGrant json.RawMessage
	Mode            ActivationMode
	Calls           []Call
	ChainID         uint64
	ValidAfter      time.Time
	ValidUntil      time.Time
}

// QuoteRequest 跨币种桥接询价
type QuoteRequest struct {
	InputToken       string
	OutputToken      string
	OriginChainID    uint64
	DestinationChain uint64
	Amount           *big.Int
	Depositor        string
	Recipient        string
}

// QuoteResult 执行桥接所需的调用。Approvals 可能为空，此时由调用方按 Swap.To 补 approve
type QuoteResult struct {
	Approvals    []Call
	Swap         Call
	OutputAmount *big.Int
}
