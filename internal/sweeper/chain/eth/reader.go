package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/logger"
)

// Client ethclient.Client 中用到的部分
type Client interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type node struct {
	client  Client
	limiter *rate.Limiter
}

// Reader 每条链一个 RPC 客户端，查询前先过该链的限流
type Reader struct {
	nodes map[uint64]*node
}

var _ domain.BalanceReader = (*Reader)(nil)

// Dial 连接所有配置的链
func Dial(ctx context.Context, chains []config.ChainConfig) (*Reader, error) {
	r := &Reader{nodes: make(map[uint64]*node, len(chains))}
	for _, ch := range chains {
		client, err := ethclient.DialContext(ctx, ch.RPCURL)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("dial chain %d: %w", ch.ID, err)
		}
		r.Add(ch.ID, client, ch.RPS)
		logger.Info(ctx, "chain rpc connected", zap.Uint64("chain_id", ch.ID), zap.String("name", ch.Name))
	}
	return r, nil
}

func NewReader() *Reader {
	return &Reader{nodes: make(map[uint64]*node)}
}

// Add rps <= 0 表示不限流
func (r *Reader) Add(chainID uint64, client Client, rps float64) {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	r.nodes[chainID] = &node{client: client, limiter: rate.NewLimiter(limit, burst)}
}

// BalanceOf token 为空查原生币，否则 eth_call balanceOf
func (r *Reader) BalanceOf(ctx context.Context, chainID uint64, token string, owner string) (*big.Int, error) {
	n, ok := r.nodes[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: chain %d not configured", domain.ErrBalanceQueryFailed, chainID)
	}
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBalanceQueryFailed, err)
	}

	account := common.HexToAddress(owner)
	if token == "" {
		bal, err := n.client.BalanceAt(ctx, account, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: chain %d native: %v", domain.ErrBalanceQueryFailed, chainID, err)
		}
		return bal, nil
	}

	data, err := tokenABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("%w: pack balanceOf: %v", domain.ErrBalanceQueryFailed, err)
	}
	to := common.HexToAddress(token)
	out, err := n.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: chain %d token %s: %v", domain.ErrBalanceQueryFailed, chainID, token, err)
	}
	res, err := tokenABI.Unpack("balanceOf", out)
	if err != nil || len(res) == 0 {
		return nil, fmt.Errorf("%w: chain %d token %s: bad balanceOf result", domain.ErrBalanceQueryFailed, chainID, token)
	}
	bal, ok := res[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: chain %d token %s: unexpected type %T", domain.ErrBalanceQueryFailed, chainID, token, res[0])
	}
	return bal, nil
}

// Close 关闭底层连接
func (r *Reader) Close() {
	for _, n := range r.nodes {
		if c, ok := n.client.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
