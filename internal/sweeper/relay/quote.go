package relay

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/ratelimit"
)

// QuoteClient 跨链桥接路由/报价服务
type QuoteClient struct {
	c *client
}

var _ domain.RouteQuoter = (*QuoteClient)(nil)

func NewQuoteClient(cfg config.QuoteConfig, rule ratelimit.Rule) *QuoteClient {
	return &QuoteClient{c: newClient("quote", cfg.BaseURL, "", cfg.Timeout, rule)}
}

type quoteRequest struct {
	InputToken         string   `json:"inputToken"`
	OutputToken        string   `json:"outputToken"`
	OriginChainID      uint64   `json:"originChainId"`
	DestinationChainID uint64   `json:"destinationChainId"`
	Amount             *big.Int `json:"amount"`
	Depositor          string   `json:"depositor"`
	Recipient          string   `json:"recipient"`
}

type quoteResponse struct {
	SimulationSuccess bool          `json:"simulationSuccess"`
	Reason            string        `json:"reason"`
	ApprovalCalls     []domain.Call `json:"approvalCalls"`
	SwapCall          *domain.Call  `json:"swapCall"`
	OutputAmount      *big.Int      `json:"outputAmount"`
}

// Quote 询价并返回 approve 和 bridge 调用
func (q *QuoteClient) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	body := quoteRequest{
		InputToken:         req.InputToken,
		OutputToken:        req.OutputToken,
		OriginChainID:      req.OriginChainID,
		DestinationChainID: req.DestinationChain,
		Amount:             req.Amount,
		Depositor:          req.Depositor,
		Recipient:          req.Recipient,
	}
	var resp quoteResponse
	if err := q.c.do(ctx, "quote", http.MethodPost, "/v1/swap/quote", body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQuoteService, err)
	}
	if !resp.SimulationSuccess {
		return nil, fmt.Errorf("%w: simulation failed: %s", domain.ErrQuoteService, resp.Reason)
	}
	if resp.SwapCall == nil {
		return nil, fmt.Errorf("%w: missing swap call", domain.ErrQuoteService)
	}

	return &domain.QuoteResult{
		Approvals:    resp.ApprovalCalls,
		Swap:         *resp.SwapCall,
		OutputAmount: resp.OutputAmount,
	}, nil
}
