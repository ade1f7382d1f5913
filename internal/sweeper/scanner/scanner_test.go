package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sweepbridge.com/internal/sweeper/catalog"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
)

type fakeReader struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	fail     map[string]bool
	calls    int
}

func key(chainID uint64, token string) string { return fmt.Sprintf("%d/%s", chainID, token) }

func (f *fakeReader) BalanceOf(ctx context.Context, chainID uint64, token string, owner string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	k := key(chainID, token)
	if f.fail[k] {
		return nil, fmt.Errorf("%w: rpc down", domain.ErrBalanceQueryFailed)
	}
	if b, ok := f.balances[k]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := &config.SweeperConfig{
		Chains: []config.ChainConfig{
			{ID: 8453, Name: "base"},
			{ID: 42161, Name: "arbitrum"},
		},
		Tokens: []config.TokenConfig{
			{Symbol: "USDC", Decimals: 6, MinAmount: "0.1", Addresses: map[uint64]string{8453: "0xusdc-base", 42161: "0xusdc-arb"}},
			{Symbol: "WETH", Decimals: 18, MinAmount: "0.00005", Addresses: map[uint64]string{8453: "0xweth-base", 42161: "0xweth-arb"}},
		},
		DefaultMinAmountRaw: "100000",
	}
	c.SetDefaults()
	cat, err := catalog.New(c)
	require.NoError(t, err)
	return cat
}

func TestScan(t *testing.T) {
	cat := testCatalog(t)
	reader := &fakeReader{
		balances: map[string]*big.Int{
			key(42161, "0xusdc-arb"): big.NewInt(150000),
			key(42161, "0xweth-arb"): big.NewInt(1000), // 灰尘
			key(8453, "0xusdc-base"): big.NewInt(999999),
		},
		fail: map[string]bool{key(42161, ""): true},
	}
	s := New(cat, reader)

	t.Run("收款人是自己，不看目标链", func(t *testing.T) {
		scan := s.Scan(context.Background(), &domain.AccountSession{
			Address:     "0xa",
			Destination: domain.DestinationConfig{DestinationChainID: 8453, RecipientIsSelf: true},
		})
		// arbitrum: USDC, WETH, ETH
		require.Len(t, scan.Observations, 3)
		var failed int
		for _, o := range scan.Observations {
			assert.Equal(t, uint64(42161), o.ChainID)
			if o.Err != nil {
				failed++
				assert.ErrorIs(t, o.Err, domain.ErrBalanceQueryFailed)
			}
		}
		assert.Equal(t, 1, failed, "单个查询失败不影响其他查询")
		require.Len(t, scan.Deposits, 1)
		assert.Equal(t, "USDC", scan.Deposits[0].TokenSymbol)
		assert.Equal(t, int64(150000), scan.Deposits[0].Amount.Int64())
	})

	t.Run("收款人是别人，目标链也要看", func(t *testing.T) {
		scan := s.Scan(context.Background(), &domain.AccountSession{
			Address:     "0xa",
			Destination: domain.DestinationConfig{DestinationChainID: 8453, RecipientAddress: "0xb"},
		})
		assert.Len(t, scan.Observations, 6)
		require.Len(t, scan.Deposits, 2)
		assert.Equal(t, uint64(8453), scan.Deposits[0].ChainID, "按发现顺序")
		assert.Equal(t, uint64(42161), scan.Deposits[1].ChainID)
	})
}

func TestDetect_ThresholdBoundary(t *testing.T) {
	threshold := big.NewInt(100000)
	tests := []struct {
		name    string
		balance int64
		want    bool
	}{
		{name: "灰尘 40000", balance: 40000, want: false},
		{name: "差 1", balance: 99999, want: false},
		{name: "正好等于阈值", balance: 100000, want: true},
		{name: "高于阈值", balance: 150000, want: true},
		{name: "零", balance: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect([]domain.BalanceObservation{{
				ChainID: 1, TokenSymbol: "USDC", Balance: big.NewInt(tt.balance), Threshold: threshold,
			}})
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}

	got := Detect([]domain.BalanceObservation{{ChainID: 1, TokenSymbol: "USDC", Threshold: threshold, Err: errors.New("x")}})
	assert.Empty(t, got, "查询失败的不产生存款")
}

func TestActionable(t *testing.T) {
	deposits := []domain.DetectedDeposit{
		{ChainID: 8453, TokenSymbol: "USDC", Amount: big.NewInt(1)},
		{ChainID: 42161, TokenSymbol: "USDC", Amount: big.NewInt(2)},
		{ChainID: 8453, TokenSymbol: "WETH", Amount: big.NewInt(3)},
		{ChainID: 10, TokenSymbol: "WETH", Amount: big.NewInt(4)},
	}

	self := domain.DestinationConfig{DestinationChainID: 8453, RecipientIsSelf: true}
	got := Actionable(deposits, self)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(42161), got[0].ChainID)
	assert.Equal(t, uint64(10), got[1].ChainID)

	other := domain.DestinationConfig{DestinationChainID: 8453, RecipientAddress: "0xb"}
	got = Actionable(deposits, other)
	assert.Equal(t, deposits, got, "收款人不是自己时每个存款恰好出现一次")
	assert.True(t, got[0].IsForward(other))
	assert.False(t, got[1].IsForward(other))
}
