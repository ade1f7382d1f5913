package catalog

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
)

func testConfig() *config.SweeperConfig {
	c := &config.SweeperConfig{
		Chains: []config.ChainConfig{
			{ID: 8453, Name: "base", RPCURL: "http://x"},
			{ID: 42161, Name: "arbitrum", RPCURL: "http://y"},
			{ID: 10, Name: "optimism", RPCURL: "http://z"},
		},
		Tokens: []config.TokenConfig{
			{Symbol: "USDC", Decimals: 6, MinAmount: "0.1", FeeCap: "5", Addresses: map[uint64]string{8453: "0xusdc-base", 42161: "0xusdc-arb"}},
			{Symbol: "WETH", Decimals: 18, MinAmount: "0.00005", Addresses: map[uint64]string{8453: "0xweth-base", 42161: "0xweth-arb", 10: "0xweth-op"}},
			{Symbol: "DAI", Decimals: 18, Addresses: map[uint64]string{10: "0xdai-op"}},
		},
		DefaultMinAmountRaw: "100000",
	}
	c.SetDefaults()
	return c
}

func TestCatalog(t *testing.T) {
	cat, err := New(testConfig())
	require.NoError(t, err)

	t.Run("阈值换算", func(t *testing.T) {
		assert.Equal(t, big.NewInt(100000), cat.MinAmount("USDC"))
		assert.Equal(t, "50000000000000", cat.MinAmount("WETH").String())
		assert.Equal(t, "50000000000000", cat.MinAmount(domain.NativeSymbol).String(), "原生币沿用包装币阈值")
		assert.Equal(t, big.NewInt(100000), cat.MinAmount("DAI"), "未配置时用默认阈值")
		assert.Equal(t, big.NewInt(100000), cat.MinAmount("UNKNOWN"))
	})

	t.Run("手续费上限", func(t *testing.T) {
		assert.Equal(t, big.NewInt(5_000_000), cat.FeeCap("usdc"))
		assert.Nil(t, cat.FeeCap("DAI"))
	})

	t.Run("监控链", func(t *testing.T) {
		assert.Equal(t, []uint64{42161, 10}, cat.WatchedChains(8453, true))
		assert.Equal(t, []uint64{8453, 42161, 10}, cat.WatchedChains(8453, false))
	})

	t.Run("链上 token", func(t *testing.T) {
		assert.Equal(t, []string{"USDC", "WETH", "ETH"}, cat.TokensOn(8453))
		assert.Equal(t, []string{"DAI", "WETH", "ETH"}, cat.TokensOn(10))
	})

	t.Run("地址", func(t *testing.T) {
		addr, err := cat.Address("USDC", 42161)
		require.NoError(t, err)
		assert.Equal(t, "0xusdc-arb", addr)

		_, err = cat.Address("USDC", 10)
		assert.ErrorIs(t, err, domain.ErrUnsupportedToken)
		_, err = cat.Address("PEPE", 10)
		assert.ErrorIs(t, err, domain.ErrUnsupportedToken)

		addr, err = cat.Address(domain.NativeSymbol, 10)
		require.NoError(t, err)
		assert.Empty(t, addr)
	})

	t.Run("格式化", func(t *testing.T) {
		assert.Equal(t, "0.15", cat.Format("USDC", big.NewInt(150000)))
		assert.Equal(t, "WETH", cat.Normalize(domain.NativeSymbol, 8453))
		assert.Equal(t, "USDC", cat.Normalize("usdc", 8453))
		assert.Equal(t, "optimism", cat.ChainName(10))
		assert.Equal(t, "1", cat.ChainName(1))
	})
}
