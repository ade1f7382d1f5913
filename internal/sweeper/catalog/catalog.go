// Package catalog 链和 token 的静态目录，由配置构建，运行期只读
package catalog

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
)

type Chain struct {
	ID            uint64
	Name          string
	WrappedNative string
}

type token struct {
	symbol    string
	decimals  int32
	minAmount *big.Int
	feeCap    *big.Int
	addresses map[uint64]string
}

type Catalog struct {
	chains     []Chain
	chainByID  map[uint64]Chain
	tokens     map[string]*token
	defaultMin *big.Int
}

// New 把配置里以 token 为单位的金额换算成最小单位
func New(c *config.SweeperConfig) (*Catalog, error) {
	cat := &Catalog{
		chainByID: make(map[uint64]Chain, len(c.Chains)),
		tokens:    make(map[string]*token, len(c.Tokens)+1),
	}
	for _, ch := range c.Chains {
		chain := Chain{ID: ch.ID, Name: ch.Name, WrappedNative: strings.ToUpper(ch.WrappedNative)}
		cat.chains = append(cat.chains, chain)
		cat.chainByID[ch.ID] = chain
	}

	defMin, ok := new(big.Int).SetString(c.DefaultMinAmountRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid defaultMinAmountRaw %q", c.DefaultMinAmountRaw)
	}
	cat.defaultMin = defMin

	for _, t := range c.Tokens {
		sym := strings.ToUpper(t.Symbol)
		tk := &token{symbol: sym, decimals: t.Decimals, addresses: make(map[uint64]string, len(t.Addresses))}
		for chainID, addr := range t.Addresses {
			tk.addresses[chainID] = addr
		}
		var err error
		if tk.minAmount, err = toRaw(t.MinAmount, t.Decimals); err != nil {
			return nil, fmt.Errorf("token %s minAmount: %w", sym, err)
		}
		if tk.feeCap, err = toRaw(t.FeeCap, t.Decimals); err != nil {
			return nil, fmt.Errorf("token %s feeCap: %w", sym, err)
		}
		cat.tokens[sym] = tk
	}
	if _, ok := cat.tokens[domain.NativeSymbol]; !ok {
		cat.tokens[domain.NativeSymbol] = &token{symbol: domain.NativeSymbol, decimals: 18, addresses: map[uint64]string{}}
	}
	// 原生币和包装币共用阈值和手续费上限
	native := cat.tokens[domain.NativeSymbol]
	for _, ch := range cat.chains {
		if w, ok := cat.tokens[ch.WrappedNative]; ok {
			if native.minAmount == nil {
				native.minAmount = w.minAmount
			}
			if native.feeCap == nil {
				native.feeCap = w.feeCap
			}
		}
	}
	return cat, nil
}

func toRaw(amount string, decimals int32) (*big.Int, error) {
	if amount == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return d.Shift(decimals).Truncate(0).BigInt(), nil
}

func (c *Catalog) Chains() []Chain {
	return c.chains
}

func (c *Catalog) Chain(id uint64) (Chain, bool) {
	ch, ok := c.chainByID[id]
	return ch, ok
}

// ChainName 日志和指标用
func (c *Catalog) ChainName(id uint64) string {
	if ch, ok := c.chainByID[id]; ok && ch.Name != "" {
		return ch.Name
	}
	return fmt.Sprintf("%d", id)
}

// WatchedChains 目标链以外的所有链；收款人不是自己时目标链也要看，
// 因为直接打到目标链上的钱还需要转给收款人
func (c *Catalog) WatchedChains(dest uint64, recipientIsSelf bool) []uint64 {
	out := make([]uint64, 0, len(c.chains))
	for _, ch := range c.chains {
		if ch.ID == dest && recipientIsSelf {
			continue
		}
		out = append(out, ch.ID)
	}
	return out
}

// TokensOn 链上有地址的 ERC-20 加原生币，按符号排序保证扫描顺序稳定
func (c *Catalog) TokensOn(chainID uint64) []string {
	out := make([]string, 0, len(c.tokens))
	for sym, t := range c.tokens {
		if sym == domain.NativeSymbol {
			continue
		}
		if _, ok := t.addresses[chainID]; ok {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return append(out, domain.NativeSymbol)
}

// Address 原生币返回空字符串
func (c *Catalog) Address(symbol string, chainID uint64) (string, error) {
	symbol = strings.ToUpper(symbol)
	if symbol == domain.NativeSymbol {
		return "", nil
	}
	t, ok := c.tokens[symbol]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedToken, symbol)
	}
	addr, ok := t.addresses[chainID]
	if !ok || addr == "" {
		return "", fmt.Errorf("%w: %s on chain %d", domain.ErrUnsupportedToken, symbol, chainID)
	}
	return addr, nil
}

// MinAmount 没有单独配置的 token 使用默认阈值
func (c *Catalog) MinAmount(symbol string) *big.Int {
	if t, ok := c.tokens[strings.ToUpper(symbol)]; ok && t.minAmount != nil {
		return new(big.Int).Set(t.minAmount)
	}
	return new(big.Int).Set(c.defaultMin)
}

// FeeCap 未配置上限时返回 nil，表示不封顶
func (c *Catalog) FeeCap(symbol string) *big.Int {
	if t, ok := c.tokens[strings.ToUpper(symbol)]; ok && t.feeCap != nil {
		return new(big.Int).Set(t.feeCap)
	}
	return nil
}

func (c *Catalog) Decimals(symbol string) int32 {
	if t, ok := c.tokens[strings.ToUpper(symbol)]; ok {
		return t.decimals
	}
	return 18
}

// Normalize 原生币换成该链的包装币符号
func (c *Catalog) Normalize(symbol string, chainID uint64) string {
	symbol = strings.ToUpper(symbol)
	if symbol != domain.NativeSymbol {
		return symbol
	}
	if ch, ok := c.chainByID[chainID]; ok && ch.WrappedNative != "" {
		return ch.WrappedNative
	}
	return "WETH"
}

// Format 最小单位转成可读金额
func (c *Catalog) Format(symbol string, raw *big.Int) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -c.Decimals(symbol)).String()
}
