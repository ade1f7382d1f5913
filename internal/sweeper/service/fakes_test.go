package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"sweepbridge.com/internal/sweeper/catalog"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/seal"
)

const (
	chainBase     uint64 = 8453
	chainArbitrum uint64 = 42161
	chainOptimism uint64 = 10

	masterKey  = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	sessionKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	spokePool  = "0x00000000000000000000000000000000005F0075"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := &config.SweeperConfig{
		Chains: []config.ChainConfig{
			{ID: chainBase, Name: "base"},
			{ID: chainArbitrum, Name: "arbitrum"},
			{ID: chainOptimism, Name: "optimism"},
		},
		Tokens: []config.TokenConfig{
			{Symbol: "USDC", Decimals: 6, MinAmount: "0.1", FeeCap: "5", Addresses: map[uint64]string{
				chainBase: "0xusdc-base", chainArbitrum: "0xusdc-arb", chainOptimism: "0xusdc-op",
			}},
			{Symbol: "WETH", Decimals: 18, MinAmount: "0.00005", FeeCap: "0.002", Addresses: map[uint64]string{
				chainBase: "0xweth-base", chainArbitrum: "0xweth-arb", chainOptimism: "0xweth-op",
			}},
			{Symbol: "DAI", Decimals: 18, Addresses: map[uint64]string{chainOptimism: "0xdai-op"}},
		},
		DefaultMinAmountRaw: "100000",
	}
	c.SetDefaults()
	cat, err := catalog.New(c)
	require.NoError(t, err)
	return cat
}

func testSealer(t *testing.T) *seal.Sealer {
	t.Helper()
	s, err := seal.New(masterKey)
	require.NoError(t, err)
	return s
}

func newSession(t *testing.T, sealer *seal.Sealer, addr string, dest domain.DestinationConfig) *domain.AccountSession {
	t.Helper()
	enc, err := sealer.Seal(sessionKey)
	require.NoError(t, err)
	return &domain.AccountSession{
		Address:              addr,
		EncryptedSessionKey:  enc,
		SessionSignerAddress: "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		PermissionGrant:      json.RawMessage(`{"permissionId":"perm-1","nonce":340282366920938463463374607431768211455}`),
		Destination:          dest,
		SchemaVersion:        2,
		Active:               true,
	}
}

// fakeChannel 记录事件顺序，用于断言提交和上链确认的先后
type fakeChannel struct {
	mu        sync.Mutex
	enabled   domain.EnabledMap
	checkErr  error
	submitErr map[uint64]error
	// 每个 handle 依次返回的状态，用完后一直返回最后一个
	statuses    []domain.MiningStatus
	statusCalls map[string]int
	submits     []domain.SubmitRequest
	events      []string
}

func newFakeChannel(enabled domain.EnabledMap) *fakeChannel {
	return &fakeChannel{
		enabled:     enabled,
		submitErr:   map[uint64]error{},
		statuses:    []domain.MiningStatus{domain.MiningMinedSuccess},
		statusCalls: map[string]int{},
	}
}

func (f *fakeChannel) CheckEnabled(ctx context.Context, grant json.RawMessage) (domain.EnabledMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "check")
	return f.enabled, f.checkErr
}

func (f *fakeChannel) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.submitErr[req.ChainID]; err != nil {
		f.events = append(f.events, "submit-failed")
		return "", err
	}
	f.submits = append(f.submits, req)
	handle := fmt.Sprintf("0xhandle-%d", len(f.submits))
	f.events = append(f.events, "submit:"+string(req.Mode))
	return handle, nil
}

func (f *fakeChannel) Status(ctx context.Context, handle string) (domain.MiningStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.statusCalls[handle]
	f.statusCalls[handle] = n + 1
	if n >= len(f.statuses) {
		n = len(f.statuses) - 1
	}
	st := f.statuses[n]
	f.events = append(f.events, "status:"+string(st))
	return st, nil
}

func (f *fakeChannel) Submits() []domain.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SubmitRequest(nil), f.submits...)
}

func (f *fakeChannel) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// fakeQuoter 返回一个 approve 和一个 bridge 调用；noApproval 时只返回 bridge
type fakeQuoter struct {
	mu         sync.Mutex
	err        error
	noApproval bool
	requests   []domain.QuoteRequest
}

func (q *fakeQuoter) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, req)
	if q.err != nil {
		return nil, q.err
	}
	res := &domain.QuoteResult{
		Swap:         domain.Call{To: spokePool, Value: big.NewInt(0), Data: "0xdeposit"},
		OutputAmount: req.Amount,
	}
	if !q.noApproval {
		res.Approvals = []domain.Call{{To: req.InputToken, Value: big.NewInt(0), Data: "0xapprove"}}
	}
	return res, nil
}

// memLedger 内存版历史账本
type memLedger struct {
	mu      sync.Mutex
	entries map[string][]domain.HistoryEntry
	err     error
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[string][]domain.HistoryEntry{}}
}

func (l *memLedger) AppendHistory(ctx context.Context, address string, entry domain.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries[address] = append([]domain.HistoryEntry{entry}, l.entries[address]...)
	return nil
}

func (l *memLedger) GetHistory(ctx context.Context, address string, offset, limit int) ([]domain.HistoryEntry, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := l.entries[address]
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (l *memLedger) For(address string) []domain.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.HistoryEntry(nil), l.entries[address]...)
}

// fakeReader key: chainID/token
type fakeReader struct {
	mu       sync.Mutex
	balances map[string]*big.Int
}

func balKey(chainID uint64, token string) string { return fmt.Sprintf("%d/%s", chainID, token) }

func (f *fakeReader) BalanceOf(ctx context.Context, chainID uint64, token string, owner string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[owner+"@"+balKey(chainID, token)]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeReader) set(owner string, chainID uint64, token string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances == nil {
		f.balances = map[string]*big.Int{}
	}
	f.balances[owner+"@"+balKey(chainID, token)] = big.NewInt(amount)
}
