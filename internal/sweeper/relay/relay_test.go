package relay

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/ratelimit"
)

func newExec(t *testing.T, h http.HandlerFunc) *ExecutionClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewExecutionClient(config.ExecutionConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second},
		ratelimit.Rule{TripConsecutiveFailures: 2, Timeout: time.Minute})
}

func TestExecution_CheckEnabled(t *testing.T) {
	grant := `{"nonce":340282366920938463463374607431768211455}`
	c := newExec(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/permissions/enabled", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "340282366920938463463374607431768211455", "grant 原样转发")
		_, _ = w.Write([]byte(`{"enabled":{"perm-1":{"8453":true,"10":false}}}`))
	})

	m, err := c.CheckEnabled(context.Background(), json.RawMessage(grant))
	require.NoError(t, err)
	assert.True(t, m.EnabledOn(8453))
	assert.False(t, m.EnabledOn(10))
}

func TestExecution_SubmitAndStatus(t *testing.T) {
	c := newExec(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/actions":
			var req submitRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, domain.ModeEnableAndUse, req.Mode)
			assert.Equal(t, uint64(42161), req.ChainID)
			require.Len(t, req.Calls, 1)
			assert.Equal(t, int64(7), req.Calls[0].Value.Int64())
			_, _ = w.Write([]byte(`{"settlementHandle":"0xhandle"}`))
		case "/v1/actions/0xhandle/status":
			_, _ = w.Write([]byte(`{"status":"minedSuccess"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	handle, err := c.Submit(context.Background(), domain.SubmitRequest{
		Mode:    domain.ModeEnableAndUse,
		ChainID: 42161,
		Calls:   []domain.Call{{To: "0xt", Value: big.NewInt(7), Data: "0x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xhandle", handle)

	st, err := c.Status(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, domain.MiningMinedSuccess, st)
}

func TestExecution_ErrorsAndBreaker(t *testing.T) {
	var hits atomic.Int32
	c := newExec(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Submit(ctx, domain.SubmitRequest{})
		assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	}
	_, err := c.Submit(ctx, domain.SubmitRequest{})
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.ErrorIs(t, err, ratelimit.ErrBreakerOpen, "连续失败后熔断")
	assert.Equal(t, int32(2), hits.Load())

	// 熔断器按操作隔离
	_, err = c.CheckEnabled(ctx, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, domain.ErrPermissionCheckFailed)
	assert.Equal(t, int32(3), hits.Load())
}

func TestExecution_ClientErrorsDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	c := newExec(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	for i := 0; i < 4; i++ {
		_, err := c.Submit(context.Background(), domain.SubmitRequest{})
		assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		approvals int
	}{
		{
			name:      "成功",
			body:      `{"simulationSuccess":true,"approvalCalls":[{"to":"0xusdc","value":0,"data":"0x095e"}],"swapCall":{"to":"0xspoke","value":0,"data":"0xabcd"},"outputAmount":149000}`,
			approvals: 1,
		},
		{
			name:      "报价没有给 approve",
			body:      `{"simulationSuccess":true,"swapCall":{"to":"0xspoke","value":0,"data":"0xabcd"},"outputAmount":149000}`,
			approvals: 0,
		},
		{name: "模拟失败", body: `{"simulationSuccess":false,"reason":"no route"}`, wantErr: true},
		{name: "缺少 swapCall", body: `{"simulationSuccess":true}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/swap/quote", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			q := NewQuoteClient(config.QuoteConfig{BaseURL: srv.URL, Timeout: time.Second}, ratelimit.Rule{})

			res, err := q.Quote(context.Background(), domain.QuoteRequest{
				InputToken: "0xusdc", OutputToken: "0xweth", OriginChainID: 42161, DestinationChain: 8453,
				Amount: big.NewInt(150000), Depositor: "0xa", Recipient: "0xa",
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrQuoteService)
				return
			}
			require.NoError(t, err)
			require.Len(t, res.Approvals, tt.approvals)
			if tt.approvals > 0 {
				assert.Equal(t, "0xusdc", res.Approvals[0].To)
			}
			assert.Equal(t, "0xspoke", res.Swap.To)
			assert.Equal(t, int64(149000), res.OutputAmount.Int64())
		})
	}
}
