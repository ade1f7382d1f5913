package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/segmentio/encoding/json"
	"sweepbridge.com/internal/sweeper/config"
	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/ratelimit"
)

// ExecutionClient 权限执行通道
type ExecutionClient struct {
	c *client
}

var _ domain.ExecutionChannel = (*ExecutionClient)(nil)

func NewExecutionClient(cfg config.ExecutionConfig, rule ratelimit.Rule) *ExecutionClient {
	return &ExecutionClient{c: newClient("execution", cfg.BaseURL, cfg.APIKey, cfg.Timeout, rule)}
}

type enabledRequest struct {
	PermissionGrant json.RawMessage `json:"permissionGrant"`
}

type enabledResponse struct {
	Enabled map[string]map[uint64]bool `json:"enabled"`
}

func (e *ExecutionClient) CheckEnabled(ctx context.Context, grant json.RawMessage) (domain.EnabledMap, error) {
	var resp enabledResponse
	if err := e.c.do(ctx, "checkEnabled", http.MethodPost, "/v1/permissions/enabled", enabledRequest{PermissionGrant: grant}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPermissionCheckFailed, err)
	}
	return domain.EnabledMap(resp.Enabled), nil
}

type submitRequest struct {
	SessionKey      string                `json:"sessionKey"`
	PermissionGrant json.RawMessage       `json:"permissionGrant"`
	Mode            domain.ActivationMode `json:"mode"`
	Calls           []domain.Call         `json:"calls"`
	ChainID         uint64                `json:"chainId"`
	ValidAfter      int64                 `json:"validAfter"`
	ValidUntil      int64                 `json:"validUntil"`
}

type submitResponse struct {
	SettlementHandle string `json:"settlementHandle"`
}

func (e *ExecutionClient) Submit(ctx context.Context, req domain.SubmitRequest) (string, error) {
	body := submitRequest{
		SessionKey:      req.SessionKey,
		PermissionGrant: req.PermissionGrant,
		Mode:            req.Mode,
		Calls:           req.Calls,
		ChainID:         req.ChainID,
		ValidAfter:      unixOrZero(req.ValidAfter),
		ValidUntil:      unixOrZero(req.ValidUntil),
	}
	var resp submitResponse
	if err := e.c.do(ctx, "submit", http.MethodPost, "/v1/actions", body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
	}
	if resp.SettlementHandle == "" {
		return "", fmt.Errorf("%w: empty settlement handle", domain.ErrSubmissionFailed)
	}
	return resp.SettlementHandle, nil
}

type statusResponse struct {
	Status domain.MiningStatus `json:"status"`
}

func (e *ExecutionClient) Status(ctx context.Context, handle string) (domain.MiningStatus, error) {
	var resp statusResponse
	path := "/v1/actions/" + url.PathEscape(handle) + "/status"
	if err := e.c.do(ctx, "status", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case domain.MiningPending, domain.MiningMinedSuccess, domain.MiningMinedFailure, domain.MiningReverted:
		return resp.Status, nil
	default:
		return "", fmt.Errorf("unknown mining status %q", resp.Status)
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
