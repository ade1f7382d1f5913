package domain

import "errors"

var (
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrStaleSchema             = errors.New("stale schema")
	ErrBalanceQueryFailed      = errors.New("balance query failed")
	ErrUnsupportedToken        = errors.New("unsupported token")
	ErrPermissionCheckFailed   = errors.New("permission check failed")
	ErrQuoteService            = errors.New("quote service error")
	ErrSubmissionFailed        = errors.New("submission failed")
	ErrMiningTimeout           = errors.New("mining timeout")
	ErrMiningFailed            = errors.New("mining failed")
	ErrAccountProcessingFailed = errors.New("account processing failed")
	ErrSessionNotFound         = errors.New("session not found")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrStoreUnavailable, "StoreUnavailable"},
	{ErrStaleSchema, "StaleSchema"},
	{ErrBalanceQueryFailed, "BalanceQueryFailed"},
	{ErrUnsupportedToken, "UnsupportedToken"},
	{ErrPermissionCheckFailed, "PermissionCheckFailed"},
	{ErrQuoteService, "QuoteServiceError"},
	{ErrSubmissionFailed, "SubmissionFailed"},
	{ErrMiningTimeout, "MiningTimeout"},
	{ErrMiningFailed, "MiningFailed"},
	{ErrAccountProcessingFailed, "AccountProcessingFailed"},
	{ErrSessionNotFound, "SessionNotFound"},
}

// ErrorKind 返回错误在分类中的名字，无法识别时为 "Unknown"
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}
