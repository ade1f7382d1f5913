package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"sweepbridge.com/internal/sweeper/domain"
	pkgcommon "sweepbridge.com/pkg/common"
	"sweepbridge.com/pkg/xerr"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Account struct {
	Ledger domain.HistoryLedger
}

type historyItem struct {
	Timestamp     time.Time `json:"timestamp"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	TxHash        string    `json:"txHash,omitempty"`
	Error         string    `json:"error,omitempty"`
	TokenSymbol   string    `json:"tokenSymbol"`
	Amount        string    `json:"amount"`
	Fee           string    `json:"fee,omitempty"`
	SourceChainID uint64    `json:"sourceChainId"`
	DestChainID   uint64    `json:"destChainId"`
	Recipient     string    `json:"recipient"`
}

type historyResp struct {
	Entries []historyItem `json:"entries"`
	Total   int           `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
}

// History 分页读取账户历史，金额用字符串避免前端丢精度
func (h *Account) History(c *gin.Context) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		pkgcommon.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, "invalid address")
		return
	}
	offset, err1 := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, err2 := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultHistoryLimit)))
	if err1 != nil || err2 != nil || offset < 0 || limit <= 0 {
		pkgcommon.Fail(c, http.StatusBadRequest, xerr.RequestParamsError, xerr.MapErrMsg(xerr.RequestParamsError))
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, total, err := h.Ledger.GetHistory(c.Request.Context(), addr, offset, limit)
	if err != nil {
		pkgcommon.FailErr(c, xerr.Wrap(err, xerr.StoreUnavailable, xerr.MapErrMsg(xerr.StoreUnavailable)))
		return
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		item := historyItem{
			Timestamp:     e.Timestamp,
			Kind:          string(e.Kind),
			Status:        string(e.Status),
			TxHash:        e.TxHash,
			Error:         e.Error,
			TokenSymbol:   e.TokenSymbol,
			SourceChainID: e.SourceChainID,
			DestChainID:   e.DestChainID,
			Recipient:     e.Recipient,
		}
		if e.Amount != nil {
			item.Amount = e.Amount.String()
		}
		if e.Fee != nil {
			item.Fee = e.Fee.String()
		}
		items = append(items, item)
	}
	pkgcommon.Success(c, historyResp{Entries: items, Total: total, Offset: offset, Limit: limit})
}
