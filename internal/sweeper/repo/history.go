package repo

import (
	"context"
	"fmt"

	"sweepbridge.com/internal/sweeper/domain"
	"sweepbridge.com/pkg/bigjson"
)

// AppendHistory LPUSH，最新的在表头，这里不做截断
func (r *Repo) AppendHistory(ctx context.Context, address string, entry domain.HistoryEntry) error {
	addr := domain.NormalizeAddress(address)
	data, err := bigjson.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("%w: encode history: %v", errCodec, err)
	}
	if err := r.rdb.LPush(ctx, r.keys.History(addr), data).Err(); err != nil {
		return unavailable("append history", err)
	}
	return nil
}

// GetHistory 分页读取，返回本页数据和总数
func (r *Repo) GetHistory(ctx context.Context, address string, offset, limit int) ([]domain.HistoryEntry, int, error) {
	addr := domain.NormalizeAddress(address)
	key := r.keys.History(addr)
	if offset < 0 {
		offset = 0
	}

	total, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, unavailable("history len", err)
	}
	if limit <= 0 || int64(offset) >= total {
		return []domain.HistoryEntry{}, int(total), nil
	}

	raw, err := r.rdb.LRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, unavailable("history range", err)
	}
	out := make([]domain.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var e domain.HistoryEntry
		if err := bigjson.Unmarshal([]byte(item), &e); err != nil {
			return nil, 0, fmt.Errorf("%w: decode history: %v", errCodec, err)
		}
		out = append(out, e)
	}
	return out, int(total), nil
}
