package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IHistory is the append-only operation log
type IHistory interface {
	// Insert stores the entry; a second insert with the same operation id is a no-op
	Insert(ctx context.Context, e *model.HistoryEntry) (bool, error)
	TrimToNewest(ctx context.Context, userID string, keep int) (int64, error)
	Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error)
}
