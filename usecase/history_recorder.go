package usecase

import (
	"context"
	"fmt"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const defaultHistoryRetention = 50

type IHistoryRecorder interface {
	Append(ctx context.Context, e *model.HistoryEntry) error
	Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error)
}

type historyRecorder struct {
	repo      repository.IHistory
	retention int
	clock     clockwork.Clock
}

func NewHistoryRecorder(repo repository.IHistory, retention int, clock clockwork.Clock) IHistoryRecorder {
	if retention <= 0 {
		retention = defaultHistoryRetention
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &historyRecorder{repo: repo, retention: retention, clock: clock}
}

// Append is idempotent per operation id; only a fresh insert trims the user's log.
func (h *historyRecorder) Append(ctx context.Context, e *model.HistoryEntry) error {
	if e == nil || e.UserID == "" {
		return fmt.Errorf("history entry without user")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.clock.Now().UTC()
	}
	inserted, err := h.repo.Insert(ctx, e)
	if err != nil {
		return err
	}
	if !inserted {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id":      e.UserID,
			"operation_id": e.OperationID,
		}).Info("History entry already recorded")
		return nil
	}
	if _, err := h.repo.TrimToNewest(ctx, e.UserID, h.retention); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

func (h *historyRecorder) Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error) {
	if limit <= 0 || limit > h.retention {
		limit = h.retention
	}
	return h.repo.Recent(ctx, userID, limit)
}
