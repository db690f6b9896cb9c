package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"shabbat-mode/domain/model"

	"github.com/google/uuid"
)

const historyColumns = `id, operation_id, user_id, platform, action, occurred_at, affected_items, success, error, item_errors`

// HistoryRepository is the Postgres fallback history store, used when Mongo is not configured.
type HistoryRepository struct{ db *sql.DB }

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Insert(ctx context.Context, e *model.HistoryEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var opID sql.NullString
	if e.OperationID != "" {
		opID = sql.NullString{String: e.OperationID, Valid: true}
	}
	var itemErrors []byte
	if len(e.ItemErrors) > 0 {
		b, err := json.Marshal(e.ItemErrors)
		if err != nil {
			return false, fmt.Errorf("marshal item errors: %w", err)
		}
		itemErrors = b
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO history_entries (`+historyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT DO NOTHING`,
		e.ID, opID, e.UserID, string(e.Platform), string(e.Action), e.Timestamp.UTC(), e.AffectedItems, e.Success, e.Error, itemErrors)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *HistoryRepository) TrimToNewest(ctx context.Context, userID string, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM history_entries WHERE user_id=$1 AND id NOT IN (
			SELECT id FROM history_entries WHERE user_id=$1 ORDER BY occurred_at DESC, created_at DESC LIMIT $2
		)`, userID, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *HistoryRepository) Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+historyColumns+` FROM history_entries
		WHERE user_id=$1 ORDER BY occurred_at DESC, created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.HistoryEntry
	for rows.Next() {
		e := &model.HistoryEntry{}
		var opID, errMsg sql.NullString
		var platform, action string
		var itemErrors []byte
		if err := rows.Scan(&e.ID, &opID, &e.UserID, &platform, &action, &e.Timestamp, &e.AffectedItems, &e.Success, &errMsg, &itemErrors); err != nil {
			return nil, err
		}
		e.OperationID = opID.String
		e.Platform = model.Platform(platform)
		e.Action = model.OperationKind(action)
		if errMsg.Valid {
			e.Error = model.StrPtr(errMsg.String)
		}
		if len(itemErrors) > 0 {
			if err := json.Unmarshal(itemErrors, &e.ItemErrors); err != nil {
				return nil, fmt.Errorf("unmarshal item errors: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
