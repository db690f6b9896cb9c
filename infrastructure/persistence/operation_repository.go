package persistence

import (
	"context"
	"database/sql"
	"time"

	"shabbat-mode/domain/model"

	"github.com/google/uuid"
)

const operationColumns = `id, user_id, platform, kind, fires_at, status, error, created_at, updated_at`

// OperationRepository keeps the scheduler timeline in Postgres. A partial unique index
// allows at most one pending operation per (user, platform, kind).
type OperationRepository struct{ db *sql.DB }

func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Schedule(ctx context.Context, op *model.ScheduledOperation) (bool, error) {
	now := time.Now().UTC()
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	op.Status = model.OperationPending
	op.CreatedAt = now
	op.UpdatedAt = now
	res, err := r.db.ExecContext(ctx, `INSERT INTO scheduled_operations (`+operationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,NULL,$7,$8)
		ON CONFLICT (user_id, platform, kind) WHERE status = 'pending' DO NOTHING`,
		op.ID, op.UserID, string(op.Platform), string(op.Kind), op.FiresAt.UTC(), string(op.Status), op.CreatedAt, op.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NextFireTime returns nil when nothing is pending.
func (r *OperationRepository) NextFireTime(ctx context.Context) (*time.Time, error) {
	var next sql.NullTime
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(fires_at) FROM scheduled_operations WHERE status='pending'`).Scan(&next); err != nil {
		return nil, err
	}
	if !next.Valid {
		return nil, nil
	}
	t := next.Time
	return &t, nil
}

// ClaimDue flips due rows to executing in one statement, so concurrent dispatchers never claim the same row twice.
func (r *OperationRepository) ClaimDue(ctx context.Context, now time.Time) ([]*model.ScheduledOperation, error) {
	rows, err := r.db.QueryContext(ctx, `UPDATE scheduled_operations SET status='executing', updated_at=$2
		WHERE id IN (
			SELECT id FROM scheduled_operations WHERE status='pending' AND fires_at <= $1
			ORDER BY fires_at FOR UPDATE SKIP LOCKED
		)
		RETURNING `+operationColumns, now.UTC(), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return collectOperations(rows)
}

func (r *OperationRepository) Complete(ctx context.Context, id string, status model.OperationStatus, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE scheduled_operations SET status=$2, error=$3, updated_at=$4 WHERE id=$1`,
		id, string(status), errMsg, time.Now().UTC())
	return err
}

// CancelPending removes pending operations only; executing ones run to completion.
func (r *OperationRepository) CancelPending(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_operations WHERE user_id=$1 AND platform=$2 AND status='pending'`,
		userID, string(platform))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CancelPendingKind removes the pending operation of one kind, leaving the other direction in place.
func (r *OperationRepository) CancelPendingKind(ctx context.Context, userID string, platform model.Platform, kind model.OperationKind) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_operations WHERE user_id=$1 AND platform=$2 AND kind=$3 AND status='pending'`,
		userID, string(platform), string(kind))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *OperationRepository) ListPending(ctx context.Context, limit int) ([]*model.ScheduledOperation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+operationColumns+` FROM scheduled_operations
		WHERE status='pending' ORDER BY fires_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return collectOperations(rows)
}

func (r *OperationRepository) HasActive(ctx context.Context, userID string, platform model.Platform) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM scheduled_operations
		WHERE user_id=$1 AND platform=$2 AND status IN ('pending','executing'))`, userID, string(platform)).Scan(&exists)
	return exists, err
}

func (r *OperationRepository) ResetExecuting(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE scheduled_operations SET status='pending', updated_at=$1 WHERE status='executing'`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOperation(row rowScanner) (*model.ScheduledOperation, error) {
	op := &model.ScheduledOperation{}
	var platform, kind, status string
	var errMsg sql.NullString
	if err := row.Scan(&op.ID, &op.UserID, &platform, &kind, &op.FiresAt, &status, &errMsg, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, err
	}
	op.Platform = model.Platform(platform)
	op.Kind = model.OperationKind(kind)
	op.Status = model.OperationStatus(status)
	if errMsg.Valid {
		op.Error = model.StrPtr(errMsg.String)
	}
	return op, nil
}

func collectOperations(rows *sql.Rows) ([]*model.ScheduledOperation, error) {
	defer rows.Close()
	var out []*model.ScheduledOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
