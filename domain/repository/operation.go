package repository

import (
	"context"
	"time"

	"shabbat-mode/domain/model"
)

// IOperation is the durable timeline of scheduled operations
type IOperation interface {
	// Schedule inserts a pending operation; it returns false when one of the same kind is already pending
	Schedule(ctx context.Context, op *model.ScheduledOperation) (bool, error)
	NextFireTime(ctx context.Context) (*time.Time, error)
	// ClaimDue moves every due pending operation to executing and returns them
	ClaimDue(ctx context.Context, now time.Time) ([]*model.ScheduledOperation, error)
	Complete(ctx context.Context, id string, status model.OperationStatus, errMsg *string) error
	CancelPending(ctx context.Context, userID string, platform model.Platform) (int64, error)
	CancelPendingKind(ctx context.Context, userID string, platform model.Platform, kind model.OperationKind) (int64, error)
	ListPending(ctx context.Context, limit int) ([]*model.ScheduledOperation, error)
	HasActive(ctx context.Context, userID string, platform model.Platform) (bool, error)
	// ResetExecuting returns operations interrupted by a crash to pending so they replay
	ResetExecuting(ctx context.Context) (int64, error)
}
