package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IPrivacyStatus stores one row per touched content item
type IPrivacyStatus interface {
	// RecordHide inserts the row or, if it exists, updates the current status.
	// The original status is only replaced once the item was fully restored.
	RecordHide(ctx context.Context, s *model.PrivacyStatus) (*model.PrivacyStatus, error)
	UpdateCurrent(ctx context.Context, userID string, platform model.Platform, contentID, current string) error
	ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error)
	Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error)
	// ListChanged returns rows whose current status differs from the original, locked or not
	ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error)
	List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error)
}
