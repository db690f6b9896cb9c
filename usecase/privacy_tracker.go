package usecase

import (
	"context"
	"fmt"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
)

type IPrivacyTracker interface {
	// RecordHide remembers the item's visibility before we hid it; hiddenByUser marks items that were already hidden
	RecordHide(ctx context.Context, userID string, platform model.Platform, contentID, original string, hiddenByUser bool) (*model.PrivacyStatus, error)
	RecordRestore(ctx context.Context, userID string, platform model.Platform, contentID, status string) error
	ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error)
	// EligibleForRestore splits changed items into those to restore and those the user locked
	EligibleForRestore(ctx context.Context, userID string, platform model.Platform) (eligible, locked []*model.PrivacyStatus, err error)
	ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error)
	List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error)
	Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error)
}

type privacyTracker struct {
	repo repository.IPrivacyStatus
}

func NewPrivacyTracker(repo repository.IPrivacyStatus) IPrivacyTracker {
	return &privacyTracker{repo: repo}
}

func (t *privacyTracker) RecordHide(ctx context.Context, userID string, platform model.Platform, contentID, original string, hiddenByUser bool) (*model.PrivacyStatus, error) {
	if contentID == "" {
		return nil, fmt.Errorf("content id is required")
	}
	current := platform.HiddenStatus()
	if hiddenByUser {
		current = original
	}
	return t.repo.RecordHide(ctx, &model.PrivacyStatus{
		UserID:          userID,
		Platform:        platform,
		ContentID:       contentID,
		OriginalStatus:  original,
		CurrentStatus:   current,
		WasHiddenByUser: hiddenByUser,
	})
}

func (t *privacyTracker) RecordRestore(ctx context.Context, userID string, platform model.Platform, contentID, status string) error {
	return t.repo.UpdateCurrent(ctx, userID, platform, contentID, status)
}

func (t *privacyTracker) ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	if contentID == "" {
		return nil, fmt.Errorf("content id is required")
	}
	return t.repo.ToggleLock(ctx, userID, platform, contentID)
}

func (t *privacyTracker) EligibleForRestore(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, []*model.PrivacyStatus, error) {
	changed, err := t.repo.ListChanged(ctx, userID, platform)
	if err != nil {
		return nil, nil, err
	}
	var eligible, locked []*model.PrivacyStatus
	for _, s := range changed {
		if s.IsLockedByUser {
			locked = append(locked, s)
			continue
		}
		eligible = append(eligible, s)
	}
	return eligible, locked, nil
}

func (t *privacyTracker) ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	return t.repo.ListChanged(ctx, userID, platform)
}

func (t *privacyTracker) List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	return t.repo.List(ctx, userID, platform)
}

func (t *privacyTracker) Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	return t.repo.Get(ctx, userID, platform, contentID)
}
