package persistence

import (
	"context"
	"database/sql"
	"time"

	"shabbat-mode/domain/model"
)

const privacyStatusColumns = `id, user_id, platform, content_id, original_status, current_status, is_locked_by_user, was_hidden_by_user, created_at, updated_at`

type PrivacyStatusRepository struct{ db *sql.DB }

func NewPrivacyStatusRepository(db *sql.DB) *PrivacyStatusRepository {
	return &PrivacyStatusRepository{db: db}
}

// RecordHide upserts by (user, platform, content). While an earlier hide is still outstanding
// (current differs from original) the stored original and wasHiddenByUser flag are kept.
func (r *PrivacyStatusRepository) RecordHide(ctx context.Context, s *model.PrivacyStatus) (*model.PrivacyStatus, error) {
	now := time.Now().UTC()
	q := `INSERT INTO privacy_statuses (user_id, platform, content_id, original_status, current_status, is_locked_by_user, was_hidden_by_user, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		  ON CONFLICT (user_id, platform, content_id) DO UPDATE SET
			original_status = CASE WHEN privacy_statuses.current_status = privacy_statuses.original_status
				THEN EXCLUDED.original_status ELSE privacy_statuses.original_status END,
			was_hidden_by_user = CASE WHEN privacy_statuses.current_status = privacy_statuses.original_status
				THEN EXCLUDED.was_hidden_by_user ELSE privacy_statuses.was_hidden_by_user END,
			current_status = EXCLUDED.current_status,
			updated_at = EXCLUDED.updated_at
		  RETURNING ` + privacyStatusColumns
	row := r.db.QueryRowContext(ctx, q, s.UserID, string(s.Platform), s.ContentID, s.OriginalStatus, s.CurrentStatus,
		s.IsLockedByUser, s.WasHiddenByUser, now, now)
	return scanPrivacyStatus(row)
}

func (r *PrivacyStatusRepository) UpdateCurrent(ctx context.Context, userID string, platform model.Platform, contentID, current string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE privacy_statuses SET current_status=$4, updated_at=$5 WHERE user_id=$1 AND platform=$2 AND content_id=$3`,
		userID, string(platform), contentID, current, time.Now().UTC())
	return err
}

// ToggleLock flips the lock flag, creating an untracked row with empty statuses. Current status is never touched.
func (r *PrivacyStatusRepository) ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	now := time.Now().UTC()
	q := `INSERT INTO privacy_statuses (user_id, platform, content_id, original_status, current_status, is_locked_by_user, was_hidden_by_user, created_at, updated_at)
		  VALUES ($1,$2,$3,'','',TRUE,FALSE,$4,$4)
		  ON CONFLICT (user_id, platform, content_id) DO UPDATE SET
			is_locked_by_user = NOT privacy_statuses.is_locked_by_user,
			updated_at = EXCLUDED.updated_at
		  RETURNING ` + privacyStatusColumns
	row := r.db.QueryRowContext(ctx, q, userID, string(platform), contentID, now)
	return scanPrivacyStatus(row)
}

// Get returns nil, nil for untracked content.
func (r *PrivacyStatusRepository) Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+privacyStatusColumns+` FROM privacy_statuses WHERE user_id=$1 AND platform=$2 AND content_id=$3`,
		userID, string(platform), contentID)
	s, err := scanPrivacyStatus(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (r *PrivacyStatusRepository) ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+privacyStatusColumns+` FROM privacy_statuses
		WHERE user_id=$1 AND platform=$2 AND current_status <> original_status ORDER BY id`, userID, string(platform))
	if err != nil {
		return nil, err
	}
	return collectPrivacyStatuses(rows)
}

func (r *PrivacyStatusRepository) List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+privacyStatusColumns+` FROM privacy_statuses
		WHERE user_id=$1 AND platform=$2 ORDER BY updated_at DESC`, userID, string(platform))
	if err != nil {
		return nil, err
	}
	return collectPrivacyStatuses(rows)
}

func scanPrivacyStatus(row rowScanner) (*model.PrivacyStatus, error) {
	s := &model.PrivacyStatus{}
	var platform string
	if err := row.Scan(&s.ID, &s.UserID, &platform, &s.ContentID, &s.OriginalStatus, &s.CurrentStatus,
		&s.IsLockedByUser, &s.WasHiddenByUser, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Platform = model.Platform(platform)
	return s, nil
}

func collectPrivacyStatuses(rows *sql.Rows) ([]*model.PrivacyStatus, error) {
	defer rows.Close()
	var out []*model.PrivacyStatus
	for rows.Next() {
		s, err := scanPrivacyStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
