package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"shabbat-mode/domain/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var privacyColumnNames = []string{"id", "user_id", "platform", "content_id", "original_status", "current_status",
	"is_locked_by_user", "was_hidden_by_user", "created_at", "updated_at"}

// recordHideUpsert pins the write-once rule: original_status and was_hidden_by_user only take the
// incoming values when the stored row is not currently changed
var recordHideUpsert = `(?s)INSERT INTO privacy_statuses .* ON CONFLICT \(user_id, platform, content_id\) DO UPDATE SET\s+` +
	`original_status = CASE WHEN privacy_statuses\.current_status = privacy_statuses\.original_status\s+` +
	`THEN EXCLUDED\.original_status ELSE privacy_statuses\.original_status END,\s+` +
	`was_hidden_by_user = CASE WHEN privacy_statuses\.current_status = privacy_statuses\.original_status\s+` +
	`THEN EXCLUDED\.was_hidden_by_user ELSE privacy_statuses\.was_hidden_by_user END,\s+` +
	`current_status = EXCLUDED\.current_status`

func TestPrivacyStatusRepository_RecordHide(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPrivacyStatusRepository(db)
	now := time.Now().UTC()

	// The stored original wins over the incoming one while the item is still hidden
	mock.ExpectQuery(recordHideUpsert).
		WithArgs("user-1", "youtube", "vid-1", "private", "private", false, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(privacyColumnNames).
			AddRow(1, "user-1", "youtube", "vid-1", "public", "private", false, false, now, now))

	got, err := repo.RecordHide(context.Background(), &model.PrivacyStatus{
		UserID: "user-1", Platform: model.PlatformYouTube, ContentID: "vid-1",
		OriginalStatus: "private", CurrentStatus: "private",
	})
	require.NoError(t, err)
	require.Equal(t, "public", got.OriginalStatus)
	require.Equal(t, "private", got.CurrentStatus)
	require.True(t, got.Changed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrivacyStatusRepository_ToggleLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`is_locked_by_user = NOT privacy_statuses.is_locked_by_user`)).
		WithArgs("user-1", "facebook", "post-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(privacyColumnNames).
			AddRow(2, "user-1", "facebook", "post-1", "visible", "hidden", true, false, now, now))

	got, err := NewPrivacyStatusRepository(db).ToggleLock(context.Background(), "user-1", model.PlatformFacebook, "post-1")
	require.NoError(t, err)
	require.True(t, got.IsLockedByUser)
	require.Equal(t, "hidden", got.CurrentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrivacyStatusRepository_ListChanged(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`current_status <> original_status`)).
		WithArgs("user-1", "youtube").
		WillReturnRows(sqlmock.NewRows(privacyColumnNames).
			AddRow(1, "user-1", "youtube", "vid-1", "public", "private", false, false, now, now).
			AddRow(3, "user-1", "youtube", "vid-3", "unlisted", "private", true, false, now, now))

	rows, err := NewPrivacyStatusRepository(db).ListChanged(context.Background(), "user-1", model.PlatformYouTube)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "unlisted", rows[1].OriginalStatus)
	require.True(t, rows[1].IsLockedByUser)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrivacyStatusRepository_UpdateCurrentAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPrivacyStatusRepository(db)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE privacy_statuses SET current_status=$4`)).
		WithArgs("user-1", "youtube", "vid-1", "public", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateCurrent(context.Background(), "user-1", model.PlatformYouTube, "vid-1", "public"))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM privacy_statuses WHERE user_id=$1 AND platform=$2 AND content_id=$3`)).
		WithArgs("user-1", "youtube", "missing").
		WillReturnRows(sqlmock.NewRows(privacyColumnNames))
	got, err := repo.Get(context.Background(), "user-1", model.PlatformYouTube, "missing")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrivacyStatusRepository_RecordHideFirstTime(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(recordHideUpsert).
		WithArgs("user-1", "youtube", "vid-2", "unlisted", "private", false, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(privacyColumnNames).
			AddRow(3, "user-1", "youtube", "vid-2", "unlisted", "private", false, true, now, now))

	got, err := NewPrivacyStatusRepository(db).RecordHide(context.Background(), &model.PrivacyStatus{
		UserID: "user-1", Platform: model.PlatformYouTube, ContentID: "vid-2",
		OriginalStatus: "unlisted", CurrentStatus: "private", WasHiddenByUser: true,
	})
	require.NoError(t, err)
	require.Equal(t, "unlisted", got.OriginalStatus)
	require.True(t, got.WasHiddenByUser)
	require.NoError(t, mock.ExpectationsWereMet())
}
