package persistence

import (
	"context"
	"errors"

	"shabbat-mode/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduleSettingsRepository keeps timing preferences next to the user records in MySQL.
type ScheduleSettingsRepository struct{ db *gorm.DB }

func NewScheduleSettingsRepository(db *gorm.DB) *ScheduleSettingsRepository {
	return &ScheduleSettingsRepository{db: db}
}

func EnsureScheduleSettingsSchema(db *gorm.DB) error {
	return db.AutoMigrate(&model.ScheduleSettings{})
}

// Get returns nil, nil when the user never saved settings.
func (r *ScheduleSettingsRepository) Get(ctx context.Context, userID string) (*model.ScheduleSettings, error) {
	var s model.ScheduleSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleSettingsRepository) Save(ctx context.Context, s *model.ScheduleSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"location_id", "timezone", "hide_offset", "restore_offset", "enabled", "updated_at"}),
	}).Create(s).Error
}
