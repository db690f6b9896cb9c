package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IScheduleSettings stores durable per-user timing preferences
type IScheduleSettings interface {
	Get(ctx context.Context, userID string) (*model.ScheduleSettings, error)
	Save(ctx context.Context, s *model.ScheduleSettings) error
}
