package repository

import (
	"context"
	"time"

	"shabbat-mode/domain/model"
)

// ITimeData returns candle lighting and havdalah for the week containing the given date
type ITimeData interface {
	ShabbatTimes(ctx context.Context, locationID string, week time.Time) (*model.ShabbatTimes, error)
}
