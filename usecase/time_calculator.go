package usecase

import (
	"context"
	"fmt"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
)

// RolloverPolicy decides how the next cycle is derived once this week's window has passed
type RolloverPolicy string

const (
	// RolloverFixedWeek shifts both instants by seven calendar days at the same wall-clock time
	RolloverFixedWeek RolloverPolicy = "fixed_week"
	// RolloverRequery asks the time-data service for the following week
	RolloverRequery RolloverPolicy = "requery"
)

func ParseRolloverPolicy(s string) RolloverPolicy {
	if RolloverPolicy(s) == RolloverRequery {
		return RolloverRequery
	}
	return RolloverFixedWeek
}

type ITimeCalculator interface {
	// Window resolves the hide/restore instants for the cycle that is current or next at now
	Window(ctx context.Context, settings *model.ScheduleSettings, now time.Time) (*model.ScheduleWindow, error)
}

type timeCalculator struct {
	timeData        repository.ITimeData
	policy          RolloverPolicy
	defaultTimezone string
}

func NewTimeCalculator(timeData repository.ITimeData, policy RolloverPolicy, defaultTimezone string) ITimeCalculator {
	return &timeCalculator{timeData: timeData, policy: policy, defaultTimezone: defaultTimezone}
}

// WeekAnchor returns local midnight of the Friday that starts the relevant Shabbat.
// On Saturday that is yesterday, on any other day the coming Friday.
func WeekAnchor(local time.Time) time.Time {
	var days int
	if local.Weekday() == time.Saturday {
		days = -1
	} else {
		days = (int(time.Friday) - int(local.Weekday()) + 7) % 7
	}
	d := local.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, local.Location())
}

func loadLocation(names ...string) *time.Location {
	for _, name := range names {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func (c *timeCalculator) Window(ctx context.Context, settings *model.ScheduleSettings, now time.Time) (*model.ScheduleWindow, error) {
	if settings == nil || settings.LocationID == "" {
		return nil, fmt.Errorf("schedule settings without location")
	}
	hide, err := model.ParseHideOffset(string(settings.HideOffset))
	if err != nil {
		return nil, err
	}
	restore, err := model.ParseRestoreOffset(string(settings.RestoreOffset))
	if err != nil {
		return nil, err
	}

	loc := loadLocation(settings.Timezone, c.defaultTimezone)
	week := WeekAnchor(now.In(loc))
	times, err := c.timeData.ShabbatTimes(ctx, settings.LocationID, week)
	if err != nil {
		return nil, fmt.Errorf("time data for %s week of %s: %w", settings.LocationID, week.Format("2006-01-02"), err)
	}
	if settings.Timezone == "" && times.Timezone != "" {
		loc = loadLocation(times.Timezone, c.defaultTimezone)
	}

	w := buildWindow(settings, times, hide, restore, loc)
	if now.Before(w.RestoreAt) {
		return w, nil
	}

	// the current cycle is over; roll exactly one cycle forward
	switch c.policy {
	case RolloverRequery:
		next, err := c.timeData.ShabbatTimes(ctx, settings.LocationID, week.AddDate(0, 0, 7))
		if err != nil {
			return nil, fmt.Errorf("time data for %s week of %s: %w", settings.LocationID, week.AddDate(0, 0, 7).Format("2006-01-02"), err)
		}
		w = buildWindow(settings, next, hide, restore, loc)
	default:
		shifted := *times
		shifted.CandleLighting = times.CandleLighting.In(loc).AddDate(0, 0, 7)
		shifted.Havdalah = times.Havdalah.In(loc).AddDate(0, 0, 7)
		w = buildWindow(settings, &shifted, hide, restore, loc)
	}
	if !now.Before(w.RestoreAt) {
		return nil, fmt.Errorf("time data for %s is stale: next restore %s is not after %s",
			settings.LocationID, w.RestoreAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return w, nil
}

func buildWindow(settings *model.ScheduleSettings, times *model.ShabbatTimes, hide model.HideOffset, restore model.RestoreOffset, loc *time.Location) *model.ScheduleWindow {
	candle := times.CandleLighting.In(loc)
	havdalah := times.Havdalah.In(loc)
	return &model.ScheduleWindow{
		UserID:         settings.UserID,
		LocationID:     settings.LocationID,
		CandleLighting: candle,
		Havdalah:       havdalah,
		HideOffset:     hide,
		RestoreOffset:  restore,
		Timezone:       loc.String(),
		HideAt:         candle.Add(-hide.Duration()),
		RestoreAt:      havdalah.Add(restore.Duration()),
	}
}
