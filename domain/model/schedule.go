package model

import (
	"fmt"
	"time"
)

// HideOffset is how long before candle lighting content is hidden
type HideOffset string

const (
	HideOffset15Min HideOffset = "15min"
	HideOffset30Min HideOffset = "30min"
	HideOffset1Hour HideOffset = "1hour"
)

// RestoreOffset is how long after havdalah content is restored
type RestoreOffset string

const (
	RestoreImmediate   RestoreOffset = "immediate"
	RestoreOffset30Min RestoreOffset = "30min"
	RestoreOffset1Hour RestoreOffset = "1hour"
)

func ParseHideOffset(s string) (HideOffset, error) {
	switch o := HideOffset(s); o {
	case HideOffset15Min, HideOffset30Min, HideOffset1Hour:
		return o, nil
	case "":
		return HideOffset30Min, nil
	}
	return "", fmt.Errorf("invalid hide offset %q (want 15min, 30min or 1hour)", s)
}

func ParseRestoreOffset(s string) (RestoreOffset, error) {
	switch o := RestoreOffset(s); o {
	case RestoreImmediate, RestoreOffset30Min, RestoreOffset1Hour:
		return o, nil
	case "":
		return RestoreImmediate, nil
	}
	return "", fmt.Errorf("invalid restore offset %q (want immediate, 30min or 1hour)", s)
}

func (o HideOffset) Duration() time.Duration {
	switch o {
	case HideOffset15Min:
		return 15 * time.Minute
	case HideOffset1Hour:
		return time.Hour
	default:
		return 30 * time.Minute
	}
}

func (o RestoreOffset) Duration() time.Duration {
	switch o {
	case RestoreOffset30Min:
		return 30 * time.Minute
	case RestoreOffset1Hour:
		return time.Hour
	default:
		return 0
	}
}

// ScheduleSettings are the durable per-user timing preferences
type ScheduleSettings struct {
	UserID        string        `json:"user_id" gorm:"primaryKey;size:128"`
	LocationID    string        `json:"location_id" gorm:"size:64;not null"`
	Timezone      string        `json:"timezone" gorm:"size:64"`
	HideOffset    HideOffset    `json:"hide_offset" gorm:"size:16;not null"`
	RestoreOffset RestoreOffset `json:"restore_offset" gorm:"size:16;not null"`
	Enabled       bool          `json:"enabled" gorm:"not null;default:true"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"autoUpdateTime;index"`
}

// TableName pins the gorm table name
func (ScheduleSettings) TableName() string { return "schedule_settings" }

// ShabbatTimes is what the time-data collaborator returns for one week
type ShabbatTimes struct {
	LocationID     string    `json:"location_id"`
	CandleLighting time.Time `json:"candle_lighting"`
	Havdalah       time.Time `json:"havdalah"`
	Timezone       string    `json:"timezone"`
}

// ScheduleWindow is one user's resolved weekly timing
type ScheduleWindow struct {
	UserID         string        `json:"user_id"`
	LocationID     string        `json:"location_id"`
	CandleLighting time.Time     `json:"candle_lighting"`
	Havdalah       time.Time     `json:"havdalah"`
	HideOffset     HideOffset    `json:"hide_offset"`
	RestoreOffset  RestoreOffset `json:"restore_offset"`
	Timezone       string        `json:"timezone"`
	HideAt         time.Time     `json:"hide_at"`
	RestoreAt      time.Time     `json:"restore_at"`
}

// Contains reports whether t falls inside [HideAt, RestoreAt)
func (w ScheduleWindow) Contains(t time.Time) bool {
	return !t.Before(w.HideAt) && t.Before(w.RestoreAt)
}

// OperationKind is the direction of a scheduled transition
type OperationKind string

const (
	OperationHide    OperationKind = "hide"
	OperationRestore OperationKind = "restore"
)

// Complement returns the kind that follows this one in the weekly cycle
func (k OperationKind) Complement() OperationKind {
	if k == OperationHide {
		return OperationRestore
	}
	return OperationHide
}

// OperationStatus tracks a scheduled operation through its lifecycle
type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationExecuting OperationStatus = "executing"
	OperationDone      OperationStatus = "done"
	OperationFailed    OperationStatus = "failed"
)

// ScheduledOperation is one pending or executed transition for a (user, platform) pair
type ScheduledOperation struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Platform  Platform        `json:"platform"`
	Kind      OperationKind   `json:"kind"`
	FiresAt   time.Time       `json:"fires_at"`
	Status    OperationStatus `json:"status"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
