package model

import "time"

// ContentItem is a platform content unit fetched transiently per run
type ContentItem struct {
	PlatformItemID string   `json:"platform_item_id"`
	Platform       Platform `json:"platform"`
	UserID         string   `json:"user_id"`
	Title          string   `json:"title,omitempty"`
	Visibility     string   `json:"visibility"`
}

// VisibilityChange is a single setVisibility request to an adapter
type VisibilityChange struct {
	ItemID        string
	Hidden        bool
	RestoreStatus string // target status when Hidden is false
}

// PrivacyStatus is the durable memory of what an item looked like before we touched it
type PrivacyStatus struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	Platform        Platform  `json:"platform"`
	ContentID       string    `json:"content_id"`
	OriginalStatus  string    `json:"original_status"`
	CurrentStatus   string    `json:"current_status"`
	IsLockedByUser  bool      `json:"is_locked_by_user"`
	WasHiddenByUser bool      `json:"was_hidden_by_user"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Changed reports whether the item still differs from its original visibility
func (s PrivacyStatus) Changed() bool { return s.CurrentStatus != s.OriginalStatus }

// ItemError is an itemized failure inside a bulk run
type ItemError struct {
	ItemID  string `json:"item_id" bson:"item_id"`
	Message string `json:"message" bson:"message"`
}

// BulkResult aggregates one bulk hide or restore run
type BulkResult struct {
	Platform  Platform      `json:"platform"`
	Action    OperationKind `json:"action"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Locked    int           `json:"locked"`
	Failed    int           `json:"failed"`
	Errors    []ItemError   `json:"errors"`
}

// PartialFailure reports whether some items failed while the run as a whole completed
func (r BulkResult) PartialFailure() bool { return r.Failed > 0 }
