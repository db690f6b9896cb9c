package model

import "time"

// HistoryEntry is an immutable record of one executed operation
type HistoryEntry struct {
	ID            string        `json:"id" bson:"_id"`
	OperationID   string        `json:"operation_id,omitempty" bson:"operation_id,omitempty"`
	UserID        string        `json:"user_id" bson:"user_id"`
	Platform      Platform      `json:"platform" bson:"platform"`
	Action        OperationKind `json:"action" bson:"action"`
	Timestamp     time.Time     `json:"timestamp" bson:"timestamp"`
	AffectedItems int           `json:"affected_items" bson:"affected_items"`
	Success       bool          `json:"success" bson:"success"`
	Error         *string       `json:"error,omitempty" bson:"error,omitempty"`
	ItemErrors    []ItemError   `json:"item_errors,omitempty" bson:"item_errors,omitempty"`
}

// OperationEvent is published after every executed or tested operation
type OperationEvent struct {
	Type        string        `json:"type"`
	OperationID string        `json:"operation_id,omitempty"`
	UserID      string        `json:"user_id"`
	Platform    Platform      `json:"platform"`
	Action      OperationKind `json:"action"`
	Status      string        `json:"status"`
	Result      *BulkResult   `json:"result,omitempty"`
	Error       *string       `json:"error,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}
