package dto

import "shabbat-mode/domain/model"

// Res is the generic error envelope returned by middleware
type Res struct {
	ResponseCode    string      `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	Data            interface{} `json:"data,omitempty"`
}

// SchedulerStatus is returned by GET /scheduler/status
type SchedulerStatus struct {
	IsRunning      bool                        `json:"isRunning"`
	ActiveJobs     int                         `json:"activeJobs"`
	NextOperations []*model.ScheduledOperation `json:"nextOperations"`
}

// TestRunRequest is the body of POST /scheduler/test-hide and /scheduler/test-restore
type TestRunRequest struct {
	Platform  string   `json:"platform"`
	ExceptIDs []string `json:"exceptIds"`
}

// TestRunResponse carries one aggregate result per platform
type TestRunResponse struct {
	UserID  string              `json:"userId"`
	Action  model.OperationKind `json:"action"`
	Results []*model.BulkResult `json:"results"`
	Errors  map[string]string   `json:"errors,omitempty"`
}

// ToggleLockRequest is the body of POST /privacy-status/toggle-lock
type ToggleLockRequest struct {
	Platform  string `json:"platform" binding:"required"`
	ContentID string `json:"contentId" binding:"required"`
}

// ScheduleSettingsRequest is the body of PUT /schedule/settings
type ScheduleSettingsRequest struct {
	LocationID    string `json:"locationId" binding:"required"`
	Timezone      string `json:"timezone"`
	HideOffset    string `json:"hideOffset"`
	RestoreOffset string `json:"restoreOffset"`
	Enabled       *bool  `json:"enabled"`
}
