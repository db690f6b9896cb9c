package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"shabbat-mode/domain/dto"
	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type MockSchedulerEngine struct{ mock.Mock }

func (m *MockSchedulerEngine) Run(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSchedulerEngine) Bootstrap(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSchedulerEngine) EnsureScheduled(ctx context.Context, userID string, platform model.Platform) error {
	return m.Called(ctx, userID, platform).Error(0)
}

func (m *MockSchedulerEngine) Reschedule(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockSchedulerEngine) Cancel(ctx context.Context, userID string, platform model.Platform) error {
	return m.Called(ctx, userID, platform).Error(0)
}

func (m *MockSchedulerEngine) RunNow(ctx context.Context, userID string, platforms []model.Platform, kind model.OperationKind, exceptIDs []string) (*dto.TestRunResponse, error) {
	args := m.Called(ctx, userID, platforms, kind, exceptIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TestRunResponse), args.Error(1)
}

func (m *MockSchedulerEngine) Status(ctx context.Context) (*dto.SchedulerStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SchedulerStatus), args.Error(1)
}

type MockTokenVault struct{ mock.Mock }

func (m *MockTokenVault) Store(ctx context.Context, userID string, platform model.Platform, token *model.OAuthToken) (*model.PlatformConnection, error) {
	args := m.Called(ctx, userID, platform, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformConnection), args.Error(1)
}

func (m *MockTokenVault) Fetch(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *MockTokenVault) FetchFresh(ctx context.Context, userID string, platform model.Platform, refresher repository.ICredentialRefresher) (*model.Credential, error) {
	args := m.Called(ctx, userID, platform, refresher)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *MockTokenVault) Remove(ctx context.Context, userID string, platform model.Platform) error {
	return m.Called(ctx, userID, platform).Error(0)
}

func (m *MockTokenVault) List(ctx context.Context) ([]*model.PlatformConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PlatformConnection), args.Error(1)
}

func (m *MockTokenVault) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PlatformConnection), args.Error(1)
}

type MockPrivacyTracker struct{ mock.Mock }

func (m *MockPrivacyTracker) RecordHide(ctx context.Context, userID string, platform model.Platform, contentID, original string, hiddenByUser bool) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform, contentID, original, hiddenByUser)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyTracker) RecordRestore(ctx context.Context, userID string, platform model.Platform, contentID, status string) error {
	return m.Called(ctx, userID, platform, contentID, status).Error(0)
}

func (m *MockPrivacyTracker) ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyTracker) EligibleForRestore(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, []*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform)
	eligible, _ := args.Get(0).([]*model.PrivacyStatus)
	locked, _ := args.Get(1).([]*model.PrivacyStatus)
	return eligible, locked, args.Error(2)
}

func (m *MockPrivacyTracker) ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyTracker) List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyTracker) Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

type MockHistoryRecorder struct{ mock.Mock }

func (m *MockHistoryRecorder) Append(ctx context.Context, e *model.HistoryEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockHistoryRecorder) Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.HistoryEntry), args.Error(1)
}

type MockScheduleSettings struct{ mock.Mock }

func (m *MockScheduleSettings) Get(ctx context.Context, userID string) (*model.ScheduleSettings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScheduleSettings), args.Error(1)
}

func (m *MockScheduleSettings) Save(ctx context.Context, s *model.ScheduleSettings) error {
	return m.Called(ctx, s).Error(0)
}

// asUser stands in for the JWT middleware
func asUser(userID string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if userID != "" {
			ctx.Set("user_id", userID)
		}
		ctx.Next()
	}
}

func newTestRouter(userID string) (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("api")
	api.Use(asUser(userID))
	return r, api
}

func perform(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
