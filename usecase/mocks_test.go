package usecase_test

import (
	"context"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"

	"github.com/stretchr/testify/mock"
)

type MockTimeData struct{ mock.Mock }

func (m *MockTimeData) ShabbatTimes(ctx context.Context, locationID string, week time.Time) (*model.ShabbatTimes, error) {
	args := m.Called(ctx, locationID, week)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ShabbatTimes), args.Error(1)
}

type MockConnection struct{ mock.Mock }

func (m *MockConnection) Upsert(ctx context.Context, c *model.PlatformConnection) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockConnection) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformConnection), args.Error(1)
}

func (m *MockConnection) Delete(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	args := m.Called(ctx, userID, platform)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConnection) List(ctx context.Context) ([]*model.PlatformConnection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PlatformConnection), args.Error(1)
}

func (m *MockConnection) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PlatformConnection), args.Error(1)
}

type MockLegacyToken struct{ mock.Mock }

func (m *MockLegacyToken) GetToken(ctx context.Context, userID, platform string) (*model.LegacyOAuthToken, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LegacyOAuthToken), args.Error(1)
}

func (m *MockLegacyToken) DeleteToken(ctx context.Context, userID, platform string) error {
	return m.Called(ctx, userID, platform).Error(0)
}

func (m *MockLegacyToken) ListTokens(ctx context.Context) ([]*model.LegacyOAuthToken, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.LegacyOAuthToken), args.Error(1)
}

type MockPrivacyStatus struct{ mock.Mock }

func (m *MockPrivacyStatus) RecordHide(ctx context.Context, s *model.PrivacyStatus) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyStatus) UpdateCurrent(ctx context.Context, userID string, platform model.Platform, contentID, current string) error {
	return m.Called(ctx, userID, platform, contentID, current).Error(0)
}

func (m *MockPrivacyStatus) ToggleLock(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyStatus) Get(ctx context.Context, userID string, platform model.Platform, contentID string) (*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyStatus) ListChanged(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PrivacyStatus), args.Error(1)
}

func (m *MockPrivacyStatus) List(ctx context.Context, userID string, platform model.Platform) ([]*model.PrivacyStatus, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PrivacyStatus), args.Error(1)
}

type MockHistory struct{ mock.Mock }

func (m *MockHistory) Insert(ctx context.Context, e *model.HistoryEntry) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

func (m *MockHistory) TrimToNewest(ctx context.Context, userID string, keep int) (int64, error) {
	args := m.Called(ctx, userID, keep)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHistory) Recent(ctx context.Context, userID string, limit int) ([]*model.HistoryEntry, error) {
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

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishOperationEvent(ctx context.Context, evt *model.OperationEvent) error {
	return m.Called(ctx, evt).Error(0)
}

type MockAdapter struct {
	mock.Mock
	platform model.Platform
}

func (m *MockAdapter) Platform() model.Platform { return m.platform }

func (m *MockAdapter) ListContent(ctx context.Context, cred model.Credential) ([]model.ContentItem, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentItem), args.Error(1)
}

func (m *MockAdapter) SetVisibility(ctx context.Context, cred model.Credential, change model.VisibilityChange) error {
	return m.Called(ctx, cred, change).Error(0)
}

// MockRefreshingAdapter also implements repository.ICredentialRefresher
type MockRefreshingAdapter struct {
	MockAdapter
}

func (m *MockRefreshingAdapter) RefreshCredential(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

// fakeRegistry maps platforms to adapters without throttling
type fakeRegistry map[model.Platform]repository.IPlatformAdapter

func (r fakeRegistry) Adapter(p model.Platform) (repository.IPlatformAdapter, error) {
	a, ok := r[p]
	if !ok {
		return nil, model.ErrCredentialMissing
	}
	return a, nil
}

func (r fakeRegistry) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(r))
	for _, p := range model.Platforms {
		if _, ok := r[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
