package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/usecase"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memOperations is an in-memory operation store with the same pending-uniqueness rule as the table
type memOperations struct {
	mu  sync.Mutex
	ops []*model.ScheduledOperation
	seq int
	// afterComplete runs once a Complete call has been applied
	afterComplete func(id string, status model.OperationStatus)
}

func (m *memOperations) Schedule(_ context.Context, op *model.ScheduledOperation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ops {
		if o.Status == model.OperationPending && o.UserID == op.UserID && o.Platform == op.Platform && o.Kind == op.Kind {
			return false, nil
		}
	}
	m.seq++
	op.ID = fmt.Sprintf("op-%d", m.seq)
	op.Status = model.OperationPending
	cp := *op
	m.ops = append(m.ops, &cp)
	return true, nil
}

func (m *memOperations) NextFireTime(context.Context) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next *time.Time
	for _, o := range m.ops {
		if o.Status == model.OperationPending && (next == nil || o.FiresAt.Before(*next)) {
			t := o.FiresAt
			next = &t
		}
	}
	return next, nil
}

func (m *memOperations) ClaimDue(_ context.Context, now time.Time) ([]*model.ScheduledOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*model.ScheduledOperation
	for _, o := range m.ops {
		if o.Status == model.OperationPending && !o.FiresAt.After(now) {
			o.Status = model.OperationExecuting
			cp := *o
			due = append(due, &cp)
		}
	}
	return due, nil
}

func (m *memOperations) Complete(_ context.Context, id string, status model.OperationStatus, errMsg *string) error {
	m.mu.Lock()
	for _, o := range m.ops {
		if o.ID == id {
			o.Status = status
			o.Error = errMsg
		}
	}
	m.mu.Unlock()
	if m.afterComplete != nil {
		m.afterComplete(id, status)
	}
	return nil
}

func (m *memOperations) cancel(userID string, platform model.Platform, kind model.OperationKind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.ops[:0]
	for _, o := range m.ops {
		if o.Status == model.OperationPending && o.UserID == userID && o.Platform == platform && (kind == "" || o.Kind == kind) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	m.ops = kept
	return n
}

func (m *memOperations) CancelPending(_ context.Context, userID string, platform model.Platform) (int64, error) {
	return m.cancel(userID, platform, ""), nil
}

func (m *memOperations) CancelPendingKind(_ context.Context, userID string, platform model.Platform, kind model.OperationKind) (int64, error) {
	return m.cancel(userID, platform, kind), nil
}

func (m *memOperations) ListPending(_ context.Context, limit int) ([]*model.ScheduledOperation, error) {
	out := m.withStatus(model.OperationPending)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memOperations) HasActive(_ context.Context, userID string, platform model.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.ops {
		if o.UserID == userID && o.Platform == platform && (o.Status == model.OperationPending || o.Status == model.OperationExecuting) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memOperations) ResetExecuting(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, o := range m.ops {
		if o.Status == model.OperationExecuting {
			o.Status = model.OperationPending
			n++
		}
	}
	return n, nil
}

func (m *memOperations) withStatus(status model.OperationStatus) []*model.ScheduledOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ScheduledOperation
	for _, o := range m.ops {
		if o.Status == status {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiresAt.Before(out[j].FiresAt) })
	return out
}

// weeklyTimes lights candles at 19:29 on the anchor Friday and ends Shabbat at 20:33 the next day
type weeklyTimes struct{ loc *time.Location }

func (w weeklyTimes) ShabbatTimes(_ context.Context, locationID string, week time.Time) (*model.ShabbatTimes, error) {
	f := week.In(w.loc)
	return &model.ShabbatTimes{
		LocationID:     locationID,
		CandleLighting: time.Date(f.Year(), f.Month(), f.Day(), 19, 29, 0, 0, w.loc),
		Havdalah:       time.Date(f.Year(), f.Month(), f.Day()+1, 20, 33, 0, 0, w.loc),
		Timezone:       w.loc.String(),
	}, nil
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

type engineFixture struct {
	engine   *usecase.SchedulerEngine
	ops      *memOperations
	settings *MockScheduleSettings
	vault    *MockTokenVault
	adapter  *MockAdapter
	privacy  *MockPrivacyStatus
	history  *MockHistory
	events   *MockEventPublisher
	clock    clockwork.FakeClock
	loc      *time.Location
}

func newEngineFixture(t *testing.T, now time.Time, cfg usecase.SchedulerConfig) *engineFixture {
	t.Helper()
	loc := newYork(t)
	f := &engineFixture{
		ops:      &memOperations{},
		settings: &MockScheduleSettings{},
		vault:    &MockTokenVault{},
		adapter:  &MockAdapter{platform: model.PlatformYouTube},
		privacy:  &MockPrivacyStatus{},
		history:  &MockHistory{},
		events:   &MockEventPublisher{},
		clock:    clockwork.NewFakeClockAt(now),
		loc:      loc,
	}
	if cfg.IdleRecheck == 0 {
		cfg.IdleRecheck = 30 * 24 * time.Hour
	}
	f.history.On("Insert", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	f.history.On("TrimToNewest", mock.Anything, mock.Anything, 50).Return(int64(0), nil).Maybe()
	f.events.On("PublishOperationEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	tracker := usecase.NewPrivacyTracker(f.privacy)
	f.engine = usecase.NewSchedulerEngine(usecase.SchedulerDeps{
		Operations: f.ops,
		Settings:   f.settings,
		Vault:      f.vault,
		Registry:   fakeRegistry{model.PlatformYouTube: f.adapter},
		Calculator: usecase.NewTimeCalculator(weeklyTimes{loc: loc}, usecase.RolloverFixedWeek, "UTC"),
		Bulk:       usecase.NewBulkRunner(tracker, 2),
		History:    usecase.NewHistoryRecorder(f.history, 50, f.clock),
		Events:     f.events,
		Clock:      f.clock,
	}, cfg)
	return f
}

func (f *engineFixture) at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2024, month, day, hour, minute, 0, 0, f.loc)
}

// start runs the dispatcher and returns a stop func that waits for it to exit
func (f *engineFixture) start(t *testing.T) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()
	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("dispatcher did not stop")
		}
	}
}

func TestSchedulerEngine_EnsureScheduledHidesBeforeCandles(t *testing.T) {
	loc := newYork(t)
	f := newEngineFixture(t, time.Date(2024, 3, 14, 9, 0, 0, 0, loc), usecase.SchedulerConfig{})
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)

	require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))

	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OperationHide, pending[0].Kind)
	assert.True(t, pending[0].FiresAt.Equal(f.at(3, 15, 18, 59)), "fires at %s", pending[0].FiresAt.In(loc))

	// a second call is a no-op while something is pending
	require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
	assert.Len(t, f.ops.withStatus(model.OperationPending), 1)
}

func TestSchedulerEngine_EnsureScheduledCatchesUpInsideWindow(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 16, 11, 0, 0, 0, loc)
	f := newEngineFixture(t, now, usecase.SchedulerConfig{})
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)

	require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].FiresAt.Equal(now))
}

func TestSchedulerEngine_EnsureScheduledRespectsSettings(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, loc)

	t.Run("disabled", func(t *testing.T) {
		f := newEngineFixture(t, now, usecase.SchedulerConfig{})
		s := nySettings()
		s.Enabled = false
		f.settings.On("Get", mock.Anything, "user-1").Return(s, nil)
		require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
		assert.Empty(t, f.ops.withStatus(model.OperationPending))
	})

	t.Run("no settings and no default location", func(t *testing.T) {
		f := newEngineFixture(t, now, usecase.SchedulerConfig{})
		f.settings.On("Get", mock.Anything, "user-1").Return(nil, nil)
		require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
		assert.Empty(t, f.ops.withStatus(model.OperationPending))
	})

	t.Run("default location", func(t *testing.T) {
		f := newEngineFixture(t, now, usecase.SchedulerConfig{DefaultLocation: "281184", DefaultTimezone: "America/New_York"})
		f.settings.On("Get", mock.Anything, "user-1").Return(nil, nil)
		require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
		pending := f.ops.withStatus(model.OperationPending)
		require.Len(t, pending, 1)
		assert.True(t, pending[0].FiresAt.Equal(f.at(3, 15, 18, 59)))
	})
}

func TestSchedulerEngine_FullWeeklyCycle(t *testing.T) {
	loc := newYork(t)
	f := newEngineFixture(t, time.Date(2024, 3, 15, 18, 0, 0, 0, loc), usecase.SchedulerConfig{})
	cred := &model.Credential{UserID: "user-1", Platform: model.PlatformYouTube, AccessToken: "tok"}
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)
	f.vault.On("FetchFresh", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything).Return(cred, nil)
	f.adapter.On("ListContent", mock.Anything, *cred).Return([]model.ContentItem{
		{PlatformItemID: "vid-1", Visibility: "public"},
		{PlatformItemID: "vid-2", Visibility: "unlisted"},
	}, nil).Once()
	f.adapter.On("SetVisibility", mock.Anything, *cred, mock.Anything).Return(nil)
	f.privacy.On("RecordHide", mock.Anything, mock.Anything).Return(&model.PrivacyStatus{}, nil)
	f.privacy.On("ListChanged", mock.Anything, "user-1", model.PlatformYouTube).Return([]*model.PrivacyStatus{
		{ContentID: "vid-1", OriginalStatus: "public", CurrentStatus: "private"},
		{ContentID: "vid-2", OriginalStatus: "unlisted", CurrentStatus: "private"},
	}, nil).Once()
	f.privacy.On("UpdateCurrent", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube))
	stop := f.start(t)
	defer stop()

	f.clock.BlockUntil(1)
	f.clock.Advance(59 * time.Minute)
	require.Eventually(t, func() bool {
		p := f.ops.withStatus(model.OperationPending)
		return len(p) == 1 && p[0].Kind == model.OperationRestore
	}, 5*time.Second, 10*time.Millisecond)
	restore := f.ops.withStatus(model.OperationPending)[0]
	assert.True(t, restore.FiresAt.Equal(f.at(3, 16, 20, 33)), "restore at %s", restore.FiresAt.In(loc))

	f.clock.BlockUntil(1)
	f.clock.Advance(restore.FiresAt.Sub(f.clock.Now()))
	require.Eventually(t, func() bool {
		p := f.ops.withStatus(model.OperationPending)
		return len(p) == 1 && p[0].Kind == model.OperationHide
	}, 5*time.Second, 10*time.Millisecond)
	nextHide := f.ops.withStatus(model.OperationPending)[0]
	assert.True(t, nextHide.FiresAt.Equal(f.at(3, 22, 18, 59)), "next hide at %s", nextHide.FiresAt.In(loc))

	// the restore completes right after its successor is scheduled
	require.Eventually(t, func() bool { return len(f.ops.withStatus(model.OperationDone)) == 2 }, 5*time.Second, 10*time.Millisecond)
	f.adapter.AssertNumberOfCalls(t, "SetVisibility", 4)
	f.history.AssertNumberOfCalls(t, "Insert", 2)
	f.events.AssertCalled(t, "PublishOperationEvent", mock.Anything, mock.MatchedBy(func(e *model.OperationEvent) bool {
		return e.Type == usecase.EventOperationCompleted && e.Action == model.OperationRestore && e.Result.Processed == 2
	}))
}

func TestSchedulerEngine_MissingCredentialEndsCycle(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 15, 19, 30, 0, 0, loc)
	f := newEngineFixture(t, now, usecase.SchedulerConfig{})
	f.vault.On("FetchFresh", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything).
		Return(nil, fmt.Errorf("youtube for user user-1: %w", model.ErrCredentialMissing))
	_, err := f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)

	stop := f.start(t)
	require.Eventually(t, func() bool { return len(f.ops.withStatus(model.OperationFailed)) == 1 }, 5*time.Second, 10*time.Millisecond)
	stop()

	assert.Empty(t, f.ops.withStatus(model.OperationPending))
	failed := f.ops.withStatus(model.OperationFailed)[0]
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "credential missing")
	f.history.AssertCalled(t, "Insert", mock.Anything, mock.MatchedBy(func(e *model.HistoryEntry) bool {
		return e.OperationID == failed.ID && !e.Success
	}))
	f.settings.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestSchedulerEngine_PanicIsRecoveredAndCycleAdvances(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 15, 19, 30, 0, 0, loc)
	f := newEngineFixture(t, now, usecase.SchedulerConfig{})
	cred := &model.Credential{UserID: "user-1", Platform: model.PlatformYouTube}
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)
	f.vault.On("FetchFresh", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything).Return(cred, nil)
	f.adapter.On("ListContent", mock.Anything, *cred).Run(func(mock.Arguments) { panic("boom") }).Return(nil, nil)
	_, err := f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: now})
	require.NoError(t, err)

	stop := f.start(t)
	require.Eventually(t, func() bool {
		p := f.ops.withStatus(model.OperationPending)
		return len(p) == 1 && p[0].Kind == model.OperationRestore
	}, 5*time.Second, 10*time.Millisecond)
	stop()

	failed := f.ops.withStatus(model.OperationFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, *failed[0].Error, "panic: boom")
}

func TestSchedulerEngine_EnsureDuringCompletionDoesNotHideTwice(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 15, 19, 30, 0, 0, loc)
	f := newEngineFixture(t, now, usecase.SchedulerConfig{})
	cred := &model.Credential{UserID: "user-1", Platform: model.PlatformYouTube}
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)
	f.vault.On("FetchFresh", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything).Return(cred, nil)
	f.adapter.On("ListContent", mock.Anything, *cred).Return([]model.ContentItem{}, nil)
	_, err := f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: now})
	require.NoError(t, err)

	// a reconcile racing the end of the hide
	ensured := make(chan error, 1)
	var once sync.Once
	f.ops.afterComplete = func(string, model.OperationStatus) {
		once.Do(func() {
			go func() { ensured <- f.engine.EnsureScheduled(context.Background(), "user-1", model.PlatformYouTube) }()
		})
	}

	stop := f.start(t)
	select {
	case err := <-ensured:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ensure did not return")
	}
	stop()

	assert.Len(t, f.ops.withStatus(model.OperationDone), 1)
	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OperationRestore, pending[0].Kind)
	assert.True(t, pending[0].FiresAt.Equal(f.at(3, 16, 20, 33)), "restore at %s", pending[0].FiresAt.In(loc))
	f.adapter.AssertNumberOfCalls(t, "ListContent", 1)
}

func TestSchedulerEngine_CancelLeavesNothingPending(t *testing.T) {
	f := newEngineFixture(t, time.Now(), usecase.SchedulerConfig{})
	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: time.Now().Add(time.Hour)})
	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-2", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: time.Now().Add(time.Hour)})

	require.NoError(t, f.engine.Cancel(context.Background(), "user-1", model.PlatformYouTube))
	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "user-2", pending[0].UserID)
}

func TestSchedulerEngine_RescheduleMovesHideButKeepsRestore(t *testing.T) {
	loc := newYork(t)
	f := newEngineFixture(t, time.Date(2024, 3, 14, 9, 0, 0, 0, loc), usecase.SchedulerConfig{})
	s := nySettings()
	s.HideOffset = model.HideOffset1Hour
	f.settings.On("Get", mock.Anything, "user-1").Return(s, nil)
	f.vault.On("ListByUser", mock.Anything, "user-1").Return([]*model.PlatformConnection{
		{UserID: "user-1", Platform: model.PlatformYouTube},
		{UserID: "user-1", Platform: model.PlatformFacebook},
	}, nil)
	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: f.at(3, 15, 18, 59)})
	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformFacebook, Kind: model.OperationRestore, FiresAt: f.at(3, 16, 20, 33)})

	require.NoError(t, f.engine.Reschedule(context.Background(), "user-1"))

	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 2)
	assert.Equal(t, model.PlatformYouTube, pending[0].Platform)
	assert.True(t, pending[0].FiresAt.Equal(f.at(3, 15, 18, 29)), "hide at %s", pending[0].FiresAt.In(loc))
	assert.Equal(t, model.OperationRestore, pending[1].Kind)
}

func TestSchedulerEngine_BootstrapReplaysInterruptedOperations(t *testing.T) {
	loc := newYork(t)
	now := time.Date(2024, 3, 14, 9, 0, 0, 0, loc)
	f := newEngineFixture(t, now, usecase.SchedulerConfig{})
	f.settings.On("Get", mock.Anything, "user-1").Return(nySettings(), nil)
	f.settings.On("Get", mock.Anything, "user-2").Return(nySettings(), nil)
	f.vault.On("List", mock.Anything).Return([]*model.PlatformConnection{
		{UserID: "user-1", Platform: model.PlatformYouTube},
		{UserID: "user-2", Platform: model.PlatformFacebook},
	}, nil).Once()

	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationRestore, FiresAt: now.Add(-time.Hour)})
	_, _ = f.ops.ClaimDue(context.Background(), now)
	require.Len(t, f.ops.withStatus(model.OperationExecuting), 1)

	require.NoError(t, f.engine.Bootstrap(context.Background()))

	pending := f.ops.withStatus(model.OperationPending)
	require.Len(t, pending, 2)
	assert.Equal(t, model.OperationRestore, pending[0].Kind, "interrupted restore replays first")
	assert.Equal(t, "user-2", pending[1].UserID)
	assert.Equal(t, model.OperationHide, pending[1].Kind)
}

func TestSchedulerEngine_RunNowReportsPerPlatform(t *testing.T) {
	f := newEngineFixture(t, time.Now(), usecase.SchedulerConfig{})
	cred := &model.Credential{UserID: "user-1", Platform: model.PlatformYouTube}
	f.vault.On("ListByUser", mock.Anything, "user-1").Return([]*model.PlatformConnection{
		{UserID: "user-1", Platform: model.PlatformYouTube},
		{UserID: "user-1", Platform: model.PlatformFacebook},
	}, nil).Once()
	f.vault.On("FetchFresh", mock.Anything, "user-1", model.PlatformYouTube, mock.Anything).Return(cred, nil).Once()
	f.adapter.On("ListContent", mock.Anything, *cred).Return(publicVideos(3), nil).Once()
	f.adapter.On("SetVisibility", mock.Anything, *cred, mock.Anything).Return(nil).Times(2)
	f.privacy.On("RecordHide", mock.Anything, mock.Anything).Return(&model.PrivacyStatus{}, nil).Times(2)

	resp, err := f.engine.RunNow(context.Background(), "user-1", nil, model.OperationHide, []string{"vid-2"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 3, resp.Results[0].Total)
	assert.Equal(t, 2, resp.Results[0].Processed)
	assert.Equal(t, 1, resp.Results[0].Skipped)
	assert.Contains(t, resp.Errors, "facebook")
	assert.Empty(t, f.ops.withStatus(model.OperationPending), "test runs never touch the schedule")
	f.history.AssertNumberOfCalls(t, "Insert", 2)
}

func TestSchedulerEngine_RunNowRejectsUnknownKind(t *testing.T) {
	f := newEngineFixture(t, time.Now(), usecase.SchedulerConfig{})
	_, err := f.engine.RunNow(context.Background(), "user-1", []model.Platform{model.PlatformYouTube}, "archive", nil)
	require.Error(t, err)
}

func TestSchedulerEngine_RunNowWithoutConnections(t *testing.T) {
	f := newEngineFixture(t, time.Now(), usecase.SchedulerConfig{})
	f.vault.On("ListByUser", mock.Anything, "user-1").Return([]*model.PlatformConnection{}, nil).Once()
	_, err := f.engine.RunNow(context.Background(), "user-1", nil, model.OperationRestore, nil)
	assert.True(t, errors.Is(err, model.ErrCredentialMissing))
}

func TestSchedulerEngine_Status(t *testing.T) {
	f := newEngineFixture(t, time.Now(), usecase.SchedulerConfig{})
	_, _ = f.ops.Schedule(context.Background(), &model.ScheduledOperation{UserID: "user-1", Platform: model.PlatformYouTube, Kind: model.OperationHide, FiresAt: time.Now().Add(2 * time.Hour)})

	status, err := f.engine.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Equal(t, 0, status.ActiveJobs)
	require.Len(t, status.NextOperations, 1)
	assert.Equal(t, model.OperationHide, status.NextOperations[0].Kind)
}
