package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"shabbat-mode/domain/dto"
	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"
)

const (
	EventOperationCompleted = "operation_completed"
	EventOperationFailed    = "operation_failed"
	EventTestRun            = "test_run"

	errorBackoff      = 30 * time.Second
	statusPreviewSize = 10
)

type SchedulerConfig struct {
	MaxConcurrentOperations int
	// IdleRecheck bounds how long the dispatcher sleeps; every wake past it re-reconciles all connections
	IdleRecheck     time.Duration
	DefaultLocation string
	DefaultTimezone string
}

type ISchedulerEngine interface {
	Run(ctx context.Context) error
	Bootstrap(ctx context.Context) error
	EnsureScheduled(ctx context.Context, userID string, platform model.Platform) error
	// Reschedule re-derives a not-yet-started hide after the user's settings changed
	Reschedule(ctx context.Context, userID string) error
	Cancel(ctx context.Context, userID string, platform model.Platform) error
	RunNow(ctx context.Context, userID string, platforms []model.Platform, kind model.OperationKind, exceptIDs []string) (*dto.TestRunResponse, error)
	Status(ctx context.Context) (*dto.SchedulerStatus, error)
}

type SchedulerEngine struct {
	ops        repository.IOperation
	settings   repository.IScheduleSettings
	vault      ITokenVault
	registry   repository.IPlatformRegistry
	calculator ITimeCalculator
	bulk       *BulkRunner
	history    IHistoryRecorder
	events     repository.IEventPublisher
	clock      clockwork.Clock
	cfg        SchedulerConfig

	sem       *semaphore.Weighted
	wake      chan struct{}
	userLocks sync.Map
	pairLocks sync.Map
	running   atomic.Bool
	active    atomic.Int64
	inflight  sync.WaitGroup
}

type SchedulerDeps struct {
	Operations repository.IOperation
	Settings   repository.IScheduleSettings
	Vault      ITokenVault
	Registry   repository.IPlatformRegistry
	Calculator ITimeCalculator
	Bulk       *BulkRunner
	History    IHistoryRecorder
	Events     repository.IEventPublisher
	Clock      clockwork.Clock
}

func NewSchedulerEngine(deps SchedulerDeps, cfg SchedulerConfig) *SchedulerEngine {
	if cfg.MaxConcurrentOperations <= 0 {
		cfg.MaxConcurrentOperations = 8
	}
	if cfg.IdleRecheck <= 0 {
		cfg.IdleRecheck = time.Hour
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Events == nil {
		deps.Events = NewEventFanout()
	}
	return &SchedulerEngine{
		ops:        deps.Operations,
		settings:   deps.Settings,
		vault:      deps.Vault,
		registry:   deps.Registry,
		calculator: deps.Calculator,
		bulk:       deps.Bulk,
		history:    deps.History,
		events:     deps.Events,
		clock:      deps.Clock,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentOperations)),
		wake:       make(chan struct{}, 1),
	}
}

func (e *SchedulerEngine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *SchedulerEngine) userLock(userID string) *sync.Mutex {
	mu, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// pairLock serializes every change to one (user, platform) timeline
func (e *SchedulerEngine) pairLock(userID string, platform model.Platform) *sync.Mutex {
	mu, _ := e.pairLocks.LoadOrStore(userID+"|"+string(platform), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// settingsFor returns nil when the user has not configured a location and no default exists
func (e *SchedulerEngine) settingsFor(ctx context.Context, userID string) (*model.ScheduleSettings, error) {
	if e.settings != nil {
		s, err := e.settings.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	if e.cfg.DefaultLocation == "" {
		return nil, nil
	}
	return &model.ScheduleSettings{
		UserID:        userID,
		LocationID:    e.cfg.DefaultLocation,
		Timezone:      e.cfg.DefaultTimezone,
		HideOffset:    model.HideOffset30Min,
		RestoreOffset: model.RestoreImmediate,
		Enabled:       true,
	}, nil
}

func (e *SchedulerEngine) schedule(ctx context.Context, userID string, platform model.Platform, kind model.OperationKind, firesAt time.Time) error {
	op := &model.ScheduledOperation{UserID: userID, Platform: platform, Kind: kind, FiresAt: firesAt.UTC()}
	ok, err := e.ops.Schedule(ctx, op)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %s for %s: %w", kind, platform, userID, model.ErrSchedulingConflict)
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":      userID,
		"platform":     platform,
		"operation_id": op.ID,
		"kind":         kind,
		"fires_at":     op.FiresAt,
	}).Info("Operation scheduled")
	e.notify()
	return nil
}

// EnsureScheduled starts the weekly cycle for a pair that has nothing pending or executing.
func (e *SchedulerEngine) EnsureScheduled(ctx context.Context, userID string, platform model.Platform) error {
	mu := e.pairLock(userID, platform)
	mu.Lock()
	defer mu.Unlock()
	return e.ensureScheduled(ctx, userID, platform)
}

func (e *SchedulerEngine) ensureScheduled(ctx context.Context, userID string, platform model.Platform) error {
	active, err := e.ops.HasActive(ctx, userID, platform)
	if err != nil || active {
		return err
	}
	settings, err := e.settingsFor(ctx, userID)
	if err != nil {
		return err
	}
	if settings == nil || !settings.Enabled {
		return nil
	}
	now := e.clock.Now()
	w, err := e.calculator.Window(ctx, settings, now)
	if err != nil {
		return err
	}
	firesAt := w.HideAt
	if w.Contains(now) {
		// connected or restarted mid-window
		firesAt = now
	}
	err = e.schedule(ctx, userID, platform, model.OperationHide, firesAt)
	if errors.Is(err, model.ErrSchedulingConflict) {
		return nil
	}
	return err
}

// advance moves a finished operation's pair to its next pending operation
func (e *SchedulerEngine) advance(ctx context.Context, op *model.ScheduledOperation) error {
	settings, err := e.settingsFor(ctx, op.UserID)
	if err != nil {
		return err
	}
	next := op.Kind.Complement()
	if settings == nil || (!settings.Enabled && next == model.OperationHide) {
		return nil
	}

	now := e.clock.Now()
	w, err := e.calculator.Window(ctx, settings, now)
	if err != nil {
		return err
	}
	var firesAt time.Time
	switch next {
	case model.OperationRestore:
		firesAt = w.RestoreAt
		if !w.Contains(now) {
			// the hide ran after its window closed
			firesAt = now
		}
	default:
		firesAt = w.HideAt
		if w.Contains(now) {
			// restored early; the next hide belongs to the following cycle
			if w, err = e.calculator.Window(ctx, settings, w.RestoreAt); err != nil {
				return err
			}
			firesAt = w.HideAt
		}
	}
	err = e.schedule(ctx, op.UserID, op.Platform, next, firesAt)
	if errors.Is(err, model.ErrSchedulingConflict) {
		return nil
	}
	return err
}

func (e *SchedulerEngine) Reschedule(ctx context.Context, userID string) error {
	conns, err := e.vault.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	var errs []error
	for _, c := range conns {
		if err := e.rescheduleHide(ctx, userID, c.Platform); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *SchedulerEngine) rescheduleHide(ctx context.Context, userID string, platform model.Platform) error {
	mu := e.pairLock(userID, platform)
	mu.Lock()
	defer mu.Unlock()
	if _, err := e.ops.CancelPendingKind(ctx, userID, platform, model.OperationHide); err != nil {
		return err
	}
	return e.ensureScheduled(ctx, userID, platform)
}

func (e *SchedulerEngine) Cancel(ctx context.Context, userID string, platform model.Platform) error {
	mu := e.pairLock(userID, platform)
	mu.Lock()
	n, err := e.ops.CancelPending(ctx, userID, platform)
	mu.Unlock()
	if err != nil {
		return err
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":   userID,
		"platform":  platform,
		"cancelled": n,
	}).Info("Pending operations cancelled")
	e.notify()
	return nil
}

// Bootstrap replays operations interrupted by a crash and starts a cycle for every stored connection.
func (e *SchedulerEngine) Bootstrap(ctx context.Context) error {
	n, err := e.ops.ResetExecuting(ctx)
	if err != nil {
		return fmt.Errorf("reset executing operations: %w", err)
	}
	if n > 0 {
		logger.GetLogger().WithField("count", n).Warn("Replaying operations interrupted by restart")
	}
	return e.reconcile(ctx)
}

func (e *SchedulerEngine) reconcile(ctx context.Context) error {
	conns, err := e.vault.List(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}
	for _, c := range conns {
		if err := e.EnsureScheduled(ctx, c.UserID, c.Platform); err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"user_id":  c.UserID,
				"platform": c.Platform,
				"error":    err,
			}).Error("Failed to ensure schedule")
		}
	}
	e.notify()
	return nil
}

// Run drives the dispatcher until ctx is cancelled. Operations already started finish before it returns.
func (e *SchedulerEngine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	defer e.inflight.Wait()

	log := logger.GetLogger()
	log.Info("Scheduler dispatcher started")
	lastReconcile := e.clock.Now()
	for {
		wait := e.dispatchDue(ctx)
		if ctx.Err() != nil {
			log.Info("Scheduler dispatcher stopped")
			return nil
		}
		if wait > 0 {
			timer := e.clock.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info("Scheduler dispatcher stopped")
				return nil
			case <-e.wake:
				timer.Stop()
			case <-timer.Chan():
			}
		}
		if e.clock.Since(lastReconcile) >= e.cfg.IdleRecheck {
			lastReconcile = e.clock.Now()
			if err := e.reconcile(ctx); err != nil {
				log.WithField("error", err).Error("Reconcile failed")
			}
		}
	}
}

// dispatchDue starts every due operation and returns how long to sleep until the next one
func (e *SchedulerEngine) dispatchDue(ctx context.Context) time.Duration {
	log := logger.GetLogger()
	due, err := e.ops.ClaimDue(ctx, e.clock.Now())
	if err != nil {
		if ctx.Err() == nil {
			log.WithField("error", err).Error("Failed to claim due operations")
		}
		return errorBackoff
	}
	for _, op := range due {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			// shutting down; the claimed rows replay on next start
			return 0
		}
		e.inflight.Add(1)
		go func(op *model.ScheduledOperation) {
			defer e.inflight.Done()
			defer e.sem.Release(1)
			e.execute(context.WithoutCancel(ctx), op)
		}(op)
	}

	next, err := e.ops.NextFireTime(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.WithField("error", err).Error("Failed to read next fire time")
		}
		return errorBackoff
	}
	if next == nil {
		return e.cfg.IdleRecheck
	}
	wait := next.Sub(e.clock.Now())
	if wait > e.cfg.IdleRecheck {
		wait = e.cfg.IdleRecheck
	}
	return wait
}

// execute runs one claimed operation end to end, always leaving it Done or Failed.
// The next operation is scheduled before this one leaves Executing, so the pair never looks idle.
func (e *SchedulerEngine) execute(ctx context.Context, op *model.ScheduledOperation) {
	e.active.Add(1)
	defer e.active.Add(-1)

	log := logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":      op.UserID,
		"platform":     op.Platform,
		"operation_id": op.ID,
		"kind":         op.Kind,
	})

	mu := e.userLock(op.UserID)
	mu.Lock()
	res, runErr := e.runProtected(ctx, op.UserID, op.Platform, op.Kind, nil)
	mu.Unlock()

	status := model.OperationDone
	var errMsg *string
	if runErr != nil {
		status = model.OperationFailed
		errMsg = model.StrPtr(runErr.Error())
		log.WithField("error", runErr).Error("Operation failed")
	} else {
		log.WithFields(map[string]interface{}{
			"total":     res.Total,
			"processed": res.Processed,
			"failed":    res.Failed,
			"locked":    res.Locked,
		}).Info("Operation completed")
	}
	e.record(ctx, op.ID, op.UserID, op.Platform, op.Kind, res, runErr)

	eventType := EventOperationCompleted
	if runErr != nil {
		eventType = EventOperationFailed
	}
	e.publish(ctx, eventType, op.ID, op.UserID, op.Platform, op.Kind, res, runErr)

	pair := e.pairLock(op.UserID, op.Platform)
	pair.Lock()
	defer pair.Unlock()
	if errors.Is(runErr, model.ErrCredentialMissing) {
		log.Warn("Connection removed, cycle ended")
	} else if err := e.advance(ctx, op); err != nil {
		log.WithField("error", err).Error("Failed to schedule next operation")
	}
	if err := e.ops.Complete(ctx, op.ID, status, errMsg); err != nil {
		log.WithField("error", err).Error("Failed to complete operation")
	}
}

// runProtected converts a panic inside one run into an error
func (e *SchedulerEngine) runProtected(ctx context.Context, userID string, platform model.Platform, kind model.OperationKind, exceptIDs []string) (res *model.BulkResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"user_id":  userID,
				"platform": platform,
				"panic":    r,
				"stack":    string(debug.Stack()),
			}).Error("Recovered panic in operation")
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return e.run(ctx, userID, platform, kind, exceptIDs)
}

func (e *SchedulerEngine) run(ctx context.Context, userID string, platform model.Platform, kind model.OperationKind, exceptIDs []string) (*model.BulkResult, error) {
	adapter, err := e.registry.Adapter(platform)
	if err != nil {
		return nil, err
	}
	refresher, _ := adapter.(repository.ICredentialRefresher)
	cred, err := e.vault.FetchFresh(ctx, userID, platform, refresher)
	if err != nil {
		return nil, err
	}
	if kind == model.OperationHide {
		return e.bulk.Hide(ctx, adapter, *cred, exceptIDs)
	}
	return e.bulk.Restore(ctx, adapter, *cred, exceptIDs)
}

func (e *SchedulerEngine) record(ctx context.Context, operationID, userID string, platform model.Platform, kind model.OperationKind, res *model.BulkResult, runErr error) {
	entry := &model.HistoryEntry{
		OperationID: operationID,
		UserID:      userID,
		Platform:    platform,
		Action:      kind,
		Timestamp:   e.clock.Now().UTC(),
		Success:     runErr == nil,
	}
	if res != nil {
		entry.AffectedItems = res.Processed
		entry.ItemErrors = res.Errors
	}
	if runErr != nil {
		entry.Error = model.StrPtr(runErr.Error())
	}
	if err := e.history.Append(ctx, entry); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id":      userID,
			"operation_id": operationID,
			"error":        err,
		}).Error("Failed to append history")
	}
}

func (e *SchedulerEngine) publish(ctx context.Context, eventType, operationID, userID string, platform model.Platform, kind model.OperationKind, res *model.BulkResult, runErr error) {
	evt := &model.OperationEvent{
		Type:        eventType,
		OperationID: operationID,
		UserID:      userID,
		Platform:    platform,
		Action:      kind,
		Status:      string(model.OperationDone),
		Result:      res,
		OccurredAt:  e.clock.Now().UTC(),
	}
	if runErr != nil {
		evt.Status = string(model.OperationFailed)
		evt.Error = model.StrPtr(runErr.Error())
	}
	// delivery errors are logged by the publisher
	_ = e.events.PublishOperationEvent(ctx, evt)
}

// RunNow performs a synchronous hide or restore outside the schedule. Pending operations are untouched.
func (e *SchedulerEngine) RunNow(ctx context.Context, userID string, platforms []model.Platform, kind model.OperationKind, exceptIDs []string) (*dto.TestRunResponse, error) {
	if kind != model.OperationHide && kind != model.OperationRestore {
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
	if len(platforms) == 0 {
		conns, err := e.vault.ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, c := range conns {
			platforms = append(platforms, c.Platform)
		}
		if len(platforms) == 0 {
			return nil, fmt.Errorf("no connected platforms: %w", model.ErrCredentialMissing)
		}
	}

	resp := &dto.TestRunResponse{UserID: userID, Action: kind, Results: []*model.BulkResult{}}
	mu := e.userLock(userID)
	mu.Lock()
	defer mu.Unlock()
	e.active.Add(1)
	defer e.active.Add(-1)

	for _, p := range platforms {
		res, err := e.runProtected(ctx, userID, p, kind, exceptIDs)
		e.record(ctx, "", userID, p, kind, res, err)
		e.publish(ctx, EventTestRun, "", userID, p, kind, res, err)
		if err != nil {
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[string(p)] = err.Error()
			continue
		}
		resp.Results = append(resp.Results, res)
	}
	return resp, nil
}

func (e *SchedulerEngine) Status(ctx context.Context) (*dto.SchedulerStatus, error) {
	next, err := e.ops.ListPending(ctx, statusPreviewSize)
	if err != nil {
		return nil, err
	}
	if next == nil {
		next = []*model.ScheduledOperation{}
	}
	return &dto.SchedulerStatus{
		IsRunning:      e.running.Load(),
		ActiveJobs:     int(e.active.Load()),
		NextOperations: next,
	}, nil
}
