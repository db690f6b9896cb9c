package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"

	"golang.org/x/sync/errgroup"
)

// BulkRunner applies one hide or restore pass to every eligible item of a (user, platform) pair.
type BulkRunner struct {
	tracker   IPrivacyTracker
	itemLimit int
}

func NewBulkRunner(tracker IPrivacyTracker, itemLimit int) *BulkRunner {
	if itemLimit <= 0 {
		itemLimit = 4
	}
	return &BulkRunner{tracker: tracker, itemLimit: itemLimit}
}

// tally collects per-item outcomes from concurrent workers
type tally struct {
	mu  sync.Mutex
	res *model.BulkResult
}

func (t *tally) processed() {
	t.mu.Lock()
	t.res.Processed++
	t.mu.Unlock()
}

func (t *tally) skipped() {
	t.mu.Lock()
	t.res.Skipped++
	t.mu.Unlock()
}

func (t *tally) failed(itemID string, err error) {
	t.mu.Lock()
	t.res.Failed++
	t.res.Errors = append(t.res.Errors, model.ItemError{ItemID: itemID, Message: err.Error()})
	t.mu.Unlock()
}

func (t *tally) result() *model.BulkResult {
	sort.Slice(t.res.Errors, func(i, j int) bool { return t.res.Errors[i].ItemID < t.res.Errors[j].ItemID })
	return t.res
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Hide hides every visible item. Items already hidden are skipped, so a replayed hide is a no-op.
func (b *BulkRunner) Hide(ctx context.Context, adapter repository.IPlatformAdapter, cred model.Credential, exceptIDs []string) (*model.BulkResult, error) {
	platform := adapter.Platform()
	items, err := adapter.ListContent(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("list %s content: %w", platform, err)
	}
	except := toSet(exceptIDs)
	t := &tally{res: &model.BulkResult{Platform: platform, Action: model.OperationHide, Total: len(items), Errors: []model.ItemError{}}}
	hidden := platform.HiddenStatus()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.itemLimit)
	for _, item := range items {
		if except[item.PlatformItemID] {
			t.skipped()
			continue
		}
		g.Go(func() error {
			return guarded(item.PlatformItemID, t, func() error {
				return b.hideOne(gctx, adapter, cred, item, hidden, t)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t.result(), nil
}

func (b *BulkRunner) hideOne(ctx context.Context, adapter repository.IPlatformAdapter, cred model.Credential, item model.ContentItem, hidden string, t *tally) error {
	platform := adapter.Platform()
	if item.Visibility == hidden {
		// hidden before we got here: either by the owner or by an earlier run of this operation
		existing, err := b.tracker.Get(ctx, cred.UserID, platform, item.PlatformItemID)
		if err != nil {
			t.failed(item.PlatformItemID, err)
			return nil
		}
		if existing == nil {
			if _, err := b.tracker.RecordHide(ctx, cred.UserID, platform, item.PlatformItemID, item.Visibility, true); err != nil {
				t.failed(item.PlatformItemID, err)
				return nil
			}
		}
		t.skipped()
		return nil
	}

	// record first so a crash between the two calls still leaves the item restorable
	if _, err := b.tracker.RecordHide(ctx, cred.UserID, platform, item.PlatformItemID, item.Visibility, false); err != nil {
		t.failed(item.PlatformItemID, err)
		return nil
	}
	err := adapter.SetVisibility(ctx, cred, model.VisibilityChange{ItemID: item.PlatformItemID, Hidden: true})
	if err == nil {
		t.processed()
		return nil
	}
	if rerr := b.tracker.RecordRestore(ctx, cred.UserID, platform, item.PlatformItemID, item.Visibility); rerr != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"user_id":    cred.UserID,
			"platform":   platform,
			"content_id": item.PlatformItemID,
			"error":      rerr,
		}).Error("Failed to revert privacy status after hide failure")
	}
	return b.itemFailure(item.PlatformItemID, err, t)
}

// Restore puts every changed item back to its original status. Locked items are left hidden and counted apart.
func (b *BulkRunner) Restore(ctx context.Context, adapter repository.IPlatformAdapter, cred model.Credential, exceptIDs []string) (*model.BulkResult, error) {
	platform := adapter.Platform()
	eligible, locked, err := b.tracker.EligibleForRestore(ctx, cred.UserID, platform)
	if err != nil {
		return nil, fmt.Errorf("load %s privacy statuses: %w", platform, err)
	}
	except := toSet(exceptIDs)
	t := &tally{res: &model.BulkResult{
		Platform: platform,
		Action:   model.OperationRestore,
		Total:    len(eligible) + len(locked),
		Locked:   len(locked),
		Errors:   []model.ItemError{},
	}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.itemLimit)
	for _, s := range eligible {
		if except[s.ContentID] {
			t.skipped()
			continue
		}
		g.Go(func() error {
			return guarded(s.ContentID, t, func() error {
				return b.restoreOne(gctx, adapter, cred, s, t)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t.result(), nil
}

func (b *BulkRunner) restoreOne(ctx context.Context, adapter repository.IPlatformAdapter, cred model.Credential, s *model.PrivacyStatus, t *tally) error {
	platform := adapter.Platform()
	target := s.OriginalStatus
	if target == "" {
		target = platform.DefaultVisibleStatus()
	}
	err := adapter.SetVisibility(ctx, cred, model.VisibilityChange{ItemID: s.ContentID, Hidden: false, RestoreStatus: target})
	switch {
	case err == nil:
	case errors.Is(err, model.ErrItemNotFound):
		// deleted upstream; stop tracking it as changed
		if rerr := b.tracker.RecordRestore(ctx, cred.UserID, platform, s.ContentID, s.OriginalStatus); rerr != nil {
			t.failed(s.ContentID, rerr)
			return nil
		}
		t.skipped()
		return nil
	default:
		return b.itemFailure(s.ContentID, err, t)
	}
	if err := b.tracker.RecordRestore(ctx, cred.UserID, platform, s.ContentID, s.OriginalStatus); err != nil {
		t.failed(s.ContentID, err)
		return nil
	}
	t.processed()
	return nil
}

// guarded turns a panic in one item into an item failure
func guarded(itemID string, t *tally, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.failed(itemID, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()
	return fn()
}

// itemFailure counts the item; a rejected credential aborts the whole run
func (b *BulkRunner) itemFailure(itemID string, err error, t *tally) error {
	switch {
	case errors.Is(err, model.ErrCredentialInvalid):
		return err
	case errors.Is(err, model.ErrItemNotFound):
		t.skipped()
	default:
		t.failed(itemID, err)
	}
	return nil
}
