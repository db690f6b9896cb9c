// Package platform selects content-platform adapters by tag and throttles calls per platform.
package platform

import (
	"context"
	"fmt"
	"sort"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"

	"golang.org/x/time/rate"
)

type Registry struct {
	adapters map[model.Platform]repository.IPlatformAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[model.Platform]repository.IPlatformAdapter{}}
}

// Register adds an adapter, throttled to rps calls per second when rps > 0.
func (r *Registry) Register(adapter repository.IPlatformAdapter, rps int) {
	if rps > 0 {
		adapter = newThrottled(adapter, rate.NewLimiter(rate.Limit(rps), rps))
	}
	r.adapters[adapter.Platform()] = adapter
}

func (r *Registry) Adapter(p model.Platform) (repository.IPlatformAdapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}

func (r *Registry) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type throttled struct {
	inner   repository.IPlatformAdapter
	limiter *rate.Limiter
}

// throttledRefresher keeps the optional refresher interface visible through the wrapper.
type throttledRefresher struct {
	*throttled
	refresher repository.ICredentialRefresher
}

func newThrottled(inner repository.IPlatformAdapter, limiter *rate.Limiter) repository.IPlatformAdapter {
	t := &throttled{inner: inner, limiter: limiter}
	if ref, ok := inner.(repository.ICredentialRefresher); ok {
		return &throttledRefresher{throttled: t, refresher: ref}
	}
	return t
}

func (t *throttled) Platform() model.Platform { return t.inner.Platform() }

func (t *throttled) ListContent(ctx context.Context, cred model.Credential) ([]model.ContentItem, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.ListContent(ctx, cred)
}

func (t *throttled) SetVisibility(ctx context.Context, cred model.Credential, change model.VisibilityChange) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.inner.SetVisibility(ctx, cred, change)
}

func (t *throttledRefresher) RefreshCredential(ctx context.Context, cred model.Credential) (*model.Credential, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.refresher.RefreshCredential(ctx, cred)
}
