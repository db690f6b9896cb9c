package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IPlatformAdapter is the uniform contract every content platform implements
type IPlatformAdapter interface {
	Platform() model.Platform
	ListContent(ctx context.Context, cred model.Credential) ([]model.ContentItem, error)
	// SetVisibility must be safe to repeat with the same target state
	SetVisibility(ctx context.Context, cred model.Credential, change model.VisibilityChange) error
}

// ICredentialRefresher is implemented by adapters whose tokens expire and can be refreshed
type ICredentialRefresher interface {
	RefreshCredential(ctx context.Context, cred model.Credential) (*model.Credential, error)
}

// IPlatformRegistry selects an adapter by platform tag
type IPlatformRegistry interface {
	Adapter(p model.Platform) (IPlatformAdapter, error)
	Platforms() []model.Platform
}
