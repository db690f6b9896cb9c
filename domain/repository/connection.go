package repository

import (
	"context"

	"shabbat-mode/domain/model"
)

// IConnection persists encrypted platform connections owned by the token vault
type IConnection interface {
	Upsert(ctx context.Context, c *model.PlatformConnection) error
	Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error)
	Delete(ctx context.Context, userID string, platform model.Platform) (int64, error)
	List(ctx context.Context) ([]*model.PlatformConnection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

// ILegacyToken reads and removes plaintext tokens written before encryption was introduced
type ILegacyToken interface {
	GetToken(ctx context.Context, userID, platform string) (*model.LegacyOAuthToken, error)
	DeleteToken(ctx context.Context, userID, platform string) error
	ListTokens(ctx context.Context) ([]*model.LegacyOAuthToken, error)
}
