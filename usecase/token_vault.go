package usecase

import (
	"context"
	"fmt"
	"time"

	"shabbat-mode/domain/model"
	"shabbat-mode/domain/repository"
	"shabbat-mode/infrastructure/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// legacyAlgorithm marks connections served from the plaintext oauth_tokens table
const legacyAlgorithm = "plaintext"

// refreshWindow is how close to expiry a token must be before it is refreshed
const refreshWindow = 5 * time.Minute

// ITokenCipher seals token fields bound to (user, platform)
type ITokenCipher interface {
	Seal(userID string, platform model.Platform, plaintext string) (model.SealedField, error)
	Open(userID string, platform model.Platform, field model.SealedField) (string, error)
	LookupHash(token string) string
	VerifyLookupHash(token, expected string) bool
	KeyVersion() int
}

type ITokenVault interface {
	Store(ctx context.Context, userID string, platform model.Platform, token *model.OAuthToken) (*model.PlatformConnection, error)
	Fetch(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error)
	// FetchFresh is Fetch plus a refresh-and-store when the token is about to expire
	FetchFresh(ctx context.Context, userID string, platform model.Platform, refresher repository.ICredentialRefresher) (*model.Credential, error)
	Remove(ctx context.Context, userID string, platform model.Platform) error
	List(ctx context.Context) ([]*model.PlatformConnection, error)
	ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error)
}

type tokenVault struct {
	connections repository.IConnection
	legacy      repository.ILegacyToken
	cipher      ITokenCipher
	algorithm   string
	clock       clockwork.Clock
}

func NewTokenVault(connections repository.IConnection, legacy repository.ILegacyToken, cipher ITokenCipher, algorithm string, clock clockwork.Clock) ITokenVault {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &tokenVault{connections: connections, legacy: legacy, cipher: cipher, algorithm: algorithm, clock: clock}
}

func (v *tokenVault) Store(ctx context.Context, userID string, platform model.Platform, token *model.OAuthToken) (*model.PlatformConnection, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	now := v.clock.Now().UTC()

	access, err := v.cipher.Seal(userID, platform, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	conn := &model.PlatformConnection{
		ID:             uuid.NewString(),
		UserID:         userID,
		Platform:       platform,
		ConnectionName: token.ConnectionName,
		AccountID:      token.AccountID,
		AccountName:    token.AccountName,
		AccessToken:    access,
		KeyVersion:     v.cipher.KeyVersion(),
		Algorithm:      v.algorithm,
		LookupHash:     v.cipher.LookupHash(token.AccessToken),
		Scopes:         token.Scopes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if token.RefreshToken != "" {
		refresh, err := v.cipher.Seal(userID, platform, token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("seal refresh token: %w", err)
		}
		conn.RefreshToken = &refresh
	}
	switch {
	case token.ExpiresAt != nil:
		exp := token.ExpiresAt.UTC()
		conn.ExpiresAt = &exp
	case token.ExpiresIn > 0:
		exp := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		conn.ExpiresAt = &exp
	}

	existing, err := v.connections.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
		if conn.ConnectionName == "" {
			conn.ConnectionName = existing.ConnectionName
		}
		if conn.AccountID == "" {
			conn.AccountID = existing.AccountID
			conn.AccountName = existing.AccountName
		}
	}
	if conn.ConnectionName == "" {
		conn.ConnectionName = string(platform)
	}
	if err := v.connections.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	// the encrypted row supersedes any plaintext one
	if v.legacy != nil {
		if err := v.legacy.DeleteToken(ctx, userID, string(platform)); err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"user_id":  userID,
				"platform": platform,
				"error":    err,
			}).Warn("Failed to delete legacy token row")
		}
	}
	return conn, nil
}

func (v *tokenVault) Fetch(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	conn, err := v.connections.Get(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		return v.open(conn)
	}

	if v.legacy == nil {
		return nil, fmt.Errorf("%s for user %s: %w", platform, userID, model.ErrCredentialMissing)
	}
	lt, err := v.legacy.GetToken(ctx, userID, string(platform))
	if err != nil {
		return nil, err
	}
	if lt == nil || lt.AccessToken == "" {
		return nil, fmt.Errorf("%s for user %s: %w", platform, userID, model.ErrCredentialMissing)
	}
	cred := &model.Credential{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  lt.AccessToken,
		RefreshToken: lt.RefreshToken,
		ExpiresAt:    lt.ExpiresAt,
		Scopes:       lt.Scopes,
	}
	if lt.PageID != nil {
		cred.AccountID = *lt.PageID
	}
	return cred, nil
}

func (v *tokenVault) open(conn *model.PlatformConnection) (*model.Credential, error) {
	if conn.KeyVersion != 0 && conn.KeyVersion != v.cipher.KeyVersion() {
		return nil, fmt.Errorf("key version %d is not loaded: %w", conn.KeyVersion, model.ErrCredentialInvalid)
	}
	access, err := v.cipher.Open(conn.UserID, conn.Platform, conn.AccessToken)
	if err != nil {
		return nil, err
	}
	if conn.LookupHash != "" && !v.cipher.VerifyLookupHash(access, conn.LookupHash) {
		return nil, fmt.Errorf("lookup hash mismatch for %s/%s: %w", conn.UserID, conn.Platform, model.ErrCredentialInvalid)
	}
	cred := &model.Credential{
		UserID:      conn.UserID,
		Platform:    conn.Platform,
		AccountID:   conn.AccountID,
		AccessToken: access,
		ExpiresAt:   conn.ExpiresAt,
		Scopes:      conn.Scopes,
	}
	if conn.RefreshToken != nil {
		refresh, err := v.cipher.Open(conn.UserID, conn.Platform, *conn.RefreshToken)
		if err != nil {
			return nil, err
		}
		cred.RefreshToken = refresh
	}
	return cred, nil
}

func (v *tokenVault) FetchFresh(ctx context.Context, userID string, platform model.Platform, refresher repository.ICredentialRefresher) (*model.Credential, error) {
	cred, err := v.Fetch(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	if refresher == nil || cred.RefreshToken == "" || !cred.Expiring(v.clock.Now(), refreshWindow) {
		return cred, nil
	}

	log := logger.GetLogger().WithFields(map[string]interface{}{
		"user_id":  userID,
		"platform": platform,
	})
	refreshed, err := refresher.RefreshCredential(ctx, *cred)
	if err != nil {
		log.WithField("error", err).Warn("Token refresh failed")
		return nil, err
	}
	token := &model.OAuthToken{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		ExpiresAt:    refreshed.ExpiresAt,
		Scopes:       refreshed.Scopes,
		AccountID:    refreshed.AccountID,
	}
	if _, err := v.Store(ctx, userID, platform, token); err != nil {
		// the refreshed token still works for this run
		log.WithField("error", err).Error("Failed to store refreshed token")
	}
	return refreshed, nil
}

func (v *tokenVault) Remove(ctx context.Context, userID string, platform model.Platform) error {
	if _, err := v.connections.Delete(ctx, userID, platform); err != nil {
		return err
	}
	if v.legacy != nil {
		return v.legacy.DeleteToken(ctx, userID, string(platform))
	}
	return nil
}

func (v *tokenVault) List(ctx context.Context) ([]*model.PlatformConnection, error) {
	conns, err := v.connections.List(ctx)
	if err != nil {
		return nil, err
	}
	return v.withLegacy(ctx, conns, "")
}

func (v *tokenVault) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	conns, err := v.connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return v.withLegacy(ctx, conns, userID)
}

// withLegacy appends plaintext-only connections that have not been migrated yet
func (v *tokenVault) withLegacy(ctx context.Context, conns []*model.PlatformConnection, userID string) ([]*model.PlatformConnection, error) {
	if v.legacy == nil {
		return conns, nil
	}
	tokens, err := v.legacy.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(conns))
	for _, c := range conns {
		seen[c.UserID+"|"+string(c.Platform)] = true
	}
	for _, t := range tokens {
		if userID != "" && t.UserID != userID {
			continue
		}
		p, err := model.ParsePlatform(t.Platform)
		if err != nil || seen[t.UserID+"|"+string(p)] {
			continue
		}
		seen[t.UserID+"|"+string(p)] = true
		c := &model.PlatformConnection{
			UserID:         t.UserID,
			Platform:       p,
			ConnectionName: string(p),
			Algorithm:      legacyAlgorithm,
			ExpiresAt:      t.ExpiresAt,
			Scopes:         t.Scopes,
			CreatedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		}
		if t.PageID != nil {
			c.AccountID = *t.PageID
		}
		if t.PageName != nil {
			c.AccountName = *t.PageName
		}
		conns = append(conns, c)
	}
	return conns, nil
}
