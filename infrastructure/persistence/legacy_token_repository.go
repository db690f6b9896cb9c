package persistence

import (
	"context"
	"database/sql"

	"shabbat-mode/domain/model"
)

const legacyTokenColumns = `id, user_id, platform, access_token, refresh_token, expires_at, scopes, page_id, page_name, created_at, updated_at`

// LegacyTokenRepository reads the plaintext oauth_tokens table so existing links keep working until re-encrypted.
type LegacyTokenRepository struct{ db *sql.DB }

func NewLegacyTokenRepository(db *sql.DB) *LegacyTokenRepository {
	return &LegacyTokenRepository{db: db}
}

// GetToken returns nil, nil when no legacy row exists.
func (r *LegacyTokenRepository) GetToken(ctx context.Context, userID, platform string) (*model.LegacyOAuthToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+legacyTokenColumns+` FROM oauth_tokens WHERE user_id=$1 AND platform=$2`, userID, platform)
	tok, err := scanLegacyToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tok, err
}

func (r *LegacyTokenRepository) DeleteToken(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}

func (r *LegacyTokenRepository) ListTokens(ctx context.Context) ([]*model.LegacyOAuthToken, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+legacyTokenColumns+` FROM oauth_tokens ORDER BY user_id, platform`)
	if err != nil {
		return nil, err
	}
	return collectLegacyTokens(rows)
}

func scanLegacyToken(row rowScanner) (*model.LegacyOAuthToken, error) {
	tok := &model.LegacyOAuthToken{}
	var exp sql.NullTime
	var refresh, pageID, pageName sql.NullString
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.Platform, &tok.AccessToken, &refresh, &exp, &tok.Scopes, &pageID, &pageName, &tok.CreatedAt, &tok.UpdatedAt); err != nil {
		return nil, err
	}
	tok.RefreshToken = refresh.String
	if exp.Valid {
		t := exp.Time
		tok.ExpiresAt = &t
	}
	if pageID.Valid {
		v := pageID.String
		tok.PageID = &v
	}
	if pageName.Valid {
		v := pageName.String
		tok.PageName = &v
	}
	return tok, nil
}

func collectLegacyTokens(rows *sql.Rows) ([]*model.LegacyOAuthToken, error) {
	defer rows.Close()
	var out []*model.LegacyOAuthToken
	for rows.Next() {
		tok, err := scanLegacyToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, rows.Err()
}
