package persistence

import (
	"context"
	"database/sql"

	"shabbat-mode/domain/model"
)

type LegacyTokenRepositoryMSSQL struct{ db *sql.DB }

func NewLegacyTokenRepositoryMSSQL(db *sql.DB) *LegacyTokenRepositoryMSSQL {
	return &LegacyTokenRepositoryMSSQL{db: db}
}

func (r *LegacyTokenRepositoryMSSQL) GetToken(ctx context.Context, userID, platform string) (*model.LegacyOAuthToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+legacyTokenColumns+` FROM dbo.[oauth_tokens] WHERE user_id=@p1 AND platform=@p2`, userID, platform)
	tok, err := scanLegacyToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tok, err
}

func (r *LegacyTokenRepositoryMSSQL) DeleteToken(ctx context.Context, userID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM dbo.[oauth_tokens] WHERE user_id=@p1 AND platform=@p2`, userID, platform)
	return err
}

func (r *LegacyTokenRepositoryMSSQL) ListTokens(ctx context.Context) ([]*model.LegacyOAuthToken, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+legacyTokenColumns+` FROM dbo.[oauth_tokens] ORDER BY user_id, platform`)
	if err != nil {
		return nil, err
	}
	return collectLegacyTokens(rows)
}
