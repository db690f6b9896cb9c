package persistence

import (
	"context"
	"database/sql"
	"time"

	"shabbat-mode/domain/model"

	"github.com/google/uuid"
)

const connectionColumns = `id, user_id, platform, connection_name, account_id, account_name,
	access_token_ciphertext, access_token_iv, access_token_tag,
	refresh_token_ciphertext, refresh_token_iv, refresh_token_tag,
	key_version, algorithm, lookup_hash, expires_at, scopes, created_at, updated_at`

type ConnectionRepository struct{ db *sql.DB }

func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

func (r *ConnectionRepository) Upsert(ctx context.Context, c *model.PlatformConnection) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	rtCipher, rtIV, rtTag := splitSealed(c.RefreshToken)
	q := `INSERT INTO platform_connections (` + connectionColumns + `)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			connection_name=EXCLUDED.connection_name,
			account_id=EXCLUDED.account_id,
			account_name=EXCLUDED.account_name,
			access_token_ciphertext=EXCLUDED.access_token_ciphertext,
			access_token_iv=EXCLUDED.access_token_iv,
			access_token_tag=EXCLUDED.access_token_tag,
			refresh_token_ciphertext=EXCLUDED.refresh_token_ciphertext,
			refresh_token_iv=EXCLUDED.refresh_token_iv,
			refresh_token_tag=EXCLUDED.refresh_token_tag,
			key_version=EXCLUDED.key_version,
			algorithm=EXCLUDED.algorithm,
			lookup_hash=EXCLUDED.lookup_hash,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, string(c.Platform), c.ConnectionName, c.AccountID, c.AccountName,
		c.AccessToken.Ciphertext, c.AccessToken.IV, c.AccessToken.Tag,
		rtCipher, rtIV, rtTag,
		c.KeyVersion, c.Algorithm, c.LookupHash, c.ExpiresAt, c.Scopes, c.CreatedAt, c.UpdatedAt)
	return err
}

// Get returns nil, nil when the user has no connection for the platform.
func (r *ConnectionRepository) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM platform_connections WHERE user_id=$1 AND platform=$2`, userID, string(platform))
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *ConnectionRepository) Delete(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM platform_connections WHERE user_id=$1 AND platform=$2`, userID, string(platform))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ConnectionRepository) List(ctx context.Context) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM platform_connections ORDER BY user_id, platform`)
	if err != nil {
		return nil, err
	}
	return collectConnections(rows)
}

func (r *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM platform_connections WHERE user_id=$1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	return collectConnections(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*model.PlatformConnection, error) {
	c := &model.PlatformConnection{}
	var platform string
	var rtCipher, rtIV, rtTag []byte
	var exp sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &platform, &c.ConnectionName, &c.AccountID, &c.AccountName,
		&c.AccessToken.Ciphertext, &c.AccessToken.IV, &c.AccessToken.Tag,
		&rtCipher, &rtIV, &rtTag,
		&c.KeyVersion, &c.Algorithm, &c.LookupHash, &exp, &c.Scopes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Platform = model.Platform(platform)
	if len(rtCipher) > 0 || len(rtTag) > 0 {
		c.RefreshToken = &model.SealedField{Ciphertext: rtCipher, IV: rtIV, Tag: rtTag}
	}
	if exp.Valid {
		t := exp.Time
		c.ExpiresAt = &t
	}
	return c, nil
}

func collectConnections(rows *sql.Rows) ([]*model.PlatformConnection, error) {
	defer rows.Close()
	var out []*model.PlatformConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func splitSealed(f *model.SealedField) (ciphertext, iv, tag []byte) {
	if f == nil {
		return nil, nil, nil
	}
	return f.Ciphertext, f.IV, f.Tag
}
