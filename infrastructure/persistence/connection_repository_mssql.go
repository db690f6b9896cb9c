package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shabbat-mode/domain/model"

	"github.com/google/uuid"
)

type ConnectionRepositoryMSSQL struct{ db *sql.DB }

func NewConnectionRepositoryMSSQL(db *sql.DB) *ConnectionRepositoryMSSQL {
	return &ConnectionRepositoryMSSQL{db: db}
}

// EnsureConnectionSchemaMSSQL creates platform_connections and the legacy oauth_tokens table on SQL Server.
func EnsureConnectionSchemaMSSQL(db *sql.DB) error {
	ddl := []string{
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.platform_connections') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[platform_connections] (
        id NVARCHAR(64) NOT NULL PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        connection_name NVARCHAR(255) NOT NULL DEFAULT '',
        account_id NVARCHAR(128) NOT NULL DEFAULT '',
        account_name NVARCHAR(255) NOT NULL DEFAULT '',
        access_token_ciphertext VARBINARY(MAX) NOT NULL,
        access_token_iv VARBINARY(32) NOT NULL,
        access_token_tag VARBINARY(32) NOT NULL,
        refresh_token_ciphertext VARBINARY(MAX) NULL,
        refresh_token_iv VARBINARY(32) NULL,
        refresh_token_tag VARBINARY(32) NULL,
        key_version INT NOT NULL DEFAULT 1,
        algorithm NVARCHAR(32) NOT NULL,
        lookup_hash NVARCHAR(64) NOT NULL DEFAULT '',
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_platform_connections_user_platform ON dbo.[platform_connections](user_id, platform);
END`,
		`IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.oauth_tokens') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[oauth_tokens] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NULL,
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL,
        page_id NVARCHAR(128) NULL,
        page_name NVARCHAR(255) NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_oauth_tokens_user_platform ON dbo.[oauth_tokens](user_id, platform);
END`,
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("ensure connection schema (mssql): %w", err)
		}
	}
	return nil
}

func (r *ConnectionRepositoryMSSQL) Upsert(ctx context.Context, c *model.PlatformConnection) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	// Normalize nullable values for MSSQL driver
	var exp sql.NullTime
	if c.ExpiresAt != nil {
		exp.Valid = true
		exp.Time = *c.ExpiresAt
	}
	rtCipher, rtIV, rtTag := splitSealed(c.RefreshToken)
	q := `MERGE dbo.[platform_connections] AS target
USING (VALUES (@p2, @p3)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    connection_name=@p4, account_id=@p5, account_name=@p6,
    access_token_ciphertext=@p7, access_token_iv=@p8, access_token_tag=@p9,
    refresh_token_ciphertext=@p10, refresh_token_iv=@p11, refresh_token_tag=@p12,
    key_version=@p13, algorithm=@p14, lookup_hash=@p15, expires_at=@p16, scopes=@p17, updated_at=@p19
WHEN NOT MATCHED THEN INSERT (` + connectionColumns + `)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12,@p13,@p14,@p15,@p16,@p17,@p18,@p19);`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, string(c.Platform), c.ConnectionName, c.AccountID, c.AccountName,
		c.AccessToken.Ciphertext, c.AccessToken.IV, c.AccessToken.Tag,
		rtCipher, rtIV, rtTag,
		c.KeyVersion, c.Algorithm, c.LookupHash, exp, c.Scopes, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *ConnectionRepositoryMSSQL) Get(ctx context.Context, userID string, platform model.Platform) (*model.PlatformConnection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM dbo.[platform_connections] WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *ConnectionRepositoryMSSQL) Delete(ctx context.Context, userID string, platform model.Platform) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dbo.[platform_connections] WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ConnectionRepositoryMSSQL) List(ctx context.Context) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM dbo.[platform_connections] ORDER BY user_id, platform`)
	if err != nil {
		return nil, err
	}
	return collectConnections(rows)
}

func (r *ConnectionRepositoryMSSQL) ListByUser(ctx context.Context, userID string) ([]*model.PlatformConnection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM dbo.[platform_connections] WHERE user_id=@p1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	return collectConnections(rows)
}
