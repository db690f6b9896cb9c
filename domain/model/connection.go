package model

import "time"

// OAuthToken is what the OAuth layer hands over after a successful authorization
type OAuthToken struct {
	AccessToken    string     `json:"access_token" binding:"required"`
	RefreshToken   string     `json:"refresh_token"`
	ExpiresIn      int64      `json:"expires_in"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         string     `json:"scopes"`
	ConnectionName string     `json:"connection_name"`
	AccountID      string     `json:"account_id"` // page id / channel id
	AccountName    string     `json:"account_name"`
}

// Credential is a decrypted token ready to be handed to a platform adapter
type Credential struct {
	UserID       string
	Platform     Platform
	AccountID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scopes       string
}

// Expiring reports whether the access token expires within the given window
func (c Credential) Expiring(now time.Time, within time.Duration) bool {
	if c.ExpiresAt == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return c.ExpiresAt.Sub(now) < within
}

// SealedField holds one encrypted token field with its algorithm metadata
type SealedField struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// PlatformConnection is the stored, encrypted form of an OAuth link
type PlatformConnection struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Platform       Platform     `json:"platform"`
	ConnectionName string       `json:"connection_name"`
	AccountID      string       `json:"account_id,omitempty"`
	AccountName    string       `json:"account_name,omitempty"`
	AccessToken    SealedField  `json:"-"`
	RefreshToken   *SealedField `json:"-"`
	KeyVersion     int          `json:"-"`
	Algorithm      string       `json:"-"`
	LookupHash     string       `json:"-"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	Scopes         string       `json:"scopes"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// LegacyOAuthToken is a plaintext token row written before at-rest encryption
type LegacyOAuthToken struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     string     `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	PageID       *string    `json:"page_id,omitempty"`
	PageName     *string    `json:"page_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
