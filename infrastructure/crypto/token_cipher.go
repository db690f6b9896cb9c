// Package crypto seals OAuth tokens at rest with AES-256-GCM.
//
// Each sealed field keeps its ciphertext, nonce and authentication tag in
// separate columns, and the additional data binds it to one user and platform.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"shabbat-mode/domain/model"

	"golang.org/x/crypto/hkdf"
)

const (
	// Algorithm is recorded next to every sealed row
	Algorithm = "AES-256-GCM"

	hkdfSalt        = "shabbat-mode-token-vault"
	encryptionLabel = "oauth-token-encryption"
	lookupLabel     = "oauth-token-lookup"
	minSecretLength = 16
)

var ErrSecretTooShort = errors.New("crypto: encryption secret is too short")

// TokenCipher is safe for concurrent use; key material is read-only after construction.
type TokenCipher struct {
	gcm        cipher.AEAD
	lookupKey  []byte
	keyVersion int
}

func deriveKey(secret []byte, label string) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, []byte(hkdfSalt), []byte(label))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto: HKDF derivation failed: %w", err)
	}
	return key, nil
}

// NewTokenCipher derives the encryption and lookup keys from the process-wide secret.
func NewTokenCipher(secret string, keyVersion int) (*TokenCipher, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	encKey, err := deriveKey([]byte(secret), encryptionLabel)
	if err != nil {
		return nil, err
	}
	lookupKey, err := deriveKey([]byte(secret), lookupLabel)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	if keyVersion <= 0 {
		keyVersion = 1
	}
	return &TokenCipher{gcm: gcm, lookupKey: lookupKey, keyVersion: keyVersion}, nil
}

func (c *TokenCipher) KeyVersion() int {
	return c.keyVersion
}

func additionalData(userID string, platform model.Platform) []byte {
	return []byte(userID + "|" + string(platform))
}

// Seal encrypts plaintext for (userID, platform) with a fresh random nonce.
func (c *TokenCipher) Seal(userID string, platform model.Platform, plaintext string) (model.SealedField, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return model.SealedField{}, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	out := c.gcm.Seal(nil, nonce, []byte(plaintext), additionalData(userID, platform))
	split := len(out) - c.gcm.Overhead()
	return model.SealedField{
		Ciphertext: out[:split],
		IV:         nonce,
		Tag:        out[split:],
	}, nil
}

// Open reverses Seal. Any authentication failure maps to model.ErrCredentialInvalid.
func (c *TokenCipher) Open(userID string, platform model.Platform, field model.SealedField) (string, error) {
	if len(field.IV) != c.gcm.NonceSize() || len(field.Tag) != c.gcm.Overhead() {
		return "", fmt.Errorf("crypto: malformed sealed field: %w", model.ErrCredentialInvalid)
	}
	buf := make([]byte, 0, len(field.Ciphertext)+len(field.Tag))
	buf = append(buf, field.Ciphertext...)
	buf = append(buf, field.Tag...)
	plaintext, err := c.gcm.Open(nil, field.IV, buf, additionalData(userID, platform))
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed: %w", model.ErrCredentialInvalid)
	}
	return string(plaintext), nil
}

// LookupHash is a keyed HMAC-SHA256 of the token, hex encoded.
func (c *TokenCipher) LookupHash(token string) string {
	mac := hmac.New(sha256.New, c.lookupKey)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyLookupHash compares in constant time.
func (c *TokenCipher) VerifyLookupHash(token, expected string) bool {
	return hmac.Equal([]byte(c.LookupHash(token)), []byte(expected))
}
