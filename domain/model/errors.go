package model

import "errors"

var (
	// ErrCredentialMissing means no token is stored; the user must connect again
	ErrCredentialMissing = errors.New("credential missing")
	// ErrCredentialInvalid means the token could not be decrypted or was rejected by the platform
	ErrCredentialInvalid = errors.New("credential invalid")
	// ErrTransientPlatform covers network failures and rate limits worth retrying
	ErrTransientPlatform = errors.New("transient platform error")
	// ErrSchedulingConflict means an operation of that kind is already pending for the pair
	ErrSchedulingConflict = errors.New("operation already scheduled")
	// ErrItemNotFound is returned by adapters when a content item no longer exists
	ErrItemNotFound = errors.New("content item not found")
)

// StrPtr is a small helper for optional string fields
func StrPtr(s string) *string { return &s }
