// Package app holds the services behind the HTTP surface: credential
// resolution, notebook lifecycle, document ingestion, and chat.
package app

import "errors"

var (
	// ErrInvalidInput covers malformed or out-of-range caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound covers resources that do not exist or are owned by
	// someone else; callers cannot tell the two apart.
	ErrNotFound = errors.New("not found")
	// ErrCredentialRequired means the user has no stored model credential
	// and is not covered by the server key.
	ErrCredentialRequired = errors.New("model credential required")
	// ErrCredentialCorrupt means a stored credential exists but cannot be
	// decrypted; the user has to submit the key again.
	ErrCredentialCorrupt = errors.New("stored model credential is corrupt")
	// ErrServerKeyMissing means the admin user is configured but no server
	// key is, which is an operator mistake rather than a user one.
	ErrServerKeyMissing = errors.New("server model credential is not configured")
	// ErrUpstream covers transient model-provider failures worth retrying.
	ErrUpstream = errors.New("model provider unavailable")
)
