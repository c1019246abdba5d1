package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cortex-rag/internal/model"
	"cortex-rag/internal/pkg/logger"
	"cortex-rag/internal/pkg/secretbox"
)

// maxAPIKeyLen bounds stored credentials; real Gemini keys are far shorter.
const maxAPIKeyLen = 200

// KeyStore persists encrypted per-user credentials.
type KeyStore interface {
	Upsert(key *model.UserKey) error
	GetByUserID(userID string) (*model.UserKey, error)
	DeleteByUserID(userID string) error
}

// KeyringService decides which Gemini credential a request runs under and
// manages the per-user keys. The admin user always runs on the server key;
// everyone else brings their own.
type KeyringService struct {
	keys       KeyStore
	box        *secretbox.Box
	adminEmail string
	serverKey  string
	log        *logger.Logger
}

func NewKeyringService(keys KeyStore, box *secretbox.Box, adminEmail, serverKey string, log *logger.Logger) *KeyringService {
	if log == nil {
		log = logger.NewNop()
	}
	return &KeyringService{
		keys:       keys,
		box:        box,
		adminEmail: adminEmail,
		serverKey:  serverKey,
		log:        log,
	}
}

// Resolve returns the plaintext credential for the given user. The admin
// match is case-insensitive. A stored key that fails to decrypt surfaces as
// ErrCredentialCorrupt so the client can prompt for re-entry instead of
// retrying forever.
func (s *KeyringService) Resolve(userID, email string) (string, error) {
	if s.adminEmail != "" && strings.EqualFold(email, s.adminEmail) {
		if s.serverKey == "" {
			return "", ErrServerKeyMissing
		}
		return s.serverKey, nil
	}

	record, err := s.keys.GetByUserID(userID)
	if err != nil {
		return "", fmt.Errorf("load user key failed: %w", err)
	}
	if record == nil {
		return "", ErrCredentialRequired
	}

	plain, err := s.box.Decrypt(record.EncryptedKey)
	if err != nil {
		if errors.Is(err, secretbox.ErrUnconfigured) {
			return "", fmt.Errorf("decrypt user key failed: %w", err)
		}
		s.log.Warn("stored credential failed to decrypt", "user_id", userID)
		return "", ErrCredentialCorrupt
	}
	return plain, nil
}

// SaveKey encrypts and stores the user's credential, replacing any previous
// one. The plaintext is never logged and never persisted.
func (s *KeyringService) SaveKey(userID, rawKey string) error {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return fmt.Errorf("%w: api key is empty", ErrInvalidInput)
	}
	if len(rawKey) > maxAPIKeyLen {
		return fmt.Errorf("%w: api key exceeds %d characters", ErrInvalidInput, maxAPIKeyLen)
	}

	encrypted, err := s.box.Encrypt(rawKey)
	if err != nil {
		return fmt.Errorf("encrypt user key failed: %w", err)
	}
	if err := s.keys.Upsert(&model.UserKey{
		UserID:       userID,
		EncryptedKey: encrypted,
		UpdatedAt:    time.Now(),
	}); err != nil {
		return err
	}
	s.log.Info("user credential stored", "user_id", userID)
	return nil
}

// DeleteKey removes the user's stored credential. Deleting a key that does
// not exist is not an error.
func (s *KeyringService) DeleteKey(userID string) error {
	return s.keys.DeleteByUserID(userID)
}
