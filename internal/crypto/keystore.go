package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	keystoreService = "gvsdash"
	keystoreUser    = "storage-encryption-key"
)

// LoadKey resolves the storage encryption key.
// Priority:
// 1. ENCRYPTION_KEY value passed in (development/testing)
// 2. System keychain
// 3. A new random key, stored in the keychain for next time
func LoadKey(envKey string, log logrus.FieldLogger) ([]byte, error) {
	if envKey != "" {
		return KeyFromString(envKey), nil
	}

	stored, err := keyring.Get(keystoreService, keystoreUser)
	if err == nil && stored != "" {
		key, decodeErr := base64.StdEncoding.DecodeString(stored)
		if decodeErr == nil && len(key) == 32 {
			return key, nil
		}
		log.WithError(decodeErr).Warn("Stored encryption key is unreadable, generating a new one")
	} else if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		log.WithError(err).Warn("Keystore lookup failed")
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	if err := keyring.Set(keystoreService, keystoreUser, base64.StdEncoding.EncodeToString(key)); err != nil {
		// Headless Linux often has no secret service; values then stay
		// readable only for this process lifetime.
		log.WithError(err).Warn("Failed to store encryption key in keychain; key will be regenerated on next launch")

		if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
			return nil, fmt.Errorf("keychain storage required on %s: %w", runtime.GOOS, err)
		}
	}

	return key, nil
}

// DeleteKey removes the encryption key from the keychain.
func DeleteKey() error {
	return keyring.Delete(keystoreService, keystoreUser)
}
