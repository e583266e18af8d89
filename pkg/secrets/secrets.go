// Package secrets defines the collaborator contract for OS secure storage.
//
// The store never encrypts anything itself: it persists opaque ciphertext
// in the settings table and defers encryption and decryption to an
// external capability (Electron safeStorage, a keychain, or similar)
// behind the Cipher interface.
package secrets

import (
	"errors"
	"fmt"

	"github.com/strandlabs/loom/pkg/types"
)

// ErrUnavailable signals that the secure-storage capability cannot be used
// on this platform or session.
var ErrUnavailable = errors.New("secure storage unavailable")

// Cipher is the external secure-storage capability.
type Cipher interface {
	// IsAvailable reports whether encryption is usable right now.
	IsAvailable() bool

	// Encrypt returns opaque ciphertext for plaintext.
	Encrypt(plaintext string) (string, error)

	// Decrypt reverses Encrypt.
	Decrypt(ciphertext string) (string, error)
}

// Settings is the slice of the store the API key helpers need.
type Settings interface {
	GetSetting(key string, out any) (bool, error)
	SetSetting(key string, value any) error
	DeleteSetting(key string) error
}

// SaveAPIKey encrypts an API key and stores the ciphertext blob in the
// settings table.
func SaveAPIKey(c Cipher, s Settings, plaintext string) error {
	if !c.IsAvailable() {
		return ErrUnavailable
	}
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting API key: %w", err)
	}
	return s.SetSetting(types.SettingAPIKeyCipher, ciphertext)
}

// LoadAPIKey retrieves and decrypts the stored API key. Returns ("", nil)
// when no key is stored.
func LoadAPIKey(c Cipher, s Settings) (string, error) {
	var ciphertext string
	ok, err := s.GetSetting(types.SettingAPIKeyCipher, &ciphertext)
	if err != nil {
		return "", err
	}
	if !ok || ciphertext == "" {
		return "", nil
	}
	if !c.IsAvailable() {
		return "", ErrUnavailable
	}
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypting API key: %w", err)
	}
	return plaintext, nil
}

// ClearAPIKey removes the stored ciphertext blob.
func ClearAPIKey(s Settings) error {
	return s.DeleteSetting(types.SettingAPIKeyCipher)
}
