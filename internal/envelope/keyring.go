package envelope

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ErrKeyringUnavailable indicates the system keyring could not be read.
var ErrKeyringUnavailable = errors.New("envelope: system keyring unavailable")

// KeyringPassphrase loads the storage passphrase from the OS keyring.
// A missing entry yields an empty passphrase, which means plaintext storage.
func KeyringPassphrase(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

// StoreKeyringPassphrase writes the storage passphrase to the OS keyring.
func StoreKeyringPassphrase(service, user, passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	if err := keyring.Set(service, user, passphrase); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}
