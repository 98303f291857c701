package credential

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/99designs/keyring"
)

const serviceName = "meltmail"

// Keyring is a Store backed by the system keyring, falling back to an
// encrypted file when no keyring service is available.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring opens the system keyring. dir holds the file backend.
func OpenKeyring(dir string) (*Keyring, error) {
	return openKeyring(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("meltmail-file-key"),
		KeychainTrustApplication: true,
	})
}

func openKeyring(cfg keyring.Config) (*Keyring, error) {
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// Get retrieves a credential value by key from the keyring.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the keyring.
func (k *Keyring) Set(key, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "meltmail mailbox",
		Description: "temporary mailbox credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (k *Keyring) Delete(key string) error {
	err := k.ring.Remove(key)
	// The file backend reports a missing key as a missing file.
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
