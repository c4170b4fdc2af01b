// Package credential fetches GitHub tokens from the system keyring for
// credentials whose token is omitted from the config file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "trac2github"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/trac2github/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("trac2github-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token retrieves the GitHub token stored for the given login.
func Token(login string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(login)
	if err != nil {
		return "", fmt.Errorf("getting token for %q: %w", login, err)
	}

	return string(item.Data), nil
}

// SetToken stores a GitHub token for the given login.
func SetToken(login, token string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  login,
		Data: []byte(token),
	})
	if err != nil {
		return fmt.Errorf("storing token for %q: %w", login, err)
	}

	return nil
}
