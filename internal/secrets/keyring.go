// Package secrets stores warehouse credentials in the OS keyring so they
// never have to live in plain text inside the config file.
package secrets

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

const service = "martflow"

// StorePassword saves a warehouse password for the given account/user pair.
func StorePassword(account, username, password string) error {
	if err := keyring.Set(service, keyringUser(account, username), password); err != nil {
		return fmt.Errorf("failed to store credential in keyring: %w", err)
	}
	return nil
}

// GetPassword retrieves a stored warehouse password. Returns keyring.ErrNotFound
// wrapped when no credential exists.
func GetPassword(account, username string) (string, error) {
	password, err := keyring.Get(service, keyringUser(account, username))
	if err != nil {
		return "", fmt.Errorf("failed to read credential from keyring: %w", err)
	}
	return password, nil
}

func keyringUser(account, username string) string {
	return account + "/" + username
}
