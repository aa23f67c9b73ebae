package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "orgpulse-cli"
)

// ErrNotAuthenticated is returned when no token is stored for a server
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'orgpulse login' first")

// getKeyringKey returns a unique key for storing session tokens per server
func getKeyringKey(server string) string {
	return fmt.Sprintf("token-%s", strings.TrimRight(server, "/"))
}

// SaveToken persists the session token securely in the OS keychain/credential manager
func SaveToken(server, token string) error {
	key := getKeyringKey(server)
	if err := keyring.Set(service, key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken retrieves the session token from the OS keychain/credential manager
func LoadToken(server string) (string, error) {
	key := getKeyringKey(server)
	token, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

// DeleteToken removes the session token from the OS keychain/credential manager
func DeleteToken(server string) error {
	key := getKeyringKey(server)
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
