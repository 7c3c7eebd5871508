package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	service = "cursos-cli"
)

// ErrNotAuthenticated is returned when no token is stored for a server
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'cursos login' first")

// getKeyringKey returns a unique key for storing tokens per server alias
func getKeyringKey(alias string) string {
	return fmt.Sprintf("token-%s", alias)
}

// SaveToken persists the OAuth2 token securely in the OS keychain/credential manager
func SaveToken(alias string, token *oauth2.Token) error {
	if token == nil {
		return errors.New("failed to save token: token is nil")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := keyring.Set(service, getKeyringKey(alias), string(data)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken retrieves the OAuth2 token from the OS keychain/credential manager
func LoadToken(alias string) (*oauth2.Token, error) {
	data, err := keyring.Get(service, getKeyringKey(alias))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}
	return &token, nil
}

// DeleteToken removes the token from the OS keychain/credential manager
func DeleteToken(alias string) error {
	if err := keyring.Delete(service, getKeyringKey(alias)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
