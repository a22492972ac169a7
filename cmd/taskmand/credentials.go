package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// credentials stores the bearer token issued at login.
type credentials struct {
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
	SavedAt     int64  `json:"saved_at"`
}

func credentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "taskmand", "credentials.json"), nil
}

// saveCredentials writes creds to disk, readable only by the owner.
func saveCredentials(creds credentials) error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// loadToken returns the saved bearer token, or an empty string when the
// user has not logged in.
func loadToken() (string, error) {
	path, err := credentialsPath()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var creds credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", err
	}
	return creds.AccessToken, nil
}

// clearCredentials removes the saved token.
func clearCredentials() error {
	path, err := credentialsPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
