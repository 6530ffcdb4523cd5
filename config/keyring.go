package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	keyring "github.com/zalando/go-keyring"
)

const (
	// baseServiceName is the keyring service; tests and dev setups can namespace it
	baseServiceName = "azure-status-web"
	// clientSecretKey is a key name, not a credential
	clientSecretKey = "client-secret" // #nosec G101
)

// keyringServiceName resolves the effective keyring service name.
// Precedence:
// 1) AZSTATUS_KEYRING_SERVICE (full override)
// 2) AZSTATUS_KEYRING_NAMESPACE (suffix appended to base)
// 3) baseServiceName
func keyringServiceName() string {
	if v := strings.TrimSpace(os.Getenv("AZSTATUS_KEYRING_SERVICE")); v != "" {
		return v
	}
	if ns := strings.TrimSpace(os.Getenv("AZSTATUS_KEYRING_NAMESPACE")); ns != "" {
		return baseServiceName + "-" + ns
	}
	return baseServiceName
}

// KeyringEntryInfo returns the keyring service and key holding the client secret.
// This is exported for diagnostics only.
func KeyringEntryInfo() (service, key string) {
	return keyringServiceName(), clientSecretKey
}

// LoadClientSecret reads the client secret from the OS keyring. A missing
// entry yields "" with no error.
func LoadClientSecret() (string, error) {
	v, err := keyring.Get(keyringServiceName(), clientSecretKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring read failed: %w", err)
	}
	return strings.TrimSpace(v), nil
}

// SaveClientSecret stores the client secret in the OS keyring
func SaveClientSecret(secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return errors.New("client secret cannot be empty")
	}
	if err := keyring.Set(keyringServiceName(), clientSecretKey, secret); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}
	return nil
}

// DeleteClientSecret removes the stored client secret. Deleting a missing
// entry is not an error.
func DeleteClientSecret() error {
	err := keyring.Delete(keyringServiceName(), clientSecretKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete failed: %w", err)
	}
	return nil
}
