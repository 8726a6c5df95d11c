// Package secret stores database passwords outside the SQLite file.
package secret

import (
	"os/exec"
	"runtime"
)

// SecretStore provides a pluggable interface for storing sensitive data
// such as database passwords.
type SecretStore interface {
	// Set stores a secret value under the given key.
	Set(key string, value []byte) error

	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)

	// Delete removes the secret for the given key.
	Delete(key string) error
}

// Default returns the macOS Keychain when available and the environment
// store otherwise.
func Default() SecretStore {
	if runtime.GOOS == "darwin" {
		if _, err := exec.LookPath("security"); err == nil {
			return NewKeychainStore()
		}
	}
	return NewEnvStore()
}

// ConnectionKey is the secret key of a connection password.
func ConnectionKey(connID string) string {
	return "db-conn:" + connID
}

// PasswordLookup returns a function resolving connection passwords from s.
func PasswordLookup(s SecretStore) func(connID string) (string, error) {
	return func(connID string) (string, error) {
		v, err := s.Get(ConnectionKey(connID))
		if err != nil {
			return "", err
		}
		return string(v), nil
	}
}
