// Package secrets resolves credentials from the environment, honouring the
// docker-secrets convention where KEY_FILE points at a file holding KEY.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Lookup returns the value for key and whether it was set. A KEY_FILE
// variable takes precedence over KEY.
func Lookup(key string) (string, bool, error) {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false, fmt.Errorf("read secret file for %s: %w", key, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value, true, nil
	}
	return "", false, nil
}

// Get returns the secret or defaultValue when it is unset
func Get(key, defaultValue string) (string, error) {
	value, ok, err := Lookup(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return defaultValue, nil
	}
	return value, nil
}

// Required returns the secret or an error when it is unset
func Required(key string) (string, error) {
	value, ok, err := Lookup(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("secret %s is required but not set", key)
	}
	return value, nil
}
