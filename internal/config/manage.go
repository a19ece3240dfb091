package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
// Secrets are reported as set or unset, never by value.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		v := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			if v != "" {
				v = "(set)"
			} else {
				v = "(unset)"
			}
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  v,
		})
	}
	return result
}

// SetKey writes a config key to the platform backend.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), key, value)
}

func setKey(b ConfigBackend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return fmt.Errorf("cannot set secret %q via config; use environment variable %s", key, s.env)
		}
		if key == "contributor.id" {
			if _, err := uuid.Parse(value); err != nil {
				return fmt.Errorf("contributor.id must be a UUID: %w", err)
			}
		}
		if _, err := s.parse(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return b.Set(key, value)
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns the list of valid non-secret config key names.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}

const apiTokenAccount = "api_token"

// GetAPIToken returns the bearer token for the local HTTP API. It comes
// from FIXHIVE_API_TOKEN, then the platform keychain; when neither has one
// a random token is generated and stored in the keychain.
func GetAPIToken() (string, error) {
	return apiToken(keychainReader{}, keychainSet)
}

func apiToken(kc keychain, store func(service, account, value string) error) (string, error) {
	if t := os.Getenv("FIXHIVE_API_TOKEN"); t != "" {
		return t, nil
	}
	if t, err := kc.Get(keychainService, apiTokenAccount); err == nil && t != "" {
		return t, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating api token: %w", err)
	}
	t := hex.EncodeToString(buf)
	if err := store(keychainService, apiTokenAccount, t); err != nil {
		return "", fmt.Errorf("storing api token: %w", err)
	}
	return t, nil
}
