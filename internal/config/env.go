// Package config holds the client's environment, the auto-save toggle files
// and project detection.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrMissingEnv is returned when the gateway URL or token is not set.
var ErrMissingEnv = errors.New("missing environment configuration")

// Env is the client's connection settings.
type Env struct {
	BaseURL string
	Token   string
}

// LoadEnv reads the gateway URL and token. Each accepts two names; the first
// non-empty one wins.
func LoadEnv() (Env, error) {
	env := Env{
		BaseURL: firstEnv("VECTOR_BASE_URL", "VECTOR_URL"),
		Token:   firstEnv("VECTOR_AUTH_TOKEN", "AUTH_TOKEN"),
	}
	if env.BaseURL == "" || env.Token == "" {
		return Env{}, fmt.Errorf("%w: set VECTOR_BASE_URL and VECTOR_AUTH_TOKEN (or VECTOR_URL and AUTH_TOKEN)", ErrMissingEnv)
	}
	return env, nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Home returns the global vmem directory: $VMEM_HOME, or ~/.vmem.
func Home() (string, error) {
	if h := os.Getenv("VMEM_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".vmem"), nil
}
