// Package credentials resolves provider API keys from the config file and
// the environment.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Source labels reported on a resolved credential.
const (
	SourceConfig = "config"
	SourceEnv    = "env"
	SourceNone   = "none"
)

// placeholderKeys are values shipped in sample configs and docs. Treating them
// as missing gives a clear auth error instead of a 401 from the provider.
var placeholderKeys = []string{
	"sk-or-v1-...",
	"sk-...",
	"your-api-key",
	"your_api_key",
	"<api-key>",
	"changeme",
}

// EnvStore implements ports.CredentialStore.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore reads the process environment.
func NewEnvStore() *EnvStore {
	return NewStoreWithLookup(os.LookupEnv)
}

// NewStoreWithLookup substitutes the environment, for tests.
func NewStoreWithLookup(lookup func(string) (string, bool)) *EnvStore {
	return &EnvStore{lookup: lookup}
}

// Resolve returns the first usable key: config api_key, then the provider's
// auth_env_var, then the kind's default variable.
func (s *EnvStore) Resolve(cfg domain.ProviderConfig) (domain.Credential, error) {
	if !cfg.Kind.RequiresCredential() {
		if key := usable(cfg.APIKey); key != "" {
			return domain.Credential{Value: key, Source: SourceConfig}, nil
		}
		return domain.Credential{Source: SourceNone}, nil
	}

	if key := usable(cfg.APIKey); key != "" {
		return domain.Credential{Value: key, Source: SourceConfig}, nil
	}

	vars := cfg.CredentialEnvVars()
	for _, name := range vars {
		if value, ok := s.lookup(name); ok {
			if key := usable(value); key != "" {
				return domain.Credential{Value: key, Source: SourceEnv + ":" + name}, nil
			}
		}
	}

	return domain.Credential{}, domain.NewProviderError(domain.AuthError, cfg.Name, missingKeyError(cfg, vars))
}

func missingKeyError(cfg domain.ProviderConfig, vars []string) error {
	if len(vars) == 0 {
		return fmt.Errorf("no API key configured for provider %q; run `q config` to set one", cfg.Name)
	}
	return fmt.Errorf("no API key for provider %q; set %s or run `q config`", cfg.Name, strings.Join(vars, " or "))
}

// IsPlaceholder reports whether key is a sample value rather than a real key.
func IsPlaceholder(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, placeholder := range placeholderKeys {
		if key == placeholder {
			return true
		}
	}
	return strings.HasSuffix(key, "...") || strings.Contains(key, "your-") || strings.Contains(key, "your_")
}

func usable(key string) string {
	key = strings.TrimSpace(key)
	if key == "" || IsPlaceholder(key) {
		return ""
	}
	return key
}

var _ ports.CredentialStore = (*EnvStore)(nil)
