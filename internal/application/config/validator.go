package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/doeshing/q/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}
	if err := validateProviders(cfg.Providers); err != nil {
		return err
	}
	if cfg.Preferences.DefaultProvider == "" {
		return errors.New("preferences.default_provider must be set")
	}
	if !cfg.HasProvider(cfg.Preferences.DefaultProvider) {
		return fmt.Errorf("default provider %s not found in providers list", cfg.Preferences.DefaultProvider)
	}
	if err := validatePreferences(cfg.Preferences); err != nil {
		return err
	}
	return validateSecurity(cfg.Security)
}

func validateProviders(providers []domain.ProviderConfig) error {
	seen := make(map[string]bool, len(providers))
	for i, provider := range providers {
		if provider.Name == "" {
			return fmt.Errorf("providers[%d]: name must be set", i)
		}
		if seen[provider.Name] {
			return fmt.Errorf("provider %s is declared more than once", provider.Name)
		}
		seen[provider.Name] = true

		if _, ok := domain.ParseProviderKind(string(provider.Kind)); !ok {
			return fmt.Errorf("provider %s: unknown kind %q (want one of %v)", provider.Name, provider.Kind, domain.KnownProviderKinds)
		}
		if provider.Endpoint != "" {
			u, err := url.Parse(provider.Endpoint)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("provider %s: endpoint %q is not an absolute URL", provider.Name, provider.Endpoint)
			}
		}
		if provider.MaxTokens < 0 {
			return fmt.Errorf("provider %s: max_tokens must be >= 0", provider.Name)
		}
	}
	return nil
}

func validatePreferences(prefs domain.Preferences) error {
	if prefs.TimeoutSeconds < 0 {
		return fmt.Errorf("preferences.timeout_seconds must be >= 0")
	}
	if prefs.MaxAttempts != 0 && (prefs.MaxAttempts < 1 || prefs.MaxAttempts > domain.MaxAttemptsCeiling) {
		return fmt.Errorf("preferences.max_attempts must be between 1 and %d", domain.MaxAttemptsCeiling)
	}
	return nil
}

func validateSecurity(sec domain.SecuritySettings) error {
	if sec.RulesFile == "" {
		return nil
	}
	f, err := os.Open(sec.RulesFile)
	if err != nil {
		return fmt.Errorf("security.rules_file: %w", err)
	}
	return f.Close()
}
