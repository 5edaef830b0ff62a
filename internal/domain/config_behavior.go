package domain

import (
	"fmt"
	"time"
)

// GetDefaultProvider retrieves the provider named by preferences.default_provider.
func (c *Config) GetDefaultProvider() (ProviderConfig, error) {
	if c.Preferences.DefaultProvider == "" {
		return ProviderConfig{}, fmt.Errorf("no default provider configured")
	}
	provider, ok := c.FindProvider(c.Preferences.DefaultProvider)
	if !ok {
		return ProviderConfig{}, fmt.Errorf("default provider %s not found in configuration", c.Preferences.DefaultProvider)
	}
	return provider, nil
}

// SelectProvider returns the override when given, the default otherwise.
func (c *Config) SelectProvider(override string) (ProviderConfig, error) {
	if override == "" {
		return c.GetDefaultProvider()
	}
	provider, ok := c.FindProvider(override)
	if !ok {
		return ProviderConfig{}, fmt.Errorf("provider %s not configured", override)
	}
	return provider, nil
}

// FindProvider searches for a provider by name.
func (c *Config) FindProvider(name string) (ProviderConfig, bool) {
	for _, provider := range c.Providers {
		if provider.Name == name {
			return provider, true
		}
	}
	return ProviderConfig{}, false
}

// HasProvider checks if a provider with the given name exists.
func (c *Config) HasProvider(name string) bool {
	_, exists := c.FindProvider(name)
	return exists
}

// SetProviderAPIKey stores key on the named provider entry.
func (c *Config) SetProviderAPIKey(name, key string) error {
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			c.Providers[i].APIKey = key
			return nil
		}
	}
	return fmt.Errorf("provider %s not found", name)
}

// SetDefaultProvider changes the default provider.
func (c *Config) SetDefaultProvider(name string) error {
	if !c.HasProvider(name) {
		return fmt.Errorf("cannot set default provider: provider %s does not exist", name)
	}
	c.Preferences.DefaultProvider = name
	return nil
}

// ProviderTimeout bounds a single provider request.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Preferences.TimeoutSeconds <= 0 {
		return DefaultProviderTimeout
	}
	return time.Duration(c.Preferences.TimeoutSeconds) * time.Second
}

// ProviderMaxAttempts is the bounded number of tries for transient failures.
func (c *Config) ProviderMaxAttempts() int {
	switch {
	case c.Preferences.MaxAttempts <= 0:
		return DefaultMaxAttempts
	case c.Preferences.MaxAttempts > MaxAttemptsCeiling:
		return MaxAttemptsCeiling
	default:
		return c.Preferences.MaxAttempts
	}
}

// ContextShellOverride is the shell name reported to the provider, if pinned.
func (c *Config) ContextShellOverride() string {
	if c.Context.Shell != "" {
		return c.Context.Shell
	}
	return c.Execution.Shell
}
