package helpers

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/q/internal/app"
	configapp "github.com/doeshing/q/internal/application/config"
	"github.com/doeshing/q/internal/domain"
	configinfra "github.com/doeshing/q/internal/infrastructure/config"
)

// GetConfigLoader extracts the config loader from container with error handling
func GetConfigLoader(container *app.Container) (*configinfra.FileLoader, error) {
	if container == nil || container.ConfigLoader == nil {
		return nil, fmt.Errorf("config loader unavailable")
	}
	return container.ConfigLoader, nil
}

// SaveConfigWithValidation validates and saves configuration with automatic backup
func SaveConfigWithValidation(container *app.Container, cfg domain.Config) error {
	loader, err := GetConfigLoader(container)
	if err != nil {
		return err
	}

	if err := configapp.Validate(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if _, err := BackupIfExists(loader); err != nil {
		return err
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return nil
}

// BackupIfExists copies the config file aside before it is overwritten. The
// returned path is empty when there was nothing to back up.
func BackupIfExists(loader *configinfra.FileLoader) (string, error) {
	if _, err := os.Stat(loader.Path()); err != nil {
		return "", nil
	}
	backup, err := loader.Backup()
	if err != nil {
		return "", fmt.Errorf("failed to create configuration backup: %w", err)
	}
	return backup, nil
}

// ParseYAMLValue parses a string value as YAML, falling back to literal string
func ParseYAMLValue(input string) interface{} {
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(input), &parsed); err != nil || parsed == nil {
		return input
	}
	return parsed
}

// SplitKeyPath turns "providers.0.api_key" into its segments.
func SplitKeyPath(keyPath string) []string {
	keyPath = strings.Trim(strings.TrimSpace(keyPath), ".")
	if keyPath == "" {
		return nil
	}
	return strings.Split(keyPath, ".")
}

// SetNestedMapValue sets a value in a nested map using a key path. Numeric
// segments index into existing lists. Returns false when the path cannot be
// followed.
func SetNestedMapValue(root map[string]interface{}, keyPath []string, value interface{}) bool {
	if len(keyPath) == 0 {
		return false
	}

	var current interface{} = root
	for i, key := range keyPath {
		last := i == len(keyPath)-1
		switch node := current.(type) {
		case map[string]interface{}:
			if last {
				node[key] = value
				return true
			}
			next, exists := node[key]
			if !exists || next == nil {
				child := map[string]interface{}{}
				node[key] = child
				next = child
			}
			current = next
		case []interface{}:
			index, err := strconv.Atoi(key)
			if err != nil || index < 0 || index >= len(node) {
				return false
			}
			if last {
				node[index] = value
				return true
			}
			current = node[index]
		default:
			return false
		}
	}
	return false
}

// TraverseNestedMap retrieves a value from nested maps and lists using a key
// path. Returns the value and true if found, nil and false otherwise.
func TraverseNestedMap(data interface{}, keyPath []string) (interface{}, bool) {
	if len(keyPath) == 0 {
		return data, true
	}

	switch node := data.(type) {
	case map[string]interface{}:
		next, exists := node[keyPath[0]]
		if !exists {
			return nil, false
		}
		return TraverseNestedMap(next, keyPath[1:])
	case []interface{}:
		index, err := strconv.Atoi(keyPath[0])
		if err != nil || index < 0 || index >= len(node) {
			return nil, false
		}
		return TraverseNestedMap(node[index], keyPath[1:])
	default:
		return nil, false
	}
}

// MaskSecret keeps enough of a key to recognise it.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// RedactConfig returns a copy of cfg with API keys masked for display.
func RedactConfig(cfg domain.Config) domain.Config {
	providers := make([]domain.ProviderConfig, len(cfg.Providers))
	copy(providers, cfg.Providers)
	for i := range providers {
		providers[i].APIKey = MaskSecret(providers[i].APIKey)
	}
	cfg.Providers = providers
	return cfg
}
