package domain_test

import (
	"testing"
	"time"

	"github.com/doeshing/q/internal/domain"
)

// TestConfig_GetDefaultProvider tests retrieving the default provider
func TestConfig_GetDefaultProvider(t *testing.T) {
	tests := []struct {
		name        string
		config      domain.Config
		wantError   bool
		wantModelID string
	}{
		{
			name: "returns default provider successfully",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultProvider: "openrouter"},
				Providers: []domain.ProviderConfig{
					{Name: "openrouter", ModelID: "anthropic/claude-3.5-sonnet"},
					{Name: "local", ModelID: "llama3"},
				},
			},
			wantModelID: "anthropic/claude-3.5-sonnet",
		},
		{
			name: "returns error when default provider not found",
			config: domain.Config{
				Preferences: domain.Preferences{DefaultProvider: "missing"},
				Providers:   []domain.ProviderConfig{{Name: "openrouter"}},
			},
			wantError: true,
		},
		{
			name: "returns error when no default provider configured",
			config: domain.Config{
				Providers: []domain.ProviderConfig{{Name: "openrouter"}},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := tt.config.GetDefaultProvider()

			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if provider.ModelID != tt.wantModelID {
				t.Errorf("got model ID %s, want %s", provider.ModelID, tt.wantModelID)
			}
		})
	}
}

// TestConfig_SelectProvider tests the per-run provider override
func TestConfig_SelectProvider(t *testing.T) {
	cfg := domain.Config{
		Preferences: domain.Preferences{DefaultProvider: "openrouter"},
		Providers: []domain.ProviderConfig{
			{Name: "openrouter"},
			{Name: "local"},
		},
	}

	provider, err := cfg.SelectProvider("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name != "local" {
		t.Errorf("got %s, want local", provider.Name)
	}

	provider, err = cfg.SelectProvider("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.Name != "openrouter" {
		t.Errorf("got %s, want openrouter", provider.Name)
	}

	if _, err := cfg.SelectProvider("nope"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

// TestConfig_SetProviderAPIKey tests storing a key on a provider entry
func TestConfig_SetProviderAPIKey(t *testing.T) {
	cfg := domain.Config{
		Providers: []domain.ProviderConfig{{Name: "openrouter"}},
	}

	if err := cfg.SetProviderAPIKey("openrouter", "sk-test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers[0].APIKey != "sk-test" {
		t.Errorf("key not stored, got %q", cfg.Providers[0].APIKey)
	}
	if err := cfg.SetProviderAPIKey("other", "x"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

// TestConfig_SetDefaultProvider tests changing the default provider
func TestConfig_SetDefaultProvider(t *testing.T) {
	cfg := domain.Config{
		Providers: []domain.ProviderConfig{{Name: "openrouter"}, {Name: "local"}},
	}

	if err := cfg.SetDefaultProvider("local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Preferences.DefaultProvider != "local" {
		t.Errorf("got %s, want local", cfg.Preferences.DefaultProvider)
	}
	if err := cfg.SetDefaultProvider("missing"); err == nil {
		t.Error("expected error for missing provider")
	}
}

// TestConfig_ProviderTimeout tests timeout defaults
func TestConfig_ProviderTimeout(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{name: "returns configured timeout", seconds: 10, want: 10 * time.Second},
		{name: "returns default when zero", seconds: 0, want: domain.DefaultProviderTimeout},
		{name: "returns default when negative", seconds: -5, want: domain.DefaultProviderTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.Config{Preferences: domain.Preferences{TimeoutSeconds: tt.seconds}}
			if got := cfg.ProviderTimeout(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// TestConfig_ProviderMaxAttempts tests the retry bound
func TestConfig_ProviderMaxAttempts(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		want     int
	}{
		{name: "returns configured attempts", attempts: 2, want: 2},
		{name: "returns default when unset", attempts: 0, want: domain.DefaultMaxAttempts},
		{name: "clamps to ceiling", attempts: 50, want: domain.MaxAttemptsCeiling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.Config{Preferences: domain.Preferences{MaxAttempts: tt.attempts}}
			if got := cfg.ProviderMaxAttempts(); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestProviderConfig_CredentialEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.ProviderConfig
		want     []string
	}{
		{
			name:     "custom variable first",
			provider: domain.ProviderConfig{Kind: domain.ProviderKindOpenRouter, AuthEnvVar: "MY_KEY"},
			want:     []string{"MY_KEY", "OPENROUTER_API_KEY"},
		},
		{
			name:     "no duplicate when custom equals default",
			provider: domain.ProviderConfig{Kind: domain.ProviderKindAnthropic, AuthEnvVar: "ANTHROPIC_API_KEY"},
			want:     []string{"ANTHROPIC_API_KEY"},
		},
		{
			name:     "ollama has none",
			provider: domain.ProviderConfig{Kind: domain.ProviderKindOllama},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.provider.CredentialEnvVars()
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
