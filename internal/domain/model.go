// Package domain defines core entities and value objects for q.
//
// This file contains AI provider definitions. A provider is declared in the
// config file and selected by name at startup; the domain layer knows nothing
// about wire formats.
package domain

import "strings"

// ProviderKind selects the Provider Client variant used for a provider entry.
type ProviderKind string

const (
	ProviderKindOpenRouter ProviderKind = "openrouter"
	ProviderKindOpenAI     ProviderKind = "openai"
	ProviderKindOllama     ProviderKind = "ollama"
	ProviderKindAnthropic  ProviderKind = "anthropic"
)

// KnownProviderKinds lists every supported kind in display order.
var KnownProviderKinds = []ProviderKind{
	ProviderKindOpenRouter,
	ProviderKindOpenAI,
	ProviderKindOllama,
	ProviderKindAnthropic,
}

// ParseProviderKind normalizes a kind string. ok is false for unknown kinds.
func ParseProviderKind(value string) (ProviderKind, bool) {
	kind := ProviderKind(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range KnownProviderKinds {
		if kind == known {
			return kind, true
		}
	}
	return kind, false
}

// DefaultEnvVar is the credential variable consulted when a provider entry
// does not name one.
func (k ProviderKind) DefaultEnvVar() string {
	switch k {
	case ProviderKindOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderKindOpenAI:
		return "OPENAI_API_KEY"
	case ProviderKindAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// RequiresCredential reports whether requests must carry an API key.
func (k ProviderKind) RequiresCredential() bool {
	return k != ProviderKindOllama
}

// ProviderConfig describes one AI backend declared in the config file: its
// identity, endpoint, model and credential handle.
type ProviderConfig struct {
	Name       string          `yaml:"name" json:"name"`
	Kind       ProviderKind    `yaml:"kind" json:"kind"`
	Endpoint   string          `yaml:"endpoint" json:"endpoint"`
	ModelID    string          `yaml:"model_id" json:"model_id"`
	AuthEnvVar string          `yaml:"auth_env_var,omitempty" json:"auth_env_var,omitempty"`
	APIKey     string          `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	MaxTokens  int             `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Prompt     []PromptMessage `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// CredentialEnvVars returns the environment variables consulted for this
// provider's API key, most specific first.
func (p ProviderConfig) CredentialEnvVars() []string {
	var vars []string
	if p.AuthEnvVar != "" {
		vars = append(vars, p.AuthEnvVar)
	}
	if fallback := p.Kind.DefaultEnvVar(); fallback != "" && fallback != p.AuthEnvVar {
		vars = append(vars, fallback)
	}
	return vars
}

// PromptMessage follows the role/content pair required by most chat APIs.
type PromptMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// Credential is a resolved API key and where it came from.
type Credential struct {
	Value  string
	Source string
}

// IsZero reports whether no key was resolved.
func (c Credential) IsZero() bool {
	return c.Value == ""
}
