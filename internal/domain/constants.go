package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for files holding credentials (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultProviderTimeout bounds a single provider request.
	DefaultProviderTimeout = 60 * time.Second
	// DefaultRetryInterval is the first backoff step between provider attempts.
	DefaultRetryInterval = 500 * time.Millisecond
	// DefaultInterruptGrace is how long a child gets to exit after an interrupt is forwarded.
	DefaultInterruptGrace = 3 * time.Second
)

// Limit constants
const (
	// DefaultMaxTokens is the default maximum number of tokens requested from a provider
	DefaultMaxTokens = 512
	// DefaultMaxAttempts bounds provider attempts per query, first try included
	DefaultMaxAttempts = 3
	// MaxAttemptsCeiling is the highest accepted value for preferences.max_attempts
	MaxAttemptsCeiling = 10
	// MaxExplanationRunes caps the explanation shown next to a suggestion
	MaxExplanationRunes = 200
)

// Exit codes. A failed child command exits with its own status instead.
const (
	ExitOK = 0
	// ExitInternalError signals that q itself failed, as opposed to the suggested command.
	ExitInternalError = 125
)

// Default provider settings.
const (
	DefaultProviderName     = "openrouter"
	DefaultOpenRouterURL    = "https://openrouter.ai/api/v1/chat/completions"
	DefaultOpenRouterModel  = "anthropic/claude-3.5-sonnet"
	DefaultOpenAIURL        = "https://api.openai.com/v1/chat/completions"
	DefaultOllamaURL        = "http://localhost:11434/v1/chat/completions"
	DefaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	DefaultAnthropicModel   = "claude-3-5-sonnet-20240620"
	DefaultAnthropicVersion = "2023-06-01"
)
