// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// The query pipeline in application/query depends only on these contracts;
// infrastructure packages provide the adapters (HTTP providers, the shell
// executor, the terminal prompter, the YAML config loader).
package ports

import (
	"context"

	"github.com/doeshing/q/internal/domain"
)

// ConfigProvider loads configuration from persistent storage.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// ContextCollector gathers the shell/OS context sent alongside a query.
type ContextCollector interface {
	Collect(context.Context, domain.Config) (domain.SystemContext, error)
}

// CredentialStore resolves the API key for a provider. Missing or unusable
// credentials are reported as a *domain.ProviderError of kind AuthError.
type CredentialStore interface {
	Resolve(domain.ProviderConfig) (domain.Credential, error)
}

// ProviderFactory builds the Provider Client variant for a provider entry.
type ProviderFactory interface {
	ForProvider(domain.ProviderConfig, domain.Credential) (Provider, error)
}

// Provider accepts a prompt and returns text. One network call per Submit,
// no retries; failures are *domain.ProviderError.
type Provider interface {
	Name() string
	Submit(context.Context, domain.ProviderRequest) (domain.RawResponse, error)
}

// CommandExtractor turns raw provider text into a single command candidate.
type CommandExtractor interface {
	Extract(domain.RawResponse) (domain.CommandCandidate, error)
}

// RiskClassifier assigns a risk level. It is pure and never fails.
type RiskClassifier interface {
	Classify(domain.CommandCandidate) domain.RiskAssessment
}

// ConfirmationGate is the only way from classification to execution.
type ConfirmationGate interface {
	Decide(ctx context.Context, candidate domain.CommandCandidate, assessment domain.RiskAssessment, skip bool) (domain.GateDecision, error)
	Fill(ctx context.Context, names []string) (map[string]string, error)
	// Announce shows the command about to run once placeholders are filled in.
	Announce(candidate domain.CommandCandidate)
}

// CommandExecutor runs an approved command in the user's shell.
type CommandExecutor interface {
	Run(context.Context, domain.CommandCandidate) (domain.ExecutionOutcome, error)
}

// Clipboard provides clipboard integration for copying commands.
type Clipboard interface {
	Copy(text string) error
	Enabled() bool
}

// Progress shows activity while the pipeline blocks on the provider.
type Progress interface {
	Start(message string)
	Stop()
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}
