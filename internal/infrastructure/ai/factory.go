// Package ai implements the Provider Client variants.
//
// Every variant shares one HTTP transport (http_provider.go) and differs only
// in its providerAdapter: how the request body is built, which headers carry
// the credential, and where the text sits in the response.
package ai

import (
	"fmt"
	"net/http"
	"time"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Factory builds providers that share one HTTP client.
type Factory struct {
	httpClient *http.Client
}

// NewFactory returns a factory whose requests give up after timeout. A zero
// timeout falls back to domain.DefaultProviderTimeout.
func NewFactory(timeout time.Duration) *Factory {
	if timeout <= 0 {
		timeout = domain.DefaultProviderTimeout
	}
	return NewFactoryWithClient(&http.Client{Timeout: timeout})
}

// NewFactoryWithClient is used by tests to point providers at httptest servers.
func NewFactoryWithClient(client *http.Client) *Factory {
	return &Factory{httpClient: client}
}

// ForProvider implements ports.ProviderFactory.
func (f *Factory) ForProvider(cfg domain.ProviderConfig, cred domain.Credential) (ports.Provider, error) {
	if cfg.Kind.RequiresCredential() && cred.IsZero() {
		return nil, domain.NewProviderError(domain.AuthError, cfg.Name, fmt.Errorf("no API key for provider %q", cfg.Name))
	}

	switch cfg.Kind {
	case domain.ProviderKindOpenRouter:
		cfg.Endpoint = valueOrDefault(cfg.Endpoint, domain.DefaultOpenRouterURL)
		cfg.ModelID = valueOrDefault(cfg.ModelID, domain.DefaultOpenRouterModel)
		return newHTTPProvider(cfg, f.httpClient, chatCompletionAdapter(cred, openRouterHeaders)), nil
	case domain.ProviderKindOpenAI:
		cfg.Endpoint = valueOrDefault(cfg.Endpoint, domain.DefaultOpenAIURL)
		return newHTTPProvider(cfg, f.httpClient, chatCompletionAdapter(cred, nil)), nil
	case domain.ProviderKindOllama:
		cfg.Endpoint = valueOrDefault(cfg.Endpoint, domain.DefaultOllamaURL)
		return newHTTPProvider(cfg, f.httpClient, chatCompletionAdapter(cred, nil)), nil
	case domain.ProviderKindAnthropic:
		cfg.Endpoint = valueOrDefault(cfg.Endpoint, domain.DefaultAnthropicURL)
		cfg.ModelID = valueOrDefault(cfg.ModelID, domain.DefaultAnthropicModel)
		return newHTTPProvider(cfg, f.httpClient, anthropicAdapter(cred)), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %q for provider %q", cfg.Kind, cfg.Name)
	}
}

func valueOrDefault(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}

func valueOrDefaultInt(value int, def int) int {
	if value == 0 {
		return def
	}
	return value
}

var _ ports.ProviderFactory = (*Factory)(nil)
