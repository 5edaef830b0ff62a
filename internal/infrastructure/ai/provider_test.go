package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/q/internal/domain"
)

func testRequest() domain.ProviderRequest {
	return domain.ProviderRequest{
		Query: domain.Query("list files"),
		Context: domain.SystemContext{
			OS:         "linux",
			Shell:      "bash",
			WorkingDir: "/home/dev",
		},
	}
}

func newProvider(t *testing.T, kind domain.ProviderKind, url string) *httpProvider {
	t.Helper()
	factory := NewFactoryWithClient(&http.Client{Timeout: 2 * time.Second})
	provider, err := factory.ForProvider(domain.ProviderConfig{
		Name:     string(kind),
		Kind:     kind,
		Endpoint: url,
		ModelID:  "test-model",
	}, domain.Credential{Value: "secret", Source: "test"})
	require.NoError(t, err)
	return provider.(*httpProvider)
}

func TestChatCompletionSubmit(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "q", r.Header.Get("X-Title"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  ` + "```bash\\nls -la\\n```" + `  "}}]}`))
	}))
	defer server.Close()

	resp, err := newProvider(t, domain.ProviderKindOpenRouter, server.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "```bash\nls -la\n```", resp.Text)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, "test-model", resp.Model)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, domain.DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "OS: linux")
	assert.Contains(t, got.Messages[0].Content, "Shell: bash")
	assert.Contains(t, got.Messages[0].Content, "Current directory: /home/dev")
	assert.Contains(t, got.Messages[0].Content, "{{VARIABLE_NAME}}")
	assert.Equal(t, chatMessage{Role: "user", Content: "list files"}, got.Messages[1])
}

func TestOllamaSendsNoAuthorizationWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ls"}}]}`))
	}))
	defer server.Close()

	provider, err := NewFactoryWithClient(server.Client()).ForProvider(domain.ProviderConfig{
		Name: "local", Kind: domain.ProviderKindOllama, Endpoint: server.URL, ModelID: "llama3.1",
	}, domain.Credential{})
	require.NoError(t, err)

	resp, err := provider.Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ls", resp.Text)
}

func TestAnthropicSubmit(t *testing.T) {
	var got anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, domain.DefaultAnthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"` + "`du -sh *`" + `"}]}`))
	}))
	defer server.Close()

	resp, err := newProvider(t, domain.ProviderKindAnthropic, server.URL).Submit(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "`du -sh *`", resp.Text)

	assert.Contains(t, got.System, "OS: linux")
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "list files", got.Messages[0].Content[0].Text)
}

func TestSubmitClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.ProviderErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, domain.AuthError},
		{"forbidden", http.StatusForbidden, `{}`, domain.AuthError},
		{"rate limited", http.StatusTooManyRequests, `{}`, domain.RateLimited},
		{"server error", http.StatusBadGateway, `upstream down`, domain.NetworkError},
		{"bad request", http.StatusBadRequest, `{"error":"bad model"}`, domain.MalformedUpstreamResponse},
		{"not json", http.StatusOK, `<html>`, domain.MalformedUpstreamResponse},
		{"no choices", http.StatusOK, `{"choices":[]}`, domain.MalformedUpstreamResponse},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, domain.MalformedUpstreamResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newProvider(t, domain.ProviderKindOpenAI, server.URL).Submit(context.Background(), testRequest())
			require.Error(t, err)

			var perr *domain.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Kind)
			assert.Equal(t, "openai", perr.Provider)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.status, perr.StatusCode)
			}
		})
	}
}

func TestSubmitTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newProvider(t, domain.ProviderKindOpenAI, server.URL).Submit(ctx, testRequest())
	require.Error(t, err)

	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.NetworkError, perr.Kind)
	assert.Equal(t, "timeout", perr.Reason())
	assert.True(t, perr.Retryable())
}

func TestSubmitUnreachableIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newProvider(t, domain.ProviderKindOpenAI, url).Submit(context.Background(), testRequest())
	assert.True(t, domain.IsProviderErrorKind(err, domain.NetworkError))
}

func TestForProviderRequiresCredential(t *testing.T) {
	_, err := NewFactory(0).ForProvider(domain.ProviderConfig{Name: "openai", Kind: domain.ProviderKindOpenAI}, domain.Credential{})
	assert.True(t, domain.IsProviderErrorKind(err, domain.AuthError))

	_, err = NewFactory(0).ForProvider(domain.ProviderConfig{Name: "x", Kind: "mystery"}, domain.Credential{Value: "k"})
	assert.Error(t, err)
}

func TestForProviderFillsDefaults(t *testing.T) {
	provider, err := NewFactory(time.Second).ForProvider(domain.ProviderConfig{Name: "or", Kind: domain.ProviderKindOpenRouter}, domain.Credential{Value: "k"})
	require.NoError(t, err)
	p := provider.(*httpProvider)
	assert.Equal(t, domain.DefaultOpenRouterURL, p.cfg.Endpoint)
	assert.Equal(t, domain.DefaultOpenRouterModel, p.cfg.ModelID)
	assert.Equal(t, "or", p.Name())
}

func TestRenderPromptMessagesCustomTemplates(t *testing.T) {
	cfg := domain.ProviderConfig{Prompt: []domain.PromptMessage{
		{Role: "system", Content: "Target [[.Shell]] in [[.WorkingDir]]. Use {{NAME}} for values."},
	}}

	messages, err := renderPromptMessages(cfg, testRequest())
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Target bash in /home/dev. Use {{NAME}} for values.", messages[0].Content)
	assert.Equal(t, domain.PromptMessage{Role: "user", Content: "list files"}, messages[1])

	_, err = renderPromptMessages(domain.ProviderConfig{Prompt: []domain.PromptMessage{{Role: "system", Content: "[[.Nope]]"}}}, testRequest())
	assert.Error(t, err)
}

func TestDefaultPromptOmitsMissingContext(t *testing.T) {
	messages, err := renderPromptMessages(domain.ProviderConfig{}, domain.ProviderRequest{Query: "show disk usage"})
	require.NoError(t, err)
	assert.NotContains(t, messages[0].Content, "System information")
	assert.NotContains(t, messages[0].Content, "Use syntax valid")
	assert.Equal(t, "show disk usage", messages[1].Content)
}
