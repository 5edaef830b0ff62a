package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// maxErrorBody caps how much of an error response is quoted back to the user.
const maxErrorBody = 512

type httpProvider struct {
	cfg        domain.ProviderConfig
	httpClient *http.Client
	adapter    providerAdapter
}

type providerAdapter struct {
	buildRequest  func(domain.ProviderConfig, []domain.PromptMessage) ([]byte, error)
	parseResponse func([]byte) (string, error)
	setHeaders    func(*http.Request)
}

func newHTTPProvider(cfg domain.ProviderConfig, client *http.Client, adapter providerAdapter) ports.Provider {
	return &httpProvider{
		cfg:        cfg,
		httpClient: client,
		adapter:    adapter,
	}
}

func (p *httpProvider) Name() string {
	return p.cfg.Name
}

// Submit makes exactly one request. Retrying is the caller's decision.
func (p *httpProvider) Submit(ctx context.Context, req domain.ProviderRequest) (domain.RawResponse, error) {
	messages, err := renderPromptMessages(p.cfg, req)
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.MalformedUpstreamResponse, fmt.Errorf("render prompt: %w", err))
	}

	body, err := p.adapter.buildRequest(p.cfg, messages)
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.MalformedUpstreamResponse, fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.NetworkError, err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("accept", "application/json")
	p.adapter.setHeaders(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.NetworkError, transportCause(ctx, err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.NetworkError, transportCause(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := p.fail(kindForStatus(resp.StatusCode), fmt.Errorf("%s: %s", resp.Status, snippet(payload)))
		perr.StatusCode = resp.StatusCode
		return domain.RawResponse{}, perr
	}

	text, err := p.adapter.parseResponse(payload)
	if err != nil {
		return domain.RawResponse{}, p.fail(domain.MalformedUpstreamResponse, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.RawResponse{}, p.fail(domain.MalformedUpstreamResponse, errors.New("response has no text content"))
	}

	return domain.RawResponse{
		Text:     text,
		Provider: p.cfg.Name,
		Model:    p.cfg.ModelID,
	}, nil
}

func (p *httpProvider) fail(kind domain.ProviderErrorKind, err error) *domain.ProviderError {
	return domain.NewProviderError(kind, p.cfg.Name, err)
}

// kindForStatus maps a non-2xx status. Server errors are treated like network
// failures so they are retried.
func kindForStatus(status int) domain.ProviderErrorKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.AuthError
	case status == http.StatusTooManyRequests:
		return domain.RateLimited
	case status >= 500:
		return domain.NetworkError
	default:
		return domain.MalformedUpstreamResponse
	}
}

// transportCause prefers the context error so that deadlines and interrupts
// are reported as such rather than as a wrapped url.Error.
func transportCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if text == "" {
		return "empty body"
	}
	if len(text) > maxErrorBody {
		return text[:maxErrorBody] + "..."
	}
	return text
}
