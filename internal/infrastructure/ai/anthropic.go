package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/doeshing/q/internal/domain"
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
}

// Text joins every text block; tool and thinking blocks are skipped.
func (a anthropicResponse) Text() string {
	var parts []string
	for _, block := range a.Content {
		if block.Type == "" || block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func anthropicAdapter(cred domain.Credential) providerAdapter {
	return providerAdapter{
		buildRequest:  buildAnthropicRequest,
		parseResponse: parseAnthropicResponse,
		setHeaders: func(req *http.Request) {
			req.Header.Set("x-api-key", cred.Value)
			req.Header.Set("anthropic-version", domain.DefaultAnthropicVersion)
		},
	}
}

func buildAnthropicRequest(cfg domain.ProviderConfig, messages []domain.PromptMessage) ([]byte, error) {
	system, chat := splitSystemMessages(messages)
	return json.Marshal(anthropicRequest{
		Model:     cfg.ModelID,
		MaxTokens: valueOrDefaultInt(cfg.MaxTokens, domain.DefaultMaxTokens),
		System:    system,
		Messages:  chat,
	})
}

// splitSystemMessages moves system prompts into the top-level field the
// Messages API expects.
func splitSystemMessages(messages []domain.PromptMessage) (string, []anthropicMessage) {
	var systemLines []string
	var chat []anthropicMessage

	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			systemLines = append(systemLines, msg.Content)
			continue
		}
		chat = append(chat, anthropicMessage{
			Role:    strings.ToLower(msg.Role),
			Content: []anthropicContent{{Type: "text", Text: msg.Content}},
		})
	}

	return strings.TrimSpace(strings.Join(systemLines, "\n")), chat
}

func parseAnthropicResponse(body []byte) (string, error) {
	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", errors.New("response has no content blocks")
	}
	return response.Text(), nil
}
