package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/doeshing/q/internal/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c chatCompletionResponse) FirstMessage() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(c.Choices[0].Message.Content)
}

// chatCompletionAdapter speaks the OpenAI chat completions format shared by
// OpenAI, OpenRouter and Ollama. extra adds provider-specific headers.
func chatCompletionAdapter(cred domain.Credential, extra func(*http.Request)) providerAdapter {
	return providerAdapter{
		buildRequest:  buildChatCompletionRequest,
		parseResponse: parseChatCompletionResponse,
		setHeaders: func(req *http.Request) {
			if !cred.IsZero() {
				req.Header.Set("authorization", "Bearer "+cred.Value)
			}
			if extra != nil {
				extra(req)
			}
		},
	}
}

func buildChatCompletionRequest(cfg domain.ProviderConfig, messages []domain.PromptMessage) ([]byte, error) {
	request := chatCompletionRequest{
		Model:     cfg.ModelID,
		Messages:  make([]chatMessage, 0, len(messages)),
		MaxTokens: valueOrDefaultInt(cfg.MaxTokens, domain.DefaultMaxTokens),
	}
	for _, msg := range messages {
		request.Messages = append(request.Messages, chatMessage{
			Role:    strings.ToLower(msg.Role),
			Content: msg.Content,
		})
	}
	return json.Marshal(request)
}

func parseChatCompletionResponse(body []byte) (string, error) {
	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return response.FirstMessage(), nil
}

// openRouterHeaders sets the optional attribution headers OpenRouter uses for
// its app rankings.
func openRouterHeaders(req *http.Request) {
	if referer := os.Getenv("OPENROUTER_REFERER"); referer != "" {
		req.Header.Set("HTTP-Referer", referer)
	}
	req.Header.Set("X-Title", "q")
}
