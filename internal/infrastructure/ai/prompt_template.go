package ai

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/doeshing/q/internal/domain"
)

// renderPromptMessages expands the provider's prompt templates (or the
// built-in ones) and makes sure the query is sent as a user message.
func renderPromptMessages(cfg domain.ProviderConfig, req domain.ProviderRequest) ([]domain.PromptMessage, error) {
	data := buildTemplateData(req)
	messages := cfg.Prompt
	if len(messages) == 0 {
		messages = defaultTemplateMessages()
	}

	rendered := make([]domain.PromptMessage, 0, len(messages)+1)
	for _, msg := range messages {
		content, err := executeTemplate(msg.Content, data)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, domain.PromptMessage{
			Role:    msg.Role,
			Content: strings.TrimSpace(content),
		})
	}

	if !hasUserMessage(rendered) {
		rendered = append(rendered, domain.PromptMessage{
			Role:    "user",
			Content: data.Query,
		})
	}

	return rendered, nil
}

type templateData struct {
	Query      string
	OS         string
	Shell      string
	WorkingDir string
}

func buildTemplateData(req domain.ProviderRequest) templateData {
	return templateData{
		Query:      strings.TrimSpace(req.Query.String()),
		OS:         req.Context.OS,
		Shell:      req.Context.Shell,
		WorkingDir: req.Context.WorkingDir,
	}
}

// executeTemplate uses [[ ]] delimiters so the {{NAME}} placeholder syntax
// can appear literally in prompts.
func executeTemplate(raw string, data templateData) (string, error) {
	tmpl, err := template.New("prompt").Delims("[[", "]]").Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hasUserMessage(messages []domain.PromptMessage) bool {
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "user") {
			return true
		}
	}
	return false
}

func defaultTemplateMessages() []domain.PromptMessage {
	return []domain.PromptMessage{
		{
			Role: "system",
			Content: `You are a command-line assistant that turns requests into a single shell command.
[[- if or .OS .Shell .WorkingDir]]

System information:
[[- if .OS]]
- OS: [[.OS]]
[[- end]]
[[- if .Shell]]
- Shell: [[.Shell]]
[[- end]]
[[- if .WorkingDir]]
- Current directory: [[.WorkingDir]]
[[- end]]
[[- end]]

Respond ONLY with a JSON object in this exact format:
{"command": "the command to run", "explanation": "one or two sentences on what it does", "warning": "what could go wrong, or null if safe"}

Rules:
- Return exactly one command. Chain steps with && or pipes instead of listing alternatives.
[[- if .Shell]]
- Use syntax valid for [[.Shell]][[if .OS]] on [[.OS]][[end]].
[[- end]]
- Include a warning for anything that deletes, overwrites, or moves data.
- When the user must supply a value (an ID, a path, a host), write it as {{VARIABLE_NAME}}, for example {{FILE_PATH}}. Never use <name> or [name].
- Return ONLY the JSON object, no other text.`,
		},
		{
			Role:    "user",
			Content: "[[.Query]]",
		},
	}
}
