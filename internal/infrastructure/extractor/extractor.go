// Package extractor turns free-form provider output into a single command
// candidate.
//
// Policy, first match wins:
//  1. the first non-empty fenced code block;
//  2. a JSON object with a "command" field;
//  3. exactly one command-like inline code span;
//  4. exactly one command-like line.
//
// Several command-like spans or lines with nothing to choose between them is
// an ambiguity error; nothing command-like is ErrNoCommandFound.
package extractor

import (
	"encoding/json"
	"os/exec"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"mvdan.cc/sh/v3/syntax"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Extractor implements ports.CommandExtractor.
type Extractor struct {
	isCommand func(name string) bool
}

// New builds an extractor that recognizes shell builtins and anything on PATH.
func New() *Extractor {
	return NewWithLookup(func(name string) bool {
		_, err := exec.LookPath(name)
		return err == nil
	})
}

// NewWithLookup builds an extractor with a custom executable lookup. Shell
// builtins are always recognized.
func NewWithLookup(lookup func(name string) bool) *Extractor {
	return &Extractor{isCommand: func(name string) bool {
		return shellBuiltins[name] || powershellCmdlet.MatchString(name) || lookup(name)
	}}
}

// Extract implements ports.CommandExtractor.
func (e *Extractor) Extract(raw domain.RawResponse) (domain.CommandCandidate, error) {
	text := strings.ReplaceAll(raw.Text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return domain.CommandCandidate{}, domain.ErrNoCommandFound
	}

	if block, prose, ok := firstFence(text); ok {
		if candidate, ok := fromJSON(block); ok {
			return candidate, nil
		}
		return newCandidate(block, prose), nil
	}

	if candidate, ok := fromJSON(text); ok {
		return candidate, nil
	}

	lines := strings.Split(text, "\n")

	if spans := e.commandSpans(text); len(spans) == 1 {
		return newCandidate(spans[0], e.proseExcept(lines, spans[0])), nil
	} else if len(spans) > 1 {
		return domain.CommandCandidate{}, &domain.AmbiguousCommandsError{Candidates: spans}
	}

	var commands []string
	seen := map[string]bool{}
	for _, line := range lines {
		cleaned, ok := e.commandLine(line)
		if !ok || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		commands = append(commands, cleaned)
	}

	switch len(commands) {
	case 0:
		return domain.CommandCandidate{}, domain.ErrNoCommandFound
	case 1:
		return newCandidate(commands[0], e.proseExcept(lines, commands[0])), nil
	default:
		return domain.CommandCandidate{}, &domain.AmbiguousCommandsError{Candidates: commands}
	}
}

func newCandidate(command string, prose []string) domain.CommandCandidate {
	command = stripPrompts(strings.TrimSpace(command))
	return domain.CommandCandidate{
		Command:      command,
		Explanation:  summarize(prose),
		Placeholders: domain.FindPlaceholders(command),
	}
}

// firstFence returns the first fenced block with content and the text
// outside all fences. An unclosed fence runs to the end of the text.
func firstFence(text string) (string, []string, bool) {
	var (
		block   []string
		prose   []string
		found   string
		inFence bool
		marker  string
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inFence {
			if m := fenceMarker(trimmed); m != "" {
				inFence, marker, block = true, m, nil
				continue
			}
			prose = append(prose, line)
			continue
		}
		if strings.HasPrefix(trimmed, marker) && strings.Trim(trimmed, marker[:1]) == "" {
			inFence = false
			if content := strings.TrimSpace(strings.Join(block, "\n")); content != "" && found == "" {
				found = content
			}
			continue
		}
		block = append(block, line)
	}
	if inFence && found == "" {
		found = strings.TrimSpace(strings.Join(block, "\n"))
	}
	return found, prose, found != ""
}

func fenceMarker(line string) string {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker
		}
	}
	return ""
}

type jsonSuggestion struct {
	Command     string  `json:"command"`
	Explanation string  `json:"explanation"`
	Warning     *string `json:"warning"`
}

func fromJSON(text string) (domain.CommandCandidate, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return domain.CommandCandidate{}, false
	}
	var suggestion jsonSuggestion
	if err := json.Unmarshal([]byte(text), &suggestion); err != nil {
		return domain.CommandCandidate{}, false
	}
	command := strings.TrimSpace(suggestion.Command)
	if command == "" {
		return domain.CommandCandidate{}, false
	}
	candidate := domain.CommandCandidate{
		Command:      command,
		Explanation:  truncate(collapseSpace(suggestion.Explanation)),
		Placeholders: domain.FindPlaceholders(command),
	}
	if suggestion.Warning != nil {
		candidate.Warning = strings.TrimSpace(*suggestion.Warning)
	}
	return candidate, true
}

var inlineCode = regexp.MustCompile("`([^`\n]+)`")

func (e *Extractor) commandSpans(text string) []string {
	var spans []string
	seen := map[string]bool{}
	for _, match := range inlineCode.FindAllStringSubmatch(text, -1) {
		span := stripPrompts(strings.TrimSpace(match[1]))
		if span == "" || seen[span] || !e.looksLikeCommand(span) {
			continue
		}
		seen[span] = true
		spans = append(spans, span)
	}
	return spans
}

var (
	bulletPrefix  = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+`)
	labelPrefix   = regexp.MustCompile(`(?i)^(?:command|cmd|run|shell)\s*:\s*`)
	sentenceEnd   = regexp.MustCompile(`[A-Za-z]{2,}[.!?]$`)
	shellishToken = regexp.MustCompile(`[-/.|><$=*'"~;&0-9{}()\[\]]`)
)

func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = bulletPrefix.ReplaceAllString(line, "")
	line = strings.TrimSpace(strings.TrimPrefix(line, "> "))
	line = labelPrefix.ReplaceAllString(line, "")
	line = stripPrompts(line)
	for _, pair := range []string{`""`, `''`, "``"} {
		if len(line) >= 2 && line[0] == pair[0] && line[len(line)-1] == pair[1] {
			line = strings.TrimSpace(line[1 : len(line)-1])
		}
	}
	return line
}

// commandLine returns the command on line, if any. A lead-in such as
// "Here's the command: ls -la" is dropped when what follows the last ": " is
// a command on its own.
func (e *Extractor) commandLine(line string) (string, bool) {
	cleaned := cleanLine(line)
	if cleaned == "" {
		return "", false
	}
	if e.looksLikeCommand(cleaned) {
		return cleaned, true
	}
	if i := strings.LastIndex(cleaned, ": "); i >= 0 {
		if tail := cleanLine(cleaned[i+2:]); tail != "" && e.looksLikeCommand(tail) {
			return tail, true
		}
	}
	return "", false
}

func stripPrompts(command string) string {
	lines := strings.Split(command, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "$ ") {
			return command
		}
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimSpace(line), "$ ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// looksLikeCommand reports whether line parses as shell and starts with a
// known command rather than an English word.
func (e *Extractor) looksLikeCommand(line string) bool {
	if strings.HasSuffix(line, ":") {
		return false
	}
	words := strings.Fields(line)
	if sentenceEnd.MatchString(line) && len(words) >= 4 {
		return false
	}
	if len(words) >= 5 && !shellishToken.MatchString(line) {
		return false
	}
	if len(words) >= 2 && englishDeterminers[strings.ToLower(words[1])] && !shellishToken.MatchString(line) {
		// "kill the process", "find all large files"
		return false
	}

	file, err := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash)).
		Parse(strings.NewReader(line), "")
	if err != nil || len(file.Stmts) == 0 {
		return false
	}
	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok {
		// compound commands such as for/if/while loops
		return file.Stmts[0].Cmd != nil
	}
	if len(call.Args) == 0 {
		return false
	}
	name := call.Args[0].Lit()
	if name == "" {
		return false
	}
	switch {
	case strings.HasPrefix(name, "./"), strings.HasPrefix(name, "../"), strings.HasPrefix(name, "~/"):
		return true
	case strings.Contains(name, "/"):
		return e.isCommand(path.Base(name))
	default:
		return e.isCommand(name)
	}
}

// proseExcept returns the explanatory lines, dropping the command line itself
// and labels that introduce it.
func (e *Extractor) proseExcept(lines []string, command string) []string {
	var prose []string
	for _, line := range lines {
		if cleaned, ok := e.commandLine(line); command != "" && ok && cleaned == command {
			continue
		}
		prose = append(prose, line)
	}
	return prose
}

func summarize(prose []string) string {
	var parts []string
	for _, line := range prose {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		parts = append(parts, strings.ReplaceAll(line, "`", ""))
	}
	return truncate(collapseSpace(strings.Join(parts, " ")))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= domain.MaxExplanationRunes {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:domain.MaxExplanationRunes-1])) + "…"
}

var powershellCmdlet = regexp.MustCompile(`^[A-Z][a-z]+-[A-Z][A-Za-z]+$`)

var englishDeterminers = map[string]bool{
	"the": true, "a": true, "an": true, "all": true, "this": true, "that": true,
	"these": true, "those": true, "my": true, "your": true, "every": true, "some": true,
}

var shellBuiltins = map[string]bool{
	"alias": true, "bg": true, "cd": true, "command": true, "echo": true, "eval": true,
	"exec": true, "exit": true, "export": true, "fg": true, "history": true, "jobs": true,
	"kill": true, "printf": true, "pushd": true, "popd": true, "pwd": true, "read": true,
	"set": true, "source": true, "test": true, "type": true, "ulimit": true, "umask": true,
	"unalias": true, "unset": true, "wait": true,
}

var _ ports.CommandExtractor = (*Extractor)(nil)
