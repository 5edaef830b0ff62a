package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ProviderErrorKind classifies a failed provider call.
type ProviderErrorKind int

const (
	AuthError ProviderErrorKind = iota + 1
	NetworkError
	RateLimited
	MalformedUpstreamResponse
)

func (k ProviderErrorKind) String() string {
	switch k {
	case AuthError:
		return "auth error"
	case NetworkError:
		return "network error"
	case RateLimited:
		return "rate limited"
	case MalformedUpstreamResponse:
		return "malformed upstream response"
	default:
		return "provider error"
	}
}

// ProviderError is returned by every Provider Client and by the credential store.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   string
	StatusCode int
	Err        error
}

// NewProviderError wraps err with a kind and the provider name.
func NewProviderError(kind ProviderErrorKind, provider string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed. Credential and
// response-shape problems never go away on their own.
func (e *ProviderError) Retryable() bool {
	return e.Kind == NetworkError || e.Kind == RateLimited
}

// Reason is a short description of the cause, "timeout" for deadlines.
func (e *ProviderError) Reason() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(e.Err, context.Canceled) {
		return "interrupted"
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return e.Err.Error()
}

// IsProviderErrorKind reports whether err carries a ProviderError of kind.
func IsProviderErrorKind(err error, kind ProviderErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

// Extraction errors.
var (
	ErrNoCommandFound            = errors.New("no command found in provider response")
	ErrMultipleAmbiguousCommands = errors.New("multiple ambiguous commands in provider response")
)

// AmbiguousCommandsError lists the plausible command lines found when the
// response had no code block to pick one.
type AmbiguousCommandsError struct {
	Candidates []string
}

func (e *AmbiguousCommandsError) Error() string {
	return fmt.Sprintf("%d possible commands and no code block to choose between them", len(e.Candidates))
}

func (e *AmbiguousCommandsError) Is(target error) bool {
	return target == ErrMultipleAmbiguousCommands
}

// ErrAborted is returned by the gate when the user backs out of a prompt
// other than the yes/no confirmation.
var ErrAborted = errors.New("aborted by user")

// ErrUnresolvedPlaceholders is returned when a command needs {{NAME}} values
// that cannot be asked for.
var ErrUnresolvedPlaceholders = errors.New("command has placeholders that need values")

// ExecutionErrorKind classifies a failed run of the approved command.
type ExecutionErrorKind int

const (
	LaunchFailed ExecutionErrorKind = iota + 1
	InterruptedBySignal
)

func (k ExecutionErrorKind) String() string {
	switch k {
	case LaunchFailed:
		return "launch failed"
	case InterruptedBySignal:
		return "interrupted by signal"
	default:
		return "execution error"
	}
}

// ExecutionError is returned by the executor when the command could not run
// to a normal exit.
type ExecutionError struct {
	Kind     ExecutionErrorKind
	Signal   string
	ExitCode int
	Err      error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Kind == InterruptedBySignal && e.Signal != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Signal)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// StageError is the orchestrator's Failed(stage, cause) state. Its Error is
// the single line shown to the user.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	var pe *ProviderError
	if errors.As(e.Err, &pe) {
		switch pe.Kind {
		case AuthError:
			return "AI provider authentication failed: " + pe.Reason()
		case NetworkError:
			return "Could not reach AI provider: " + pe.Reason()
		case RateLimited:
			return "AI provider rate limit reached: " + pe.Reason()
		case MalformedUpstreamResponse:
			return "AI provider returned an unusable response: " + pe.Reason()
		}
	}

	var ambiguous *AmbiguousCommandsError
	if errors.As(e.Err, &ambiguous) {
		return fmt.Sprintf("AI response contained %d possible commands; rephrase the query to get one", len(ambiguous.Candidates))
	}
	if errors.Is(e.Err, ErrNoCommandFound) {
		return "No command found in the AI response"
	}

	var execErr *ExecutionError
	if errors.As(e.Err, &execErr) {
		switch execErr.Kind {
		case LaunchFailed:
			return "Could not launch command: " + causeText(execErr)
		case InterruptedBySignal:
			return "Command interrupted by signal: " + defaultString(execErr.Signal, "interrupt")
		}
	}

	return fmt.Sprintf("%s failed: %v", stageLabel(e.Stage), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Candidates returns the ambiguous command lines, if that is why the run failed.
func (e *StageError) Candidates() []string {
	var ambiguous *AmbiguousCommandsError
	if errors.As(e.Err, &ambiguous) {
		return ambiguous.Candidates
	}
	return nil
}

// ExitCode implements the CLI's exit coder.
func (e *StageError) ExitCode() int {
	return ExitInternalError
}

func stageLabel(s Stage) string {
	switch s {
	case StageQuerying:
		return "AI request"
	case StageExtracting:
		return "Command extraction"
	case StageClassifying:
		return "Risk classification"
	case StageConfirming:
		return "Confirmation"
	case StageExecuting:
		return "Execution"
	default:
		return "Query"
	}
}

func causeText(e *ExecutionError) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("shell exited with status %d", e.ExitCode)
	}
	return e.Kind.String()
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
