package domain_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/doeshing/q/internal/domain"
)

func TestStageError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *domain.StageError
		want string
	}{
		{
			name: "timeout",
			err: &domain.StageError{
				Stage: domain.StageQuerying,
				Err:   domain.NewProviderError(domain.NetworkError, "openrouter", fmt.Errorf("post: %w", context.DeadlineExceeded)),
			},
			want: "Could not reach AI provider: timeout",
		},
		{
			name: "auth",
			err: &domain.StageError{
				Stage: domain.StageQuerying,
				Err:   domain.NewProviderError(domain.AuthError, "openrouter", errors.New("no API key")),
			},
			want: "AI provider authentication failed: no API key",
		},
		{
			name: "no command",
			err:  &domain.StageError{Stage: domain.StageExtracting, Err: domain.ErrNoCommandFound},
			want: "No command found in the AI response",
		},
		{
			name: "interrupted",
			err: &domain.StageError{
				Stage: domain.StageExecuting,
				Err:   &domain.ExecutionError{Kind: domain.InterruptedBySignal, Signal: "interrupt"},
			},
			want: "Command interrupted by signal: interrupt",
		},
		{
			name: "generic",
			err:  &domain.StageError{Stage: domain.StageConfirming, Err: errors.New("read failed")},
			want: "Confirmation failed: read failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if strings.Contains(tt.err.Error(), "\n") {
				t.Error("message must be a single line")
			}
		})
	}
}

func TestAmbiguousCommandsError_Is(t *testing.T) {
	err := &domain.StageError{
		Stage: domain.StageExtracting,
		Err:   &domain.AmbiguousCommandsError{Candidates: []string{"ls", "ls -la"}},
	}
	if !errors.Is(err, domain.ErrMultipleAmbiguousCommands) {
		t.Fatal("expected ErrMultipleAmbiguousCommands")
	}
	if got := err.Candidates(); len(got) != 2 {
		t.Fatalf("expected candidates to be exposed, got %v", got)
	}
}

func TestProviderError_Retryable(t *testing.T) {
	for kind, want := range map[domain.ProviderErrorKind]bool{
		domain.AuthError:                 false,
		domain.NetworkError:              true,
		domain.RateLimited:               true,
		domain.MalformedUpstreamResponse: false,
	} {
		if got := domain.NewProviderError(kind, "x", nil).Retryable(); got != want {
			t.Errorf("%s: got %v, want %v", kind, got, want)
		}
	}
}
