package domain_test

import (
	"testing"

	"github.com/doeshing/q/internal/domain"
)

func TestStage_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.Stage
		to   domain.Stage
		skip bool
		want bool
	}{
		{name: "pending to querying", from: domain.StagePending, to: domain.StageQuerying, want: true},
		{name: "querying to extracting", from: domain.StageQuerying, to: domain.StageExtracting, want: true},
		{name: "querying cannot skip extracting", from: domain.StageQuerying, to: domain.StageClassifying, want: false},
		{name: "classifying to confirming", from: domain.StageClassifying, to: domain.StageConfirming, want: true},
		{name: "classifying to executing needs skip", from: domain.StageClassifying, to: domain.StageExecuting, want: false},
		{name: "classifying to executing with skip", from: domain.StageClassifying, to: domain.StageExecuting, skip: true, want: true},
		{name: "confirming to done on decline", from: domain.StageConfirming, to: domain.StageDone, want: true},
		{name: "executing to done", from: domain.StageExecuting, to: domain.StageDone, want: true},
		{name: "any active stage can fail", from: domain.StageExtracting, to: domain.StageFailed, want: true},
		{name: "done is terminal", from: domain.StageDone, to: domain.StageFailed, want: false},
		{name: "failed is terminal", from: domain.StageFailed, to: domain.StageDone, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to, tt.skip); got != tt.want {
				t.Errorf("%s -> %s (skip=%v): got %v, want %v", tt.from, tt.to, tt.skip, got, tt.want)
			}
		})
	}
}

func TestRunResult_ExitCode(t *testing.T) {
	tests := []struct {
		name   string
		result domain.RunResult
		err    error
		want   int
	}{
		{name: "declined", result: domain.RunResult{Declined: true}, want: 0},
		{name: "success", result: domain.RunResult{Outcome: domain.ExecutionOutcome{Launched: true}}, want: 0},
		{name: "child failure propagates", result: domain.RunResult{Outcome: domain.ExecutionOutcome{Launched: true, ExitCode: 3}}, want: 3},
		{name: "internal failure", err: &domain.StageError{Stage: domain.StageQuerying}, want: domain.ExitInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.ExitCode(tt.err); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
