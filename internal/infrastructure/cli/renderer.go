package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/doeshing/q/internal/domain"
)

var (
	commandColor = color.New(color.FgCyan, color.Bold)
	noteColor    = color.New(color.Faint)
	cautionColor = color.New(color.FgYellow)
	dangerColor  = color.New(color.FgRed, color.Bold)
	bannerColor  = color.New(color.FgWhite, color.BgRed, color.Bold)
	errorColor   = color.New(color.FgRed)
)

// RenderSuggestion prints the candidate command with its explanation,
// provider warning and risk verdict.
func RenderSuggestion(w io.Writer, candidate domain.CommandCandidate, assessment domain.RiskAssessment, showExplanation bool) {
	fmt.Fprintln(w)
	if assessment.Level == domain.RiskDestructive {
		bannerColor.Fprint(w, " Destructive command ")
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  %s\n", commandColor.Sprint(candidate.Command))

	if showExplanation && candidate.Explanation != "" {
		noteColor.Fprintf(w, "  %s\n", candidate.Explanation)
	}
	if candidate.Warning != "" {
		cautionColor.Fprintf(w, "  Warning: %s\n", candidate.Warning)
	}

	if assessment.Level != domain.RiskSafe {
		riskColor(assessment.Level).Fprintf(w, "  Risk: %s\n", assessment.Level)
		for _, reason := range assessment.Reasons {
			fmt.Fprintf(w, "    - %s\n", reason)
		}
	}
	fmt.Fprintln(w)
}

// RenderFinalCommand prints the command that is about to run.
func RenderFinalCommand(w io.Writer, candidate domain.CommandCandidate) {
	fmt.Fprintf(w, "Final command: %s\n", commandColor.Sprint(candidate.Command))
}

func riskColor(level domain.RiskLevel) *color.Color {
	if level == domain.RiskDestructive {
		return dangerColor
	}
	return cautionColor
}

// RenderError prints the single-line failure message, followed by the
// competing commands when extraction was ambiguous.
func RenderError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	errorColor.Fprintf(w, "Error: %s\n", err)

	var stageErr *domain.StageError
	if errors.As(err, &stageErr) {
		for _, candidate := range stageErr.Candidates() {
			fmt.Fprintf(w, "  %s\n", commandColor.Sprint(candidate))
		}
	}
}

// RenderDeclined tells the user nothing was run.
func RenderDeclined(w io.Writer) {
	noteColor.Fprintln(w, "Cancelled; nothing was executed.")
}
