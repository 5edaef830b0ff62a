package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Prompter implements ports.ConfirmationGate on the terminal. Prompts go to
// out (stderr by default) so stdout stays with the executed command.
type Prompter struct {
	in              *bufio.Reader
	out             io.Writer
	interactive     func() bool
	showExplanation bool
	pending         chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewPrompter constructs a prompter reading in and writing out. nil means
// stdin and stderr.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	return &Prompter{
		in:              bufio.NewReader(in),
		out:             out,
		interactive:     stdinIsTerminal,
		showExplanation: true,
	}
}

// WithExplanation toggles the explanation line under the command.
func (p *Prompter) WithExplanation(show bool) *Prompter {
	p.showExplanation = show
	return p
}

// WithInteractive replaces terminal detection.
func (p *Prompter) WithInteractive(fn func() bool) *Prompter {
	p.interactive = fn
	return p
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Decide implements ports.ConfirmationGate.
func (p *Prompter) Decide(ctx context.Context, candidate domain.CommandCandidate, assessment domain.RiskAssessment, skip bool) (domain.GateDecision, error) {
	RenderSuggestion(p.out, candidate, assessment, p.showExplanation)

	if skip {
		return domain.Proceed, nil
	}
	if !p.interactive() {
		fmt.Fprintln(p.out, "Not running: stdin is not a terminal. Re-run with --yes to execute without confirmation.")
		return domain.Abort, nil
	}

	defaultYes := assessment.Level != domain.RiskDestructive
	if defaultYes {
		fmt.Fprint(p.out, "Execute? [Y/n] ")
	} else {
		fmt.Fprint(p.out, "Execute anyway? [y/N] ")
	}

	answer, err := p.readLine(ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(p.out)
		return domain.Abort, nil
	}
	if err != nil {
		fmt.Fprintln(p.out)
		return domain.Abort, err
	}
	if isYes(answer, defaultYes) {
		return domain.Proceed, nil
	}
	return domain.Abort, nil
}

// Fill implements ports.ConfirmationGate. An empty value or EOF returns
// domain.ErrAborted.
func (p *Prompter) Fill(ctx context.Context, names []string) (map[string]string, error) {
	if !p.interactive() {
		return nil, domain.ErrUnresolvedPlaceholders
	}

	fmt.Fprintln(p.out, "The command needs a few values:")
	values := make(map[string]string, len(names))
	for _, name := range names {
		fmt.Fprintf(p.out, "  %s: ", name)
		answer, err := p.readLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(p.out)
			return nil, domain.ErrAborted
		}
		if err != nil {
			return nil, err
		}
		value := strings.TrimSpace(answer)
		if value == "" {
			return nil, domain.ErrAborted
		}
		values[name] = value
	}
	return values, nil
}

// Announce prints the command with its placeholders filled in.
func (p *Prompter) Announce(candidate domain.CommandCandidate) {
	RenderFinalCommand(p.out, candidate)
}

// readLine waits for one line of input or ctx, whichever comes first. A read
// abandoned by ctx is picked up by the next call.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	if p.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
		p.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-p.pending:
		p.pending = nil
		if res.err != nil && res.line != "" && errors.Is(res.err, io.EOF) {
			return res.line, nil
		}
		return res.line, res.err
	}
}

func isYes(answer string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return defaultYes
	case "y", "yes":
		return true
	default:
		return false
	}
}

var _ ports.ConfirmationGate = (*Prompter)(nil)
