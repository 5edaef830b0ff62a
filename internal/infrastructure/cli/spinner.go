package cli

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/doeshing/q/internal/ports"
)

// Spinner shows activity on stderr while the provider call blocks. It stays
// silent when stderr is not a terminal.
type Spinner struct {
	sp      *spinner.Spinner
	enabled bool
}

// NewSpinner creates a spinner writing to f.
func NewSpinner(f *os.File) *Spinner {
	return &Spinner{
		sp:      spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(f), spinner.WithHiddenCursor(true)),
		enabled: term.IsTerminal(int(f.Fd())),
	}
}

// Start begins the animation with message next to it.
func (s *Spinner) Start(message string) {
	if !s.enabled {
		return
	}
	s.sp.Suffix = " " + message
	s.sp.Start()
}

// Stop clears the spinner line.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	s.sp.Stop()
}

var _ ports.Progress = (*Spinner)(nil)
