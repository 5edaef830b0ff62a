package cli

import (
	"errors"
	"fmt"

	"github.com/doeshing/q/internal/domain"
)

// ExitError carries a process exit code. With a nil Err there is nothing
// left to print: the command's own output already explains the status.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode implements the exit coder used by ExitCodeFor.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// ExitCodeFor maps an error returned by the root command to the process exit
// code. Errors that do not carry one are internal failures.
func ExitCodeFor(err error) int {
	if err == nil {
		return domain.ExitOK
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return domain.ExitInternalError
}
