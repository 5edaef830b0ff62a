//go:build !windows

package executor

import (
	"os"
	"syscall"
)

// interruptProcess asks the shell to stop the way Ctrl-C would. The process
// is not put in its own group so interactive programs keep the terminal.
func interruptProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(os.Interrupt)
}

func signalOf(state *os.ProcessState) (string, bool) {
	if state == nil {
		return "", false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return "", false
	}
	return status.Signal().String(), true
}
