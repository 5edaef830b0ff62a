//go:build windows

package executor

import "os"

// interruptProcess kills the process; Windows has no portable interrupt for
// a child that is not a console group leader.
func interruptProcess(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func signalOf(*os.ProcessState) (string, bool) {
	return "", false
}
