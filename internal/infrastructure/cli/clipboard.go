package cli

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/doeshing/q/internal/ports"
)

// Clipboard implements ports.Clipboard using platform-specific tools.
type Clipboard struct {
	goos     string
	lookPath func(string) (string, error)
}

// NewClipboard builds the clipboard helper for the running platform.
func NewClipboard() *Clipboard {
	return &Clipboard{goos: runtime.GOOS, lookPath: exec.LookPath}
}

// Enabled reports whether a clipboard tool is available.
func (c *Clipboard) Enabled() bool {
	_, err := c.tool()
	return err == nil
}

// Copy copies text to the system clipboard.
func (c *Clipboard) Copy(text string) error {
	argv, err := c.tool()
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// tool picks the copy command: pbcopy on macOS, clip on Windows, wl-copy
// under Wayland and xclip or xsel elsewhere.
func (c *Clipboard) tool() ([]string, error) {
	var candidates [][]string
	switch c.goos {
	case "darwin":
		candidates = [][]string{{"pbcopy"}}
	case "windows":
		candidates = [][]string{{"clip"}}
	default:
		candidates = [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	}
	for _, argv := range candidates {
		if _, err := c.lookPath(argv[0]); err == nil {
			return argv, nil
		}
	}
	return nil, fmt.Errorf("no clipboard utility found on %s", c.goos)
}

var _ ports.Clipboard = (*Clipboard)(nil)
