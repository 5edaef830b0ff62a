// Package contextcollector gathers the OS, shell and working directory sent
// to the provider alongside a query.
package contextcollector

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// BasicCollector implements ports.ContextCollector from the process
// environment.
type BasicCollector struct {
	goos   string
	getenv func(string) string
	getwd  func() (string, error)
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		goos:   runtime.GOOS,
		getenv: os.Getenv,
		getwd:  os.Getwd,
	}
}

// Collect gathers context data. Each field is skipped when its include_*
// setting is off, and an unreadable working directory is left empty.
func (c *BasicCollector) Collect(ctx context.Context, cfg domain.Config) (domain.SystemContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.SystemContext{}, err
	}

	snapshot := domain.SystemContext{OS: OSName(c.goos)}
	if cfg.Context.IncludeShellInfo {
		snapshot.Shell = cfg.ContextShellOverride()
		if snapshot.Shell == "" {
			snapshot.Shell = DetectShell(c.goos, c.getenv)
		}
	}
	if cfg.Context.IncludeDirectory {
		if wd, err := c.getwd(); err == nil {
			snapshot.WorkingDir = wd
		}
	}
	return snapshot, nil
}

// OSName is the name models know the platform by.
func OSName(goos string) string {
	switch goos {
	case "darwin":
		return "macos"
	default:
		return goos
	}
}

// DetectShell returns the basename of $SHELL, or on Windows "powershell"
// when PSModulePath is set and "cmd" otherwise. Unknown Unix shells are
// reported as "sh".
func DetectShell(goos string, getenv func(string) string) string {
	if shell := getenv("SHELL"); shell != "" {
		name := filepath.Base(strings.ReplaceAll(shell, `\`, "/"))
		return strings.TrimSuffix(strings.ToLower(name), ".exe")
	}
	if goos == "windows" {
		if getenv("PSModulePath") != "" {
			return "powershell"
		}
		return "cmd"
	}
	return "sh"
}

var _ ports.ContextCollector = (*BasicCollector)(nil)
