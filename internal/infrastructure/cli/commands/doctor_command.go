package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doeshing/q/internal/app"
	"github.com/doeshing/q/internal/domain"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, API key, shell and risk rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctorDiagnostics(cmd, cmd.OutOrStdout(), container)
		},
	}
}

// runDoctorDiagnostics runs environment diagnostics
func runDoctorDiagnostics(cmd *cobra.Command, out io.Writer, container *app.Container) error {
	if container == nil || container.DoctorService == nil {
		return errors.New(ErrDoctorServiceUnavailable)
	}

	report, err := container.DoctorService.Run(cmd.Context())

	// Display report even if there were errors
	displayDoctorReport(out, report)

	if err != nil {
		return fmt.Errorf("diagnostics completed with errors: %w", err)
	}
	if report.HasErrors() {
		return errors.New("diagnostics found problems")
	}
	return nil
}

var statusColors = map[domain.HealthStatus]*color.Color{
	domain.HealthOK:    color.New(color.FgGreen),
	domain.HealthWarn:  color.New(color.FgYellow),
	domain.HealthError: color.New(color.FgRed, color.Bold),
}

// displayDoctorReport displays the health check report
func displayDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		status := fmt.Sprintf("[%s]", strings.ToUpper(string(check.Status)))
		if c, ok := statusColors[check.Status]; ok {
			status = c.Sprint(status)
		}
		fmt.Fprintf(out, "%s %s - %s\n", status, check.Name, check.Details)
	}
}
