package doctor

import (
	"context"
	"fmt"
	"strings"

	configapp "github.com/doeshing/q/internal/application/config"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider   ports.ConfigProvider
	Credentials      ports.CredentialStore
	Classifier       ports.RiskClassifier
	ContextCollector ports.ContextCollector

	// RulesErr is why the user's rules file could not be loaded, if it could not.
	RulesErr error

	// ShellProgram is the shell approved commands run in.
	ShellProgram string
	LookPath     func(string) (string, error)
}

// Run executes checks and returns a report. The error is set only when the
// config cannot be loaded, since nothing else can be checked without it.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := configapp.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, %d provider(s)", cfg.ConfigFormatVersion, len(cfg.Providers))))
	}

	checks = append(checks, s.providerChecks(cfg)...)
	checks = append(checks, s.rulesCheck())

	if s.ContextCollector != nil {
		if sysCtx, err := s.ContextCollector.Collect(ctx, cfg); err == nil {
			checks = append(checks, ok("Context", describeContext(sysCtx)))
		} else {
			checks = append(checks, warn("Context", err.Error()))
		}
	}

	checks = append(checks, s.shellCheck())

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) providerChecks(cfg domain.Config) []domain.HealthCheck {
	provider, err := cfg.GetDefaultProvider()
	if err != nil {
		return []domain.HealthCheck{fail("Provider", err.Error())}
	}
	checks := []domain.HealthCheck{
		ok("Provider", fmt.Sprintf("%s (%s, model %s)", provider.Name, provider.Kind, defaultString(provider.ModelID, "default"))),
	}

	if s.Credentials == nil {
		return append(checks, warn("API key", "credential store not initialized"))
	}
	cred, err := s.Credentials.Resolve(provider)
	switch {
	case err != nil:
		checks = append(checks, fail("API key", err.Error()))
	case cred.IsZero():
		checks = append(checks, ok("API key", "not required"))
	default:
		checks = append(checks, ok("API key", "found in "+cred.Source))
	}
	return checks
}

func (s *Service) rulesCheck() domain.HealthCheck {
	if s.RulesErr != nil {
		return fail("Risk rules", s.RulesErr.Error())
	}
	if s.Classifier == nil {
		return warn("Risk rules", "classifier not initialized")
	}
	probe := s.Classifier.Classify(domain.CommandCandidate{Command: "rm -rf /"})
	if probe.Level != domain.RiskDestructive {
		return fail("Risk rules", "`rm -rf /` is not classified as destructive")
	}
	return ok("Risk rules", "loaded")
}

func (s *Service) shellCheck() domain.HealthCheck {
	if s.ShellProgram == "" {
		return warn("Shell", "no shell resolved")
	}
	if s.LookPath == nil {
		return ok("Shell", s.ShellProgram)
	}
	path, err := s.LookPath(s.ShellProgram)
	if err != nil {
		return fail("Shell", fmt.Sprintf("%s not found: %v", s.ShellProgram, err))
	}
	return ok("Shell", path)
}

func describeContext(sysCtx domain.SystemContext) string {
	var parts []string
	if sysCtx.OS != "" {
		parts = append(parts, "os="+sysCtx.OS)
	}
	if sysCtx.Shell != "" {
		parts = append(parts, "shell="+sysCtx.Shell)
	}
	if sysCtx.WorkingDir != "" {
		parts = append(parts, "dir="+sysCtx.WorkingDir)
	}
	if len(parts) == 0 {
		return "nothing collected"
	}
	return strings.Join(parts, " ")
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
