package app

import (
	"context"
	"fmt"
	"os/exec"

	configapp "github.com/doeshing/q/internal/application/config"
	"github.com/doeshing/q/internal/application/doctor"
	"github.com/doeshing/q/internal/application/query"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/infrastructure/ai"
	"github.com/doeshing/q/internal/infrastructure/config"
	contextcollector "github.com/doeshing/q/internal/infrastructure/context"
	"github.com/doeshing/q/internal/infrastructure/credentials"
	"github.com/doeshing/q/internal/infrastructure/executor"
	"github.com/doeshing/q/internal/infrastructure/extractor"
	"github.com/doeshing/q/internal/infrastructure/security"
	"github.com/doeshing/q/internal/pkg/logger"
	"github.com/doeshing/q/internal/ports"
)

// Options controls how the container is built.
type Options struct {
	Verbose bool
	// ConfigPath overrides the config file location; empty means Q_CONFIG or
	// the per-user default.
	ConfigPath string
}

// Container wires up application services with infrastructure adapters.
//
// A config that fails to load or validate does not stop the container from
// being built: ConfigErr records why, QueryService stays nil, and the config
// subcommands can still be used to repair the file.
type Container struct {
	Config         domain.Config
	ConfigErr      error
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Credentials    ports.CredentialStore
	Logger         ports.Logger
	QueryService   *query.Service
	DoctorService  *doctor.Service
}

// BuildContainer constructs the dependency graph. The error is reserved for
// failures no config change could fix, such as a broken embedded rule table.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	creds := credentials.NewEnvStore()
	collector := contextcollector.NewBasicCollector()

	container := &Container{
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Credentials:    creds,
	}

	cfg, err := cfgLoader.Load(ctx)
	if err == nil {
		err = configapp.Validate(cfg)
	}
	if err != nil {
		container.ConfigErr = fmt.Errorf("configuration %s: %w", cfgLoader.Path(), err)
		cfg = config.DefaultConfig()
	}
	container.Config = cfg

	log := logger.NewStd(opts.Verbose || cfg.Preferences.Verbose || logger.VerboseFromEnv())
	container.Logger = log

	defaults, err := security.NewGuardrail("")
	if err != nil {
		return nil, err
	}
	guardrail, rulesErr := security.NewGuardrail(cfg.Security.RulesFile)
	if rulesErr != nil {
		rulesErr = fmt.Errorf("rules file %s: %w", cfg.Security.RulesFile, rulesErr)
		log.Warn("user risk rules not loaded", map[string]interface{}{"error": rulesErr.Error()})
		if container.ConfigErr == nil {
			container.ConfigErr = rulesErr
		}
		guardrail = defaults
	}

	shell := executor.ResolveShell(cfg.Execution.Shell)

	container.DoctorService = &doctor.Service{
		ConfigProvider:   cfgLoader,
		Credentials:      creds,
		Classifier:       guardrail,
		RulesErr:         rulesErr,
		ContextCollector: collector,
		ShellProgram:     shell.Program,
		LookPath:         exec.LookPath,
	}

	if container.ConfigErr != nil {
		log.Debug("query pipeline disabled", map[string]interface{}{"error": container.ConfigErr.Error()})
		return container, nil
	}

	container.QueryService = &query.Service{
		Config:           cfg,
		ContextCollector: collector,
		Credentials:      creds,
		ProviderFactory:  ai.NewFactory(cfg.ProviderTimeout()),
		Extractor:        extractor.New(),
		Classifier:       guardrail,
		Executor:         executor.NewShellExecutor(shell),
		Logger:           log,
	}

	log.Debug("container ready", map[string]interface{}{
		"config":   cfgLoader.Path(),
		"provider": cfg.Preferences.DefaultProvider,
		"shell":    shell.Program,
	})
	return container, nil
}

// SetVerbose switches debug logging for everything the container built.
func (c *Container) SetVerbose(verbose bool) {
	c.Logger = logger.NewStd(verbose)
	if c.QueryService != nil {
		c.QueryService.Logger = c.Logger
	}
}
