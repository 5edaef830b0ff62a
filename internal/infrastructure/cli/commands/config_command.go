package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/q/internal/app"
	configapp "github.com/doeshing/q/internal/application/config"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/q/internal/infrastructure/config"
	"github.com/doeshing/q/internal/infrastructure/credentials"
	"github.com/doeshing/q/internal/infrastructure/security"
)

// NewConfigCommand creates the config command with all subcommands. Without a
// subcommand it walks the user through storing an API key.
func NewConfigCommand(container *app.Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Set up the API key or inspect the q configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return setupAPIKey(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), container)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(container),
		newConfigGetCommand(container),
		newConfigSetCommand(container),
		newConfigEditCommand(container),
		newConfigValidateCommand(container),
		newConfigResetCommand(container),
		newConfigDiffCommand(container),
		newConfigPathCommand(container),
	)

	return configCmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand(container *app.Container) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show full configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), container, reveal)
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print API keys unmasked")
	return cmd
}

// newConfigGetCommand creates the 'config get' subcommand
func newConfigGetCommand(container *app.Container) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get a specific configuration value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				key = args[0]
			}
			if key == "" {
				return errors.New("a key is required (e.g. preferences.default_provider)")
			}
			return getConfigurationValue(cmd.Context(), cmd.OutOrStdout(), container, key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Key path (e.g., preferences.default_provider or providers.0.model_id)")
	return cmd
}

// newConfigSetCommand creates the 'config set' subcommand
func newConfigSetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (value accepts YAML syntax)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := strings.Join(args[1:], " ")
			if err := setConfigurationValue(cmd.Context(), container, key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", key)
			return nil
		},
	}
}

// newConfigEditCommand creates the 'config edit' subcommand
func newConfigEditCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in $EDITOR",
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfigurationInEditor(cmd.Context(), container)
		},
	}
}

// newConfigValidateCommand creates the 'config validate' subcommand
func newConfigValidateCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateConfiguration(cmd.Context(), container); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

// newConfigResetCommand creates the 'config reset' subcommand
func newConfigResetCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset configuration to defaults (the old file is backed up)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetConfigurationToDefaults(cmd.OutOrStdout(), container)
		},
	}
}

// newConfigDiffCommand creates the 'config diff' subcommand
func newConfigDiffCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show diff versus default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigurationDiff(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path, creating its directory if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintConfigPath(cmd.OutOrStdout(), container)
		},
	}
}

// PrintConfigPath ensures the config directory exists and prints the file path.
func PrintConfigPath(out io.Writer, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	path, err := loader.EnsureDir()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}

// setupAPIKey asks which provider to use and stores its API key in the config
// file, making that provider the default.
func setupAPIKey(ctx context.Context, in io.Reader, out io.Writer, container *app.Container) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	reader := bufio.NewReader(in)

	names := make([]string, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		names = append(names, provider.Name)
	}
	fmt.Fprintf(out, "Configured providers: %s\n", strings.Join(names, ", "))

	name := helpers.PromptForChoice(out, reader, "Provider", cfg.Preferences.DefaultProvider)
	provider, ok := cfg.FindProvider(name)
	if !ok {
		return fmt.Errorf("provider %s is not configured (add it with `q config edit`)", name)
	}

	if !provider.Kind.RequiresCredential() {
		fmt.Fprintf(out, "%s needs no API key.\n", provider.Name)
		return saveDefaultProvider(out, container, cfg, provider.Name)
	}

	if vars := provider.CredentialEnvVars(); len(vars) > 0 {
		fmt.Fprintf(out, "The key is stored in the config file. Alternatively export %s.\n", strings.Join(vars, " or "))
	}
	key, err := helpers.PromptForSecret(out, in, reader, fmt.Sprintf("API key for %s", provider.Name))
	if err != nil {
		return err
	}
	if key == "" {
		fmt.Fprintln(out, MsgNoKeyEntered)
		return nil
	}
	if credentials.IsPlaceholder(key) {
		return errors.New("that looks like a placeholder, not a real API key")
	}

	if err := cfg.SetProviderAPIKey(provider.Name, key); err != nil {
		return err
	}
	if err := cfg.SetDefaultProvider(provider.Name); err != nil {
		return err
	}
	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved API key for %s (%s) to %s\n", provider.Name, helpers.MaskSecret(key), container.ConfigLoader.Path())
	return nil
}

func saveDefaultProvider(out io.Writer, container *app.Container, cfg domain.Config, name string) error {
	if cfg.Preferences.DefaultProvider == name {
		return nil
	}
	if err := cfg.SetDefaultProvider(name); err != nil {
		return err
	}
	if err := helpers.SaveConfigWithValidation(container, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Default provider is now %s\n", name)
	return nil
}

// showConfiguration displays the full configuration in YAML format
func showConfiguration(ctx context.Context, out io.Writer, container *app.Container, reveal bool) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	if !reveal {
		cfg = helpers.RedactConfig(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Fprint(out, string(data))
	return nil
}

// getConfigurationValue retrieves a specific configuration value by key path
func getConfigurationValue(ctx context.Context, out io.Writer, container *app.Container, keyPath string) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}

	genericMap, err := convertConfigToGenericMap(cfg)
	if err != nil {
		return err
	}

	value, found := helpers.TraverseNestedMap(genericMap, helpers.SplitKeyPath(keyPath))
	if !found {
		return fmt.Errorf("key %s not found in configuration", keyPath)
	}

	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	fmt.Fprint(out, string(data))
	return nil
}

// setConfigurationValue updates a configuration value by key path
func setConfigurationValue(ctx context.Context, container *app.Container, keyPath string, value string) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}

	cfgMap, err := convertDomainConfigToMap(cfg)
	if err != nil {
		return err
	}

	if !helpers.SetNestedMapValue(cfgMap, helpers.SplitKeyPath(keyPath), helpers.ParseYAMLValue(value)) {
		return fmt.Errorf("unable to set key %s", keyPath)
	}

	updatedConfig, err := convertMapToDomainConfig(cfgMap)
	if err != nil {
		return err
	}

	return helpers.SaveConfigWithValidation(container, updatedConfig)
}

// editConfigurationInEditor opens the configuration file in the user's editor
// and validates the result.
func editConfigurationInEditor(ctx context.Context, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}
	// Load writes the defaults when the file does not exist yet. A file that
	// fails to parse is what the editor is for.
	_, _ = loader.Load(ctx)

	editorCommand := getEditorCommand()
	fields := strings.Fields(editorCommand)
	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], loader.Path())...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor %s: %w", editorCommand, err)
	}

	if err := validateConfiguration(ctx, container); err != nil {
		return fmt.Errorf("saved configuration is invalid: %w", err)
	}
	return nil
}

// validateConfiguration re-reads the file and checks it, rules file included.
func validateConfiguration(ctx context.Context, container *app.Container) error {
	cfg, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}
	if err := configapp.Validate(cfg); err != nil {
		return err
	}
	if _, err := security.NewGuardrail(cfg.Security.RulesFile); err != nil {
		return fmt.Errorf("rules file %s: %w", cfg.Security.RulesFile, err)
	}
	return nil
}

// resetConfigurationToDefaults resets the configuration to default values
func resetConfigurationToDefaults(out io.Writer, container *app.Container) error {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return err
	}

	backup, err := helpers.BackupIfExists(loader)
	if err != nil {
		return err
	}

	if _, err := loader.Reset(); err != nil {
		return fmt.Errorf("failed to reset configuration: %w", err)
	}

	if backup != "" {
		fmt.Fprintf(out, "Previous configuration saved to %s\n", backup)
	}
	fmt.Fprintf(out, "Configuration reset at %s\n", loader.Path())
	return nil
}

// showConfigurationDiff shows the difference between current and default configuration
func showConfigurationDiff(ctx context.Context, out io.Writer, container *app.Container) error {
	currentConfig, err := loadConfiguration(ctx, container)
	if err != nil {
		return err
	}

	diff := cmp.Diff(helpers.RedactConfig(configinfra.DefaultConfig()), helpers.RedactConfig(currentConfig))
	if diff == "" {
		fmt.Fprintln(out, MsgNoDifferencesFromDefault)
		return nil
	}

	fmt.Fprintln(out, diff)
	return nil
}

// Helper functions

func loadConfiguration(ctx context.Context, container *app.Container) (domain.Config, error) {
	loader, err := helpers.GetConfigLoader(container)
	if err != nil {
		return domain.Config{}, err
	}
	cfg, err := loader.Load(ctx)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// getEditorCommand retrieves the editor command from environment or returns default
func getEditorCommand() string {
	if editor := strings.TrimSpace(os.Getenv(envKeyEditor)); editor != "" {
		return editor
	}
	return DefaultEditorCommand
}

// convertConfigToGenericMap converts domain.Config to a generic map for traversal
func convertConfigToGenericMap(cfg domain.Config) (interface{}, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to generic map: %w", err)
	}

	return generic, nil
}

// convertDomainConfigToMap converts domain.Config to map[string]interface{}
func convertDomainConfigToMap(cfg domain.Config) (map[string]interface{}, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var cfgMap map[string]interface{}
	if err := yaml.Unmarshal(raw, &cfgMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal to map: %w", err)
	}

	return cfgMap, nil
}

// convertMapToDomainConfig converts map[string]interface{} back to domain.Config.
// Unknown keys are rejected so a typo does not silently do nothing.
func convertMapToDomainConfig(cfgMap map[string]interface{}) (domain.Config, error) {
	updatedRaw, err := yaml.Marshal(cfgMap)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to marshal updated map: %w", err)
	}

	decoder := yaml.NewDecoder(strings.NewReader(string(updatedRaw)))
	decoder.KnownFields(true)
	var updated domain.Config
	if err := decoder.Decode(&updated); err != nil {
		return domain.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return updated, nil
}
