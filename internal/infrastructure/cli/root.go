package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doeshing/q/internal/app"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/infrastructure/cli/commands"
	"github.com/doeshing/q/internal/version"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, app.Options{Verbose: opts.Verbose, ConfigPath: opts.ConfigPath})
	if err != nil {
		return nil, err
	}
	if container.QueryService != nil {
		container.QueryService.Gate = NewPrompter(nil, nil).WithExplanation(container.Config.Execution.ShowExplanation)
		container.QueryService.Clipboard = NewClipboard()
		container.QueryService.Progress = NewSpinner(os.Stderr)
	}
	return newRootCmd(container), nil
}

func newRootCmd(container *app.Container) *cobra.Command {
	var (
		yes            bool
		showConfigPath bool
		verbose        bool
		provider       string
	)

	root := &cobra.Command{
		Use:   "q [query...]",
		Short: "Turn a plain-English request into a shell command",
		Long: `q asks an AI provider for the shell command that does what you describe,
shows it with a risk rating, and runs it in your shell once you confirm.

Flags go before the query; everything from the first query word on is part
of the request, so words such as -la need no quoting.

  q find files larger than 100MB in this directory
  q -y "show disk usage sorted by size"
  q explain what ls -la does`,
		Args:          cobra.ArbitraryArgs,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				container.SetVerbose(true)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showConfigPath {
				return commands.PrintConfigPath(cmd.OutOrStdout(), container)
			}
			query := domain.NewQuery(args)
			if query.IsEmpty() {
				_ = cmd.Help()
				return &ExitError{Code: domain.ExitInternalError}
			}
			return runQuery(cmd.Context(), cmd.ErrOrStderr(), container, domain.QueryRequest{
				Query:            query,
				ProviderOverride: provider,
				SkipConfirmation: yes,
				RunID:            uuid.NewString(),
			})
		},
	}

	root.Flags().BoolVarP(&yes, "yes", "y", false, "Run the suggested command without asking")
	root.Flags().BoolVar(&showConfigPath, "config-path", false, "Print the config file path (creating its directory) and exit")
	root.Flags().StringVar(&provider, "provider", "", "Use this configured provider instead of preferences.default_provider")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log pipeline stages to stderr")
	root.Flags().SetInterspersed(false)
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(commands.NewConfigCommand(container))
	root.AddCommand(commands.NewDoctorCommand(container))
	root.AddCommand(commands.NewVersionCommand())
	return root
}

// runQuery drives one pipeline run and turns its terminal state into the
// command's error: nil on success or decline, an ExitError carrying the
// child's status when the command failed.
func runQuery(ctx context.Context, errOut io.Writer, container *app.Container, req domain.QueryRequest) error {
	if container.ConfigErr != nil {
		return fmt.Errorf("%w (fix it with `q config edit` or `q config reset`)", container.ConfigErr)
	}

	result, err := container.QueryService.Run(ctx, req)
	if err != nil {
		return err
	}
	if result.Declined {
		RenderDeclined(errOut)
		return nil
	}
	if code := result.ExitCode(nil); code != domain.ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}
