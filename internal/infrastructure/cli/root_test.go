package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/q/internal/app"
	"github.com/doeshing/q/internal/application/query"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/infrastructure/extractor"
	"github.com/doeshing/q/internal/infrastructure/security"
	"github.com/doeshing/q/internal/pkg/logger"
	"github.com/doeshing/q/internal/ports"
)

type fixedProvider struct {
	text    string
	queries []domain.Query
}

func (p *fixedProvider) Name() string { return "stub" }

func (p *fixedProvider) Submit(_ context.Context, req domain.ProviderRequest) (domain.RawResponse, error) {
	p.queries = append(p.queries, req.Query)
	return domain.RawResponse{Text: p.text, Provider: "stub"}, nil
}

type fixedFactory struct{ provider ports.Provider }

func (f fixedFactory) ForProvider(domain.ProviderConfig, domain.Credential) (ports.Provider, error) {
	return f.provider, nil
}

type noCredentials struct{}

func (noCredentials) Resolve(domain.ProviderConfig) (domain.Credential, error) {
	return domain.Credential{}, nil
}

type emptyContext struct{}

func (emptyContext) Collect(context.Context, domain.Config) (domain.SystemContext, error) {
	return domain.SystemContext{}, nil
}

type exitingExecutor struct {
	code int
	ran  []string
}

func (e *exitingExecutor) Run(_ context.Context, c domain.CommandCandidate) (domain.ExecutionOutcome, error) {
	e.ran = append(e.ran, c.Command)
	return domain.ExecutionOutcome{Launched: true, ExitCode: e.code}, nil
}

type recordingGate struct {
	*Prompter
	skips []bool
}

func (g *recordingGate) Decide(ctx context.Context, c domain.CommandCandidate, a domain.RiskAssessment, skip bool) (domain.GateDecision, error) {
	g.skips = append(g.skips, skip)
	return g.Prompter.Decide(ctx, c, a, skip)
}

func newStubContainer(t *testing.T, answer string, exec *exitingExecutor) *app.Container {
	t.Helper()
	return newStubContainerWith(t, strings.NewReader(answer), &fixedProvider{text: "```bash\nls -la\n```"}, exec)
}

func newStubContainerWith(t *testing.T, in io.Reader, provider *fixedProvider, exec *exitingExecutor) *app.Container {
	t.Helper()
	color.NoColor = true
	guardrail, err := security.NewGuardrail("")
	require.NoError(t, err)

	cfg := domain.Config{
		Preferences: domain.Preferences{DefaultProvider: "stub", MaxAttempts: 1},
		Providers:   []domain.ProviderConfig{{Name: "stub", Kind: domain.ProviderKindOllama}},
	}
	return &app.Container{
		Config: cfg,
		QueryService: &query.Service{
			Config:           cfg,
			ContextCollector: emptyContext{},
			Credentials:      noCredentials{},
			ProviderFactory:  fixedFactory{provider: provider},
			Extractor:        extractor.NewWithLookup(func(string) bool { return true }),
			Classifier:       guardrail,
			Gate:             NewPrompter(in, io.Discard).WithInteractive(func() bool { return true }),
			Executor:         exec,
			Logger:           logger.NewWriter(io.Discard, false),
		},
	}
}

func TestRunQueryExitCodes(t *testing.T) {
	req := domain.QueryRequest{Query: "list files", RunID: "test"}

	t.Run("success", func(t *testing.T) {
		exec := &exitingExecutor{}
		err := runQuery(context.Background(), io.Discard, newStubContainer(t, "\n", exec), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"ls -la"}, exec.ran)
	})

	t.Run("child failure propagates its status", func(t *testing.T) {
		exec := &exitingExecutor{code: 3}
		err := runQuery(context.Background(), io.Discard, newStubContainer(t, "\n", exec), req)
		require.Error(t, err)
		assert.Equal(t, 3, ExitCodeFor(err))
	})

	t.Run("decline exits zero", func(t *testing.T) {
		exec := &exitingExecutor{}
		var errOut bytes.Buffer
		err := runQuery(context.Background(), &errOut, newStubContainer(t, "n\n", exec), req)
		require.NoError(t, err)
		assert.Empty(t, exec.ran)
		assert.Contains(t, errOut.String(), "nothing was executed")
	})

	t.Run("config error", func(t *testing.T) {
		container := &app.Container{ConfigErr: errors.New("configuration /tmp/q.yaml: at least one provider must be configured")}
		err := runQuery(context.Background(), io.Discard, container, req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "q config edit")
		assert.Equal(t, domain.ExitInternalError, ExitCodeFor(err))
	})
}

func TestRootCommandWithoutQueryShowsHelp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	root, err := NewRootCmd(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(nil)

	err = root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ExitInternalError, ExitCodeFor(err))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRootCommandConfigPathFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	root, err := NewRootCmd(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config-path"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Equal(t, path+"\n", out.String())
	assert.DirExists(t, filepath.Dir(path))
}

func TestRootCommandJoinsQueryWords(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want domain.Query
	}{
		{name: "separate words", args: []string{"find", "big", "files"}, want: "find big files"},
		{name: "quoted", args: []string{"find big files"}, want: "find big files"},
		{name: "hyphenated words", args: []string{"explain", "what", "ls", "-la", "does"}, want: "explain what ls -la does"},
		{name: "flag after first word", args: []string{"list", "files", "--yes"}, want: "list files --yes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fixedProvider{text: "```bash\nls -la\n```"}
			exec := &exitingExecutor{}
			root := newRootCmd(newStubContainerWith(t, strings.NewReader("n\n"), provider, exec))
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tt.args)

			require.NoError(t, root.ExecuteContext(context.Background()))
			assert.Equal(t, []domain.Query{tt.want}, provider.queries)
			assert.Empty(t, exec.ran, "declined at the prompt")
		})
	}
}

func TestRootCommandYesSkipsPrompt(t *testing.T) {
	for _, flag := range []string{"-y", "--yes"} {
		t.Run(flag, func(t *testing.T) {
			answer := strings.NewReader("n\n")
			provider := &fixedProvider{text: "```bash\nls -la\n```"}
			exec := &exitingExecutor{}
			container := newStubContainerWith(t, answer, provider, exec)
			var prompt bytes.Buffer
			gate := &recordingGate{Prompter: NewPrompter(answer, &prompt).WithInteractive(func() bool { return true })}
			container.QueryService.Gate = gate

			root := newRootCmd(container)
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs([]string{flag, "list", "files"})

			require.NoError(t, root.ExecuteContext(context.Background()))
			assert.Equal(t, []bool{true}, gate.skips)
			assert.Equal(t, []string{"ls -la"}, exec.ran)
			assert.Equal(t, 2, answer.Len(), "the answer was never read")
			assert.NotContains(t, prompt.String(), "[Y/n]")
			assert.Contains(t, prompt.String(), "ls -la")
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 0, ExitCodeFor(nil))
	assert.Equal(t, 2, ExitCodeFor(&ExitError{Code: 2}))
	assert.Equal(t, domain.ExitInternalError, ExitCodeFor(errors.New("boom")))
	assert.Equal(t, domain.ExitInternalError, ExitCodeFor(&domain.StageError{Stage: domain.StageQuerying, Err: errors.New("x")}))
}

func TestRenderError(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	RenderError(&out, &ExitError{Code: 4})
	assert.Empty(t, out.String(), "a bare exit status prints nothing")

	out.Reset()
	RenderError(&out, &domain.StageError{
		Stage: domain.StageExtracting,
		Err:   &domain.AmbiguousCommandsError{Candidates: []string{"ls -la", "ls -lah"}},
	})
	text := out.String()
	assert.Contains(t, text, "Error: AI response contained 2 possible commands")
	assert.Contains(t, text, "  ls -la\n")
	assert.Contains(t, text, "  ls -lah\n")
}

func TestClipboardToolSelection(t *testing.T) {
	available := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	tests := []struct {
		goos  string
		tools []string
		want  []string
	}{
		{"darwin", []string{"pbcopy"}, []string{"pbcopy"}},
		{"windows", []string{"clip"}, []string{"clip"}},
		{"linux", []string{"xclip", "wl-copy"}, []string{"wl-copy"}},
		{"linux", []string{"xclip"}, []string{"xclip", "-selection", "clipboard"}},
		{"linux", []string{"xsel"}, []string{"xsel", "--clipboard", "--input"}},
		{"linux", nil, nil},
	}
	for _, tt := range tests {
		c := &Clipboard{goos: tt.goos, lookPath: available(tt.tools...)}
		argv, err := c.tool()
		if tt.want == nil {
			assert.Error(t, err)
			assert.False(t, c.Enabled())
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, argv)
		assert.True(t, c.Enabled())
	}
}
