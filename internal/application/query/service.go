// Package query implements the pipeline orchestrator: one natural-language
// query in, at most one command executed.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/ports"
)

// Service orchestrates the query lifecycle end-to-end.
type Service struct {
	Config           domain.Config
	ContextCollector ports.ContextCollector
	Credentials      ports.CredentialStore
	ProviderFactory  ports.ProviderFactory
	Extractor        ports.CommandExtractor
	Classifier       ports.RiskClassifier
	Gate             ports.ConfirmationGate
	Executor         ports.CommandExecutor
	Logger           ports.Logger

	// Optional.
	Clipboard     ports.Clipboard
	Progress      ports.Progress
	RetryInterval time.Duration
}

func (s *Service) validate() error {
	if s.ContextCollector == nil || s.Credentials == nil || s.ProviderFactory == nil ||
		s.Extractor == nil || s.Classifier == nil || s.Gate == nil || s.Executor == nil || s.Logger == nil {
		return errors.New("query.Service dependencies not satisfied")
	}
	return nil
}

// Run processes a single natural-language query. The returned error, when
// non-nil, is a *domain.StageError naming the stage that failed; the result
// is filled in up to that point either way.
func (s *Service) Run(ctx context.Context, req domain.QueryRequest) (domain.RunResult, error) {
	if err := s.validate(); err != nil {
		return domain.RunResult{RunID: req.RunID, Final: domain.StagePending}, err
	}

	r := &run{
		result: domain.RunResult{
			RunID: req.RunID,
			Trail: []domain.Stage{domain.StagePending},
			Final: domain.StagePending,
		},
		skip: req.SkipConfirmation || s.Config.Execution.AutoConfirm,
		log:  s.Logger.With(map[string]interface{}{"run_id": req.RunID}),
	}

	if err := s.execute(ctx, req, r); err != nil {
		return r.result, err
	}
	return r.result, nil
}

func (s *Service) execute(ctx context.Context, req domain.QueryRequest, r *run) error {
	if err := r.advance(domain.StageQuerying); err != nil {
		return err
	}
	if req.Query.IsEmpty() {
		return r.fail(errors.New("query is empty"))
	}

	raw, err := s.query(ctx, req, r)
	if err != nil {
		return r.fail(err)
	}
	r.result.Raw = raw

	if err := r.advance(domain.StageExtracting); err != nil {
		return err
	}
	candidate, err := s.Extractor.Extract(raw)
	if err != nil {
		return r.fail(err)
	}
	r.result.Candidate = candidate
	r.log.Debug("command extracted", map[string]interface{}{
		"command":      candidate.Command,
		"placeholders": len(candidate.Placeholders),
	})

	if err := r.advance(domain.StageClassifying); err != nil {
		return err
	}
	assessment := s.Classifier.Classify(candidate)
	r.result.Assessment = assessment
	r.log.Debug("command classified", map[string]interface{}{
		"level": assessment.Level.String(),
		"rules": assessment.Rules,
	})

	s.copyToClipboard(candidate, r)

	// Filling placeholders needs the user even when confirmation is waived.
	if !r.skip || candidate.HasPlaceholders() {
		if err := r.advance(domain.StageConfirming); err != nil {
			return err
		}
	}

	if r.skip && candidate.HasPlaceholders() {
		return r.fail(fmt.Errorf("%w: %v (run without --yes to fill them in)", domain.ErrUnresolvedPlaceholders, candidate.Placeholders))
	}

	decision, err := s.Gate.Decide(ctx, candidate, assessment, r.skip)
	r.result.Decision = decision
	if err != nil {
		return r.fail(err)
	}
	if decision != domain.Proceed {
		return r.decline("declined at confirmation")
	}

	if candidate.HasPlaceholders() {
		filled, proceed, err := s.fillPlaceholders(ctx, candidate, assessment, r)
		if err != nil {
			return r.fail(err)
		}
		if !proceed {
			return r.decline("declined after filling placeholders")
		}
		candidate = filled
	}

	if err := r.advance(domain.StageExecuting); err != nil {
		return err
	}
	outcome, err := s.Executor.Run(ctx, candidate)
	r.result.Outcome = outcome
	if err != nil {
		return r.fail(err)
	}
	r.log.Debug("command finished", map[string]interface{}{"exit_code": outcome.ExitCode})

	return r.advance(domain.StageDone)
}

// query selects the provider and submits the request with bounded retries.
func (s *Service) query(ctx context.Context, req domain.QueryRequest, r *run) (domain.RawResponse, error) {
	providerCfg, err := s.Config.SelectProvider(req.ProviderOverride)
	if err != nil {
		return domain.RawResponse{}, err
	}

	cred, err := s.Credentials.Resolve(providerCfg)
	if err != nil {
		return domain.RawResponse{}, err
	}

	provider, err := s.ProviderFactory.ForProvider(providerCfg, cred)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("provider init: %w", err)
	}

	sysCtx, err := s.ContextCollector.Collect(ctx, s.Config)
	if err != nil {
		// context only biases the answer; carry on without it
		r.log.Warn("context collection failed", map[string]interface{}{"error": err.Error()})
		sysCtx = domain.SystemContext{}
	}

	r.log.Info("calling provider", map[string]interface{}{
		"provider":    provider.Name(),
		"model":       providerCfg.ModelID,
		"credential":  cred.Source,
		"maxAttempts": s.Config.ProviderMaxAttempts(),
	})

	if s.Progress != nil {
		s.Progress.Start(fmt.Sprintf("Asking %s...", provider.Name()))
		defer s.Progress.Stop()
	}

	return s.submitWithRetry(ctx, provider, domain.ProviderRequest{Query: req.Query, Context: sysCtx}, r.log)
}

func (s *Service) submitWithRetry(ctx context.Context, provider ports.Provider, req domain.ProviderRequest, log ports.Logger) (domain.RawResponse, error) {
	var (
		raw     domain.RawResponse
		attempt int
	)

	operation := func() error {
		attempt++
		resp, err := provider.Submit(ctx, req)
		if err == nil {
			raw = resp
			return nil
		}
		perr := asProviderError(provider.Name(), err)
		if !perr.Retryable() || ctx.Err() != nil {
			return backoff.Permanent(perr)
		}
		return perr
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("provider attempt failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
			"wait":    wait.String(),
		})
	}

	maxRetries := uint64(s.Config.ProviderMaxAttempts() - 1)
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		// an interrupt while waiting between attempts surfaces as the bare context error
		return domain.RawResponse{}, asProviderError(provider.Name(), err)
	}
	return raw, nil
}

func (s *Service) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = domain.DefaultRetryInterval
	if s.RetryInterval > 0 {
		b.InitialInterval = s.RetryInterval
	}
	b.MaxElapsedTime = 0
	return b
}

func asProviderError(name string, err error) *domain.ProviderError {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return domain.NewProviderError(domain.NetworkError, name, err)
}

// fillPlaceholders asks for {{NAME}} values and re-checks the result. A
// command that only becomes destructive once filled in is confirmed again.
func (s *Service) fillPlaceholders(ctx context.Context, candidate domain.CommandCandidate, approved domain.RiskAssessment, r *run) (domain.CommandCandidate, bool, error) {
	values, err := s.Gate.Fill(ctx, candidate.Placeholders)
	if errors.Is(err, domain.ErrAborted) {
		return candidate, false, nil
	}
	if err != nil {
		return candidate, false, err
	}

	command, err := domain.SubstitutePlaceholders(candidate.Command, values)
	if err != nil {
		return candidate, false, err
	}
	candidate.Command = command
	candidate.Placeholders = nil
	r.result.Candidate = candidate

	reassessed := s.Classifier.Classify(candidate)
	r.result.Assessment = reassessed
	if reassessed.Level != domain.RiskDestructive || !reassessed.Level.MoreSevere(approved.Level) {
		s.Gate.Announce(candidate)
		return candidate, true, nil
	}

	r.log.Info("risk escalated after placeholder substitution", map[string]interface{}{
		"from": approved.Level.String(),
		"to":   reassessed.Level.String(),
	})
	decision, err := s.Gate.Decide(ctx, candidate, reassessed, false)
	r.result.Decision = decision
	if err != nil {
		return candidate, false, err
	}
	return candidate, decision == domain.Proceed, nil
}

func (s *Service) copyToClipboard(candidate domain.CommandCandidate, r *run) {
	if !s.Config.Execution.CopyToClipboard || s.Clipboard == nil || !s.Clipboard.Enabled() {
		return
	}
	if err := s.Clipboard.Copy(candidate.Command); err != nil {
		r.log.Warn("clipboard copy failed", map[string]interface{}{"error": err.Error()})
	}
}

// run tracks one pass through the stages.
type run struct {
	result domain.RunResult
	skip   bool
	log    ports.Logger
}

func (r *run) advance(next domain.Stage) error {
	current := r.result.Final
	if !current.CanTransition(next, r.skip) {
		return r.fail(fmt.Errorf("invalid stage transition %s -> %s", current, next))
	}
	r.result.Trail = append(r.result.Trail, next)
	r.result.Final = next
	r.log.Debug("stage", map[string]interface{}{"stage": next.String()})
	return nil
}

func (r *run) fail(err error) error {
	stage := r.result.Final
	r.result.FailedStage = stage
	r.result.Final = domain.StageFailed
	r.result.Trail = append(r.result.Trail, domain.StageFailed)
	r.log.Error("stage failed", err, map[string]interface{}{"stage": stage.String()})
	return &domain.StageError{Stage: stage, Err: err}
}

func (r *run) decline(reason string) error {
	r.result.Declined = true
	r.log.Info(reason, nil)
	return r.advance(domain.StageDone)
}
