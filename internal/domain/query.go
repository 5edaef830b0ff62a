package domain

import "strings"

// Query is the user-supplied text. It is trimmed and otherwise left untouched.
type Query string

// NewQuery joins CLI tokens with spaces, so `q find big files` and
// `q "find big files"` produce the same query.
func NewQuery(tokens []string) Query {
	return Query(strings.TrimSpace(strings.Join(tokens, " ")))
}

func (q Query) String() string {
	return string(q)
}

// IsEmpty reports whether there is anything to send.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(string(q)) == ""
}

// QueryRequest captures one invocation of the pipeline.
type QueryRequest struct {
	Query            Query
	ProviderOverride string
	SkipConfirmation bool
	RunID            string
}

// ProviderRequest is what a Provider Client sends upstream: the query plus
// optional context used to bias the command syntax.
type ProviderRequest struct {
	Query   Query
	Context SystemContext
}

// RawResponse is the unstructured text a provider returned.
type RawResponse struct {
	Text     string
	Provider string
	Model    string
}

// CommandCandidate is a command extracted from a provider response. Command is
// never empty and carries no commentary or fence markers.
type CommandCandidate struct {
	Command      string
	Explanation  string
	Warning      string
	Placeholders []string
}

// HasPlaceholders reports whether the command still needs {{NAME}} values.
func (c CommandCandidate) HasPlaceholders() bool {
	return len(c.Placeholders) > 0
}

// ExecutionOutcome describes what happened to the approved command.
type ExecutionOutcome struct {
	Launched bool
	ExitCode int
}

// Succeeded reports a launched command that exited 0.
func (o ExecutionOutcome) Succeeded() bool {
	return o.Launched && o.ExitCode == 0
}

// RunResult is everything a single pipeline run produced, in stage order.
type RunResult struct {
	RunID       string
	Trail       []Stage
	Final       Stage
	Raw         RawResponse
	Candidate   CommandCandidate
	Assessment  RiskAssessment
	Decision    GateDecision
	Outcome     ExecutionOutcome
	Declined    bool
	FailedStage Stage
}

// ExitCode maps the terminal state of a run to the process exit code.
func (r RunResult) ExitCode(err error) int {
	if err != nil {
		return ExitInternalError
	}
	if r.Declined || !r.Outcome.Launched {
		return ExitOK
	}
	return r.Outcome.ExitCode
}
