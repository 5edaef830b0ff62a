package domain

// Stage is a state of the query pipeline. Stages run strictly in declaration
// order; Confirming is skipped only when confirmation is waived.
type Stage int

const (
	StagePending Stage = iota
	StageQuerying
	StageExtracting
	StageClassifying
	StageConfirming
	StageExecuting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageQuerying:
		return "querying"
	case StageExtracting:
		return "extracting"
	case StageClassifying:
		return "classifying"
	case StageConfirming:
		return "confirming"
	case StageExecuting:
		return "executing"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether next may directly follow s.
func (s Stage) CanTransition(next Stage, skipConfirmation bool) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return s != StagePending
	}
	switch {
	case s == StageClassifying && next == StageExecuting:
		return skipConfirmation
	case s == StageConfirming && next == StageDone:
		// user declined
		return true
	default:
		return next == s+1
	}
}
