package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is a coarse classification of how dangerous a command is to run.
// The zero value is Safe.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskCaution
	RiskDestructive
)

func (l RiskLevel) String() string {
	switch l {
	case RiskSafe:
		return "Safe"
	case RiskCaution:
		return "Caution"
	case RiskDestructive:
		return "Destructive"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// MoreSevere reports whether l outranks other.
func (l RiskLevel) MoreSevere(other RiskLevel) bool {
	return l > other
}

// ParseRiskLevel accepts the names used in rule files.
func ParseRiskLevel(value string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "safe", "":
		return RiskSafe, nil
	case "caution":
		return RiskCaution, nil
	case "destructive":
		return RiskDestructive, nil
	default:
		return RiskSafe, fmt.Errorf("unknown risk level %q", value)
	}
}

// MarshalText encodes the level for YAML and JSON output.
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// UnmarshalText decodes the level from rule files.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RiskAssessment is the classifier's verdict together with what matched.
type RiskAssessment struct {
	Level   RiskLevel
	Reasons []string
	Rules   []string
}

// GateDecision is the confirmation gate's answer.
type GateDecision int

const (
	// Abort is the zero value so an unset decision never runs anything.
	Abort GateDecision = iota
	Proceed
)

func (d GateDecision) String() string {
	if d == Proceed {
		return "proceed"
	}
	return "abort"
}
