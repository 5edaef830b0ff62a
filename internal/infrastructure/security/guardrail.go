package security

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/q/assets"
	"github.com/doeshing/q/internal/domain"
	"github.com/doeshing/q/internal/pkg/filesystem"
	"github.com/doeshing/q/internal/ports"
)

// Guardrail implements the RiskClassifier port with a data-driven rule table.
type Guardrail struct {
	rules []compiledRule
}

// Rule is one entry of the YAML rule table. Every criterion that is set must
// match for the rule to apply.
type Rule struct {
	ID          string           `yaml:"id"`
	Level       domain.RiskLevel `yaml:"level"`
	Message     string           `yaml:"message"`
	Commands    []string         `yaml:"commands,omitempty"`
	Subcommands []string         `yaml:"subcommands,omitempty"`
	FlagsAll    []string         `yaml:"flags_all,omitempty"`
	FlagsAny    []string         `yaml:"flags_any,omitempty"`
	Args        []string         `yaml:"args,omitempty"`
	Redirects   []string         `yaml:"redirects,omitempty"`
	Elevated    bool             `yaml:"elevated,omitempty"`
	NoArgs      bool             `yaml:"no_args,omitempty"`
	Pattern     string           `yaml:"pattern,omitempty"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	Rule
	args      []*regexp.Regexp
	redirects []*regexp.Regexp
	pattern   *regexp.Regexp
}

// NewGuardrail loads the embedded rule table and appends the rules from
// extraRulesPath when it is set.
func NewGuardrail(extraRulesPath string) (*Guardrail, error) {
	rules, err := parseRules(assets.DefaultRulesYAML)
	if err != nil {
		return nil, fmt.Errorf("default rules: %w", err)
	}
	if extraRulesPath != "" {
		data, err := os.ReadFile(expandPath(extraRulesPath))
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		extra, err := parseRules(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", extraRulesPath, err)
		}
		rules = append(rules, extra...)
	}
	return NewGuardrailFromRules(rules)
}

// NewGuardrailFromRules compiles an explicit rule table.
func NewGuardrailFromRules(rules []Rule) (*Guardrail, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		cr, err := compileRule(rule)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.ID, err)
		}
		compiled = append(compiled, cr)
	}
	return &Guardrail{rules: compiled}, nil
}

// Classify implements ports.RiskClassifier. The most severe matching rule
// sets the level; no match is Safe.
func (g *Guardrail) Classify(candidate domain.CommandCandidate) domain.RiskAssessment {
	assessment := domain.RiskAssessment{Level: domain.RiskSafe}
	if g == nil {
		return assessment
	}
	parsed := parseCommand(candidate.Command)
	seen := map[string]bool{}
	for _, rule := range g.rules {
		if !rule.matches(parsed) {
			continue
		}
		if rule.Level.MoreSevere(assessment.Level) {
			assessment.Level = rule.Level
		}
		assessment.Rules = append(assessment.Rules, rule.ID)
		if !seen[rule.Message] {
			seen[rule.Message] = true
			assessment.Reasons = append(assessment.Reasons, rule.Message)
		}
	}
	return assessment
}

// RuleCount reports how many rules are loaded.
func (g *Guardrail) RuleCount() int {
	return len(g.rules)
}

func parseRules(data []byte) ([]Rule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Rules, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	cr := compiledRule{Rule: rule}
	if rule.ID == "" {
		return cr, errors.New("id is required")
	}
	if rule.Level == domain.RiskSafe {
		return cr, errors.New("level must be caution or destructive")
	}
	var err error
	if cr.args, err = compileAll(rule.Args); err != nil {
		return cr, fmt.Errorf("args: %w", err)
	}
	if cr.redirects, err = compileAll(rule.Redirects); err != nil {
		return cr, fmt.Errorf("redirects: %w", err)
	}
	if rule.Pattern != "" {
		if cr.pattern, err = regexp.Compile(rule.Pattern); err != nil {
			return cr, fmt.Errorf("pattern: %w", err)
		}
	}
	for _, glob := range rule.Commands {
		if _, err := path.Match(glob, ""); err != nil {
			return cr, fmt.Errorf("commands: %q: %w", glob, err)
		}
	}
	if cr.pattern == nil && !cr.hasSegmentCriteria() {
		return cr, errors.New("rule has no criteria")
	}
	return cr, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func (r compiledRule) hasSegmentCriteria() bool {
	return len(r.Commands) > 0 || len(r.Subcommands) > 0 || len(r.FlagsAll) > 0 ||
		len(r.FlagsAny) > 0 || len(r.args) > 0 || len(r.redirects) > 0 || r.Elevated || r.NoArgs
}

func (r compiledRule) matches(parsed parsedCommand) bool {
	if r.pattern != nil && !r.pattern.MatchString(parsed.Raw) {
		return false
	}
	if !r.hasSegmentCriteria() {
		return r.pattern != nil
	}
	for _, seg := range parsed.Segments {
		if r.matchSegment(seg) {
			return true
		}
	}
	return false
}

func (r compiledRule) matchSegment(seg segment) bool {
	if len(r.Commands) > 0 && !matchesCommand(r.Commands, seg.Executable) {
		return false
	}
	if len(r.Subcommands) > 0 && !containsFold(r.Subcommands, seg.Subcommand) {
		return false
	}
	for _, group := range r.FlagsAll {
		if !hasAnyFlag(seg.Flags, strings.Split(group, "|")) {
			return false
		}
	}
	if len(r.FlagsAny) > 0 && !hasAnyFlag(seg.Flags, r.FlagsAny) {
		return false
	}
	if len(r.args) > 0 && !anyMatch(r.args, seg.Args) {
		return false
	}
	if len(r.redirects) > 0 && !anyMatch(r.redirects, seg.Redirects) {
		return false
	}
	if r.Elevated && !seg.Elevated {
		return false
	}
	if r.NoArgs && len(seg.Args) > 0 {
		return false
	}
	return true
}

func matchesCommand(globs []string, executable string) bool {
	if executable == "" {
		return false
	}
	for _, glob := range globs {
		if ok, _ := path.Match(glob, executable); ok {
			return true
		}
	}
	return false
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}

func hasAnyFlag(flags map[string]bool, names []string) bool {
	for _, name := range names {
		if flags[strings.TrimLeft(name, "-")] {
			return true
		}
	}
	return false
}

func anyMatch(patterns []*regexp.Regexp, values []string) bool {
	for _, value := range values {
		for _, re := range patterns {
			if re.MatchString(value) {
				return true
			}
		}
	}
	return false
}

func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), p[2:])
	}
	return p
}

var _ ports.RiskClassifier = (*Guardrail)(nil)
