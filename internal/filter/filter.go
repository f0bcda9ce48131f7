// Package filter implements the hard-filter stage: an ordered list of named
// boolean rules evaluated over a posting's text and metadata. Hard rules fail
// the verdict with a reject reason; penalty rules subtract from the posting's
// rule score without failing it.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"jobhunter/internal/posting"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Standard reject reason codes. Rule configs may use their own codes as well;
// these are the ones the stock rule tables emit.
const (
	ReasonLanguageRequired   = "language_required"
	ReasonSeniorityTooHigh   = "seniority_too_high"
	ReasonNoSponsorship      = "no_sponsorship"
	ReasonLocationInfeasible = "location_infeasible"
	ReasonRoleMismatch       = "role_mismatch"
)

// Verdict is the fully diagnostic outcome of running every rule against a
// posting. Reject reasons accumulate: a hard rule clears Passed but never
// stops sibling rules from populating reasons, warnings and penalties.
type Verdict struct {
	Passed        bool     `json:"passed"`
	RejectReasons []string `json:"reject_reasons,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Penalty       float64  `json:"penalty,omitempty"`
}

// Config is the rule table for the engine. Rules run in declaration order.
type Config struct {
	Rules []RuleConfig `mapstructure:"rules" validate:"required,min=1,dive"`
}

// RuleConfig describes one named rule. Hard rules reject with Reason; soft
// rules add Penalty and record Reason as a warning. Patterns are
// case-insensitive regular expressions matched against title+description;
// Exceptions are substrings that suppress the rule when present.
type RuleConfig struct {
	Name       string   `mapstructure:"name" validate:"required"`
	Reason     string   `mapstructure:"reason"`
	Hard       bool     `mapstructure:"hard"`
	Penalty    float64  `mapstructure:"penalty"`
	Patterns   []string `mapstructure:"patterns" validate:"required,min=1"`
	Exceptions []string `mapstructure:"exceptions"`
}

type rule struct {
	name       string
	reason     string
	hard       bool
	penalty    float64
	patterns   []*regexp.Regexp
	exceptions []string
}

// Engine evaluates the configured rules. Same posting and same rule set
// always yield the same verdict.
type Engine struct {
	rules  []rule
	logger *zap.Logger
}

// New compiles the rule table. A pattern that does not compile is a fatal
// configuration error, not a runtime fallback.
func New(cfg *Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filter configuration is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid filter configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rules := make([]rule, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		r := rule{
			name:    rc.Name,
			reason:  strings.TrimSpace(rc.Reason),
			hard:    rc.Hard,
			penalty: rc.Penalty,
		}
		if r.reason == "" {
			r.reason = rc.Name
		}

		for _, pattern := range rc.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %q: compiling pattern %q: %w", rc.Name, pattern, err)
			}
			r.patterns = append(r.patterns, re)
		}

		for _, exception := range rc.Exceptions {
			r.exceptions = append(r.exceptions, strings.ToLower(exception))
		}

		rules = append(rules, r)
	}

	return &Engine{rules: rules, logger: logger}, nil
}

// Evaluate runs every rule against the posting. Nothing short-circuits: the
// verdict is a complete audit of every rule that fired.
func (e *Engine) Evaluate(p *posting.Posting) Verdict {
	text := strings.ToLower(p.Title + " " + p.Description)
	verdict := Verdict{Passed: true}

	for _, r := range e.rules {
		if r.excepted(text) {
			continue
		}
		if !r.matches(text) {
			continue
		}

		if r.hard {
			verdict.Passed = false
			verdict.RejectReasons = appendCode(verdict.RejectReasons, r.reason)
			e.logger.Debug("hard filter rule fired",
				zap.String("posting_id", p.ID),
				zap.String("rule", r.name),
				zap.String("reason", r.reason),
			)
			continue
		}

		verdict.Penalty += r.penalty
		verdict.Warnings = appendCode(verdict.Warnings, r.reason)
		e.logger.Debug("penalty filter rule fired",
			zap.String("posting_id", p.ID),
			zap.String("rule", r.name),
			zap.Float64("penalty", r.penalty),
		)
	}

	return verdict
}

func (r *rule) matches(text string) bool {
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (r *rule) excepted(text string) bool {
	for _, exception := range r.exceptions {
		if exception != "" && strings.Contains(text, exception) {
			return true
		}
	}
	return false
}

// appendCode keeps reason lists behaving as ordered sets.
func appendCode(codes []string, code string) []string {
	for _, existing := range codes {
		if existing == code {
			return codes
		}
	}
	return append(codes, code)
}
