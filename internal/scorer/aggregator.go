// Package scorer merges the rule-derived score with an optional external
// score into the single final score used for ranking and review decisions.
package scorer

import (
	"context"
	"time"

	"jobhunter/internal/ai"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/posting"
	"jobhunter/internal/utils"

	"go.uber.org/zap"
)

// Config tunes the rule score and the external-scorer gate.
type Config struct {
	// BaseScore is the starting point every passing posting gets before
	// classification and penalties move it.
	BaseScore float64 `mapstructure:"base-score"`
	// KeywordWeight scales the winning role's classification score into the
	// 0-10 range.
	KeywordWeight float64 `mapstructure:"keyword-weight"`
	// MinRuleScoreForAI gates external scoring: postings below it never
	// trigger an external call.
	MinRuleScoreForAI float64 `mapstructure:"min-rule-score-for-ai"`
	// TokenBudget bounds external-scorer spend per batch. Zero disables the
	// budget.
	TokenBudget int `mapstructure:"token-budget"`
	// RequestDelay is the mandatory pause between external calls.
	RequestDelay time.Duration `mapstructure:"request-delay"`
}

const (
	defaultBaseScore     = 5.0
	defaultKeywordWeight = 1.0
	minRuleScore         = 0.0
	maxRuleScore         = 10.0
)

// Outcome says what happened to a posting at the external-scoring step.
type Outcome int

const (
	// OutcomeScored: an ExternalScore was produced.
	OutcomeScored Outcome = iota
	// OutcomeIneligible: the rule score is below the gate, or no scorer is
	// configured.
	OutcomeIneligible
	// OutcomeBudgetExhausted: the batch token budget ran out; a planned soft
	// stop, not an error.
	OutcomeBudgetExhausted
	// OutcomeFailed: the call errored or its response did not parse; the
	// posting is left without an ExternalScore and the batch continues.
	OutcomeFailed
)

// Aggregator computes rule scores and coordinates external scoring for one
// batch, tracking the running token spend. Not safe for concurrent use; the
// pipeline is single-threaded by design.
type Aggregator struct {
	cfg    Config
	scorer ai.Scorer
	logger *zap.Logger

	usedTokens int
	called     bool
}

// New creates an Aggregator. scorer may be nil, in which case every posting
// is ineligible for external scoring.
func New(cfg Config, scorer ai.Scorer, logger *zap.Logger) *Aggregator {
	if cfg.BaseScore == 0 {
		cfg.BaseScore = defaultBaseScore
	}
	if cfg.KeywordWeight == 0 {
		cfg.KeywordWeight = defaultKeywordWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{cfg: cfg, scorer: scorer, logger: logger}
}

// RuleScore derives the 0-10 rule score: base plus the winning role's
// weighted classification score, minus the hard-filter penalty, clamped.
func (a *Aggregator) RuleScore(result *classifier.Result, verdict filter.Verdict) float64 {
	score := a.cfg.BaseScore
	if result != nil {
		score += result.Scores[result.Role] * a.cfg.KeywordWeight
	}
	score -= verdict.Penalty

	if score < minRuleScore {
		return minRuleScore
	}
	if score > maxRuleScore {
		return maxRuleScore
	}
	return score
}

// Augment runs the external scorer for one posting when the gate and the
// budget allow it. A failed call logs and returns OutcomeFailed; it never
// aborts the batch.
func (a *Aggregator) Augment(ctx context.Context, p *posting.Posting, ruleScore float64) (*ai.ExternalScore, Outcome) {
	if a.scorer == nil || ruleScore < a.cfg.MinRuleScoreForAI {
		return nil, OutcomeIneligible
	}

	if a.BudgetExhausted() {
		a.logger.Info("token budget exhausted, skipping external scoring",
			zap.String("posting_id", p.ID),
			zap.Int("used_tokens", a.usedTokens),
			zap.Int("token_budget", a.cfg.TokenBudget),
		)
		return nil, OutcomeBudgetExhausted
	}

	// Rate limiting between calls, not concurrency control.
	if a.called {
		if err := utils.WaitFor(ctx, a.cfg.RequestDelay); err != nil {
			return nil, OutcomeFailed
		}
	}
	a.called = true

	score, err := a.scorer.Score(ctx, p)
	if err != nil {
		a.logger.Warn("external scoring failed",
			zap.String("posting_id", p.ID),
			zap.Error(err),
		)
		return nil, OutcomeFailed
	}

	a.usedTokens += score.CostUnits

	a.logger.Info("external score received",
		zap.String("posting_id", p.ID),
		zap.Float64("overall_score", score.OverallScore),
		zap.String("recommendation", string(score.Recommendation)),
		zap.Int("cost_units", score.CostUnits),
	)

	return score, OutcomeScored
}

// FinalScore is the external overall score when present; the external scorer
// is assumed better-informed once invoked. The rule score stays on record
// for audit either way.
func FinalScore(ruleScore float64, external *ai.ExternalScore) float64 {
	if external != nil {
		return external.OverallScore
	}
	return ruleScore
}

// TokensUsed reports the running external-scorer spend for the batch.
func (a *Aggregator) TokensUsed() int {
	return a.usedTokens
}

// BudgetExhausted reports whether the batch token budget has been reached.
func (a *Aggregator) BudgetExhausted() bool {
	return a.cfg.TokenBudget > 0 && a.usedTokens >= a.cfg.TokenBudget
}
