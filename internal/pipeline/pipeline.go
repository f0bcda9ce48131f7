// Package pipeline runs one batch end to end: fetch, deduplicate, filter,
// classify, score and track every posting, committing state as it goes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/posting"
	"jobhunter/internal/scorer"
	"jobhunter/internal/source"
	"jobhunter/internal/tracker"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Summary is the outcome of one batch run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Total         int           `json:"total"`
	New           int           `json:"new"`
	Duplicates    int           `json:"duplicates"`
	Malformed     int           `json:"malformed"`
	FilteredOut   int           `json:"filtered_out"`
	Scored        int           `json:"scored"`
	ReviewQueued  int           `json:"review_queued"`
	AIScored      int           `json:"ai_scored"`
	AIFailed      int           `json:"ai_failed"`
	AISkipped     int           `json:"ai_skipped"`
	BudgetStopped bool          `json:"budget_stopped"`
	TokensUsed    int           `json:"tokens_used"`
	Elapsed       time.Duration `json:"elapsed"`
}

// Pipeline wires the stages together. Postings are processed one at a time,
// in source order; the store is committed after every posting so an
// interrupted run loses at most the posting in flight.
type Pipeline struct {
	source     source.Source
	engine     *filter.Engine
	classifier *classifier.Classifier
	aggregator *scorer.Aggregator
	store      *tracker.Store
	logger     *zap.Logger
}

func New(src source.Source, engine *filter.Engine, cls *classifier.Classifier, agg *scorer.Aggregator, store *tracker.Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		source:     src,
		engine:     engine,
		classifier: cls,
		aggregator: agg,
		store:      store,
		logger:     logger,
	}
}

// Run processes every posting the source yields. Per-posting failures are
// counted and logged, never fatal; the run stops early only on context
// cancellation.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}

	logger := p.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("batch run starting", zap.String("source", p.source.Name()))

	raws, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch postings from %s: %w", p.source.Name(), err)
	}
	summary.Total = len(raws)

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}

		if err := p.processOne(ctx, raw, summary, logger); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, err
		}
	}

	summary.TokensUsed = p.aggregator.TokensUsed()
	summary.BudgetStopped = p.aggregator.BudgetExhausted()
	summary.Elapsed = time.Since(start)

	logger.Info("batch run finished",
		zap.Int("total", summary.Total),
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("malformed", summary.Malformed),
		zap.Int("filtered_out", summary.FilteredOut),
		zap.Int("scored", summary.Scored),
		zap.Int("review_queued", summary.ReviewQueued),
		zap.Int("ai_scored", summary.AIScored),
		zap.Int("tokens_used", summary.TokensUsed),
		zap.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

func (p *Pipeline) processOne(ctx context.Context, raw posting.Raw, summary *Summary, logger *zap.Logger) error {
	job, fresh, err := p.store.Ingest(raw)
	if err != nil {
		var malformed *posting.MalformedPostingError
		if errors.As(err, &malformed) {
			summary.Malformed++
			logger.Warn("malformed posting skipped",
				zap.String("title", raw.Title),
				zap.String("company", raw.Company),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	if !fresh {
		summary.Duplicates++
		return nil
	}
	summary.New++

	verdict := p.engine.Evaluate(&job.Posting)
	job.Verdict = &verdict

	result := p.classifier.Classify(&job.Posting)
	job.Classification = result
	if ce := logger.Check(zap.DebugLevel, "classification report"); ce != nil {
		ce.Write(zap.String("posting_id", job.ID()), zap.String("report", p.classifier.Explain(result)))
	}

	job.RuleScore = p.aggregator.RuleScore(result, verdict)
	job.FinalScore = job.RuleScore

	if !verdict.Passed {
		summary.FilteredOut++
		logger.Debug("posting filtered out",
			zap.String("posting_id", job.ID()),
			zap.Strings("reject_reasons", verdict.RejectReasons),
		)
		if err := p.store.Transition(job.ID(), tracker.StatusFilteredOut); err != nil {
			return err
		}
		return p.store.Commit()
	}

	if err := p.store.Transition(job.ID(), tracker.StatusScored); err != nil {
		return err
	}
	summary.Scored++

	external, outcome := p.aggregator.Augment(ctx, &job.Posting, job.RuleScore)
	switch outcome {
	case scorer.OutcomeScored:
		summary.AIScored++
		job.External = external
	case scorer.OutcomeFailed:
		summary.AIFailed++
	case scorer.OutcomeIneligible, scorer.OutcomeBudgetExhausted:
		summary.AISkipped++
	}
	job.FinalScore = scorer.FinalScore(job.RuleScore, external)

	if job.FinalScore >= p.store.ReviewThreshold() {
		if err := p.store.Transition(job.ID(), tracker.StatusResumePending); err != nil {
			return err
		}
		summary.ReviewQueued++
	}

	logger.Debug("posting processed",
		zap.String("posting_id", job.ID()),
		zap.String("role", result.Role),
		zap.Float64("rule_score", job.RuleScore),
		zap.Float64("final_score", job.FinalScore),
		zap.String("status", string(job.Status)),
	)

	return p.store.Commit()
}
