package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"jobhunter/internal/ai"
	"jobhunter/internal/posting"
	"jobhunter/internal/utils"

	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200
	defaultCharBudget   = 4000
	defaultCallTimeout  = 2 * time.Minute
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, int, error)
	Model() string
}

// ScorerOptions tune prompt construction and call behavior.
type ScorerOptions struct {
	// CharBudget truncates the posting description and the reference
	// document before they enter the prompt.
	CharBudget int
	// Timeout bounds a single scoring call. A timeout is reported as an
	// error, identical to a parse failure from the caller's point of view.
	Timeout      time.Duration
	MaxLogLength int
}

// Scorer implements ai.Scorer on top of the Gemini generator.
type Scorer struct {
	generator contentGenerator
	profile   ai.CandidateProfile
	reference string
	opts      ScorerOptions
	logger    *zap.Logger
}

func NewScorer(generator contentGenerator, profile ai.CandidateProfile, reference string, opts ScorerOptions, logger *zap.Logger) *Scorer {
	if opts.CharBudget <= 0 {
		opts.CharBudget = defaultCharBudget
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCallTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		profile:   profile,
		reference: reference,
		opts:      opts,
		logger:    logger,
	}
}

// Score sends one posting to Gemini and decodes the structured result. Cost
// units are the total tokens the call consumed, as reported by the API.
func (s *Scorer) Score(ctx context.Context, p *posting.Posting) (*ai.ExternalScore, error) {
	if p == nil {
		return nil, fmt.Errorf("posting is required")
	}

	prompt, err := s.buildPrompt(p)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini scoring request",
		zap.String("posting_id", p.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.opts.MaxLogLength)),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, tokens, err := s.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini scoring response",
		zap.String("posting_id", p.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.opts.MaxLogLength)),
	)

	score, err := ai.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}

	score.ProviderModel = s.generator.Model()
	score.CostUnits = tokens

	return score, nil
}

func (s *Scorer) Model() string {
	return s.generator.Model()
}

func (s *Scorer) buildPrompt(p *posting.Posting) (string, error) {
	profileJSON, err := json.MarshalIndent(s.profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate profile: %w", err)
	}

	job := map[string]string{
		"title":       p.Title,
		"company":     p.Company,
		"location":    p.Location,
		"description": truncate(p.Description, s.opts.CharBudget),
	}
	jobJSON, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	reference := truncate(s.reference, s.opts.CharBudget)
	if strings.TrimSpace(reference) == "" {
		reference = "none"
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{JOB_JSON}}", string(jobJSON))
	prompt = strings.ReplaceAll(prompt, "{{REFERENCE}}", reference)

	return prompt, nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
