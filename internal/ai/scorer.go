// Package ai defines the external-scorer contract: the request and response
// shapes exchanged with an analysis provider, and the tolerant decoding of
// its responses. Transport mechanics live in provider subpackages.
package ai

import (
	"context"
	"encoding/json"

	"jobhunter/internal/posting"
)

// Recommendation is the provider's verdict on whether to apply.
type Recommendation string

const (
	RecommendApply Recommendation = "APPLY"
	RecommendMaybe Recommendation = "MAYBE"
	RecommendSkip  Recommendation = "SKIP"
)

// ExternalScore is the structured result of one external scoring call.
// Produced at most once per posting unless explicitly regenerated.
type ExternalScore struct {
	OverallScore    float64            `json:"overall_score"`
	SubScores       map[string]float64 `json:"sub_scores,omitempty"`
	Recommendation  Recommendation     `json:"recommendation"`
	Reasoning       string             `json:"reasoning,omitempty"`
	TailoredContent json.RawMessage    `json:"tailored_content,omitempty"`
	ProviderModel   string             `json:"provider_model,omitempty"`
	CostUnits       int                `json:"cost_units"`
}

// CandidateProfile describes the candidate on whose behalf postings are
// scored. Loaded once from configuration.
type CandidateProfile struct {
	Name     string   `json:"name" mapstructure:"name"`
	Headline string   `json:"headline,omitempty" mapstructure:"headline"`
	Skills   []string `json:"skills,omitempty" mapstructure:"skills"`
	Bullets  []string `json:"bullets,omitempty" mapstructure:"bullets"`
}

// Scorer evaluates a posting against the candidate profile it was built
// with. Implementations must treat timeouts like any other failure: return
// an error and let the caller move on.
type Scorer interface {
	Score(ctx context.Context, p *posting.Posting) (*ExternalScore, error)
	Model() string
}
