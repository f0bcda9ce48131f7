package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnparsableResponse is returned when no decoding strategy produces a
// structured score from the provider's response body.
var ErrUnparsableResponse = errors.New("external scorer response is not parsable")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// envelope mirrors the provider's documented response shape.
type envelope struct {
	Scoring struct {
		OverallScore    float64 `json:"overall_score"`
		SkillMatch      float64 `json:"skill_match"`
		ExperienceFit   float64 `json:"experience_fit"`
		GrowthPotential float64 `json:"growth_potential"`
		Recommendation  string  `json:"recommendation"`
		Reasoning       string  `json:"reasoning"`
	} `json:"scoring"`
	TailoredResume json.RawMessage `json:"tailored_resume"`
}

// DecodeResponse runs the ordered chain of decoding strategies over a raw
// response body: (1) the whole body as a structured document, (2) the slice
// between the first '{' and the last '}', (3) the contents of a fenced block.
// The first strategy that yields a valid document wins; if none do, the call
// counts as a parse failure.
func DecodeResponse(raw string) (*ExternalScore, error) {
	for _, extract := range []func(string) (string, bool){
		wholeBody,
		braceSlice,
		fenced,
	} {
		candidate, ok := extract(raw)
		if !ok {
			continue
		}

		var env envelope
		if err := json.Unmarshal([]byte(candidate), &env); err != nil {
			continue
		}

		return fromEnvelope(&env), nil
	}

	return nil, fmt.Errorf("%w: no decoder accepted the body", ErrUnparsableResponse)
}

func fromEnvelope(env *envelope) *ExternalScore {
	score := &ExternalScore{
		OverallScore: env.Scoring.OverallScore,
		SubScores: map[string]float64{
			"skill_match":      env.Scoring.SkillMatch,
			"experience_fit":   env.Scoring.ExperienceFit,
			"growth_potential": env.Scoring.GrowthPotential,
		},
		Recommendation:  parseRecommendation(env.Scoring.Recommendation),
		Reasoning:       strings.TrimSpace(env.Scoring.Reasoning),
		TailoredContent: env.TailoredResume,
	}
	return score
}

func parseRecommendation(raw string) Recommendation {
	switch Recommendation(strings.ToUpper(strings.TrimSpace(raw))) {
	case RecommendApply:
		return RecommendApply
	case RecommendMaybe:
		return RecommendMaybe
	default:
		return RecommendSkip
	}
}

func wholeBody(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func braceSlice(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func fenced(raw string) (string, bool) {
	match := fencedBlock.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}
	return match[1], true
}
