// Package classifier assigns a role category and confidence to a posting
// using weighted keyword scoring with override and exclusion rules.
package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"jobhunter/internal/posting"
)

// overrideScore saturates the winning role when an override rule fires.
const overrideScore = 100.0

// Result is the immutable outcome of classifying one posting. Classification
// is a pure function of the posting and the configured rule tables; repeated
// calls return identical results.
type Result struct {
	Role            string              `json:"role"`
	Confidence      float64             `json:"confidence"`
	Scores          map[string]float64  `json:"scores"`
	MatchedKeywords map[string][]string `json:"matched_keywords,omitempty"`
	AppliedRules    []string            `json:"applied_rules,omitempty"`
}

type roleTable struct {
	name     string
	keywords []string // sorted, so matched-keyword order is stable
	weights  map[string]float64
}

type titleOverride struct {
	pattern *regexp.Regexp
	raw     string
	role    string
}

type exclusion struct {
	pattern *regexp.Regexp
	raw     string
	roles   []string
	penalty float64
}

// Classifier holds compiled rule tables. Construct once at startup; it is
// immutable and safe for concurrent use.
type Classifier struct {
	roles            []roleTable
	companyOverrides map[string]string
	titleOverrides   []titleOverride
	exclusions       []exclusion
}

// New validates and compiles the rule tables. Invalid tables are a fatal
// configuration error.
func New(cfg *Config) (*Classifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("classifier configuration is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		companyOverrides: make(map[string]string, len(cfg.Overrides.Companies)),
	}

	for _, role := range cfg.Roles {
		table := roleTable{name: role.Name, weights: make(map[string]float64, len(role.Keywords))}
		for keyword, weight := range role.Keywords {
			keyword = strings.ToLower(keyword)
			table.keywords = append(table.keywords, keyword)
			table.weights[keyword] = weight
		}
		sort.Strings(table.keywords)
		c.roles = append(c.roles, table)
	}

	for company, role := range cfg.Overrides.Companies {
		c.companyOverrides[strings.ToLower(strings.TrimSpace(company))] = role
	}

	for _, override := range cfg.Overrides.Titles {
		c.titleOverrides = append(c.titleOverrides, titleOverride{
			pattern: regexp.MustCompile("(?i)" + override.Pattern),
			raw:     override.Pattern,
			role:    override.Role,
		})
	}

	for _, excl := range cfg.Exclusions {
		c.exclusions = append(c.exclusions, exclusion{
			pattern: regexp.MustCompile("(?i)" + excl.Pattern),
			raw:     excl.Pattern,
			roles:   excl.Roles,
			penalty: excl.Penalty,
		})
	}

	return c, nil
}

// Classify scores the posting against every configured role. An override rule
// short-circuits all weighted scoring and exclusion processing and fixes
// confidence at 1.0.
func (c *Classifier) Classify(p *posting.Posting) *Result {
	text := strings.ToLower(p.Title + " " + p.Description)
	company := strings.TrimSpace(p.Company)

	result := &Result{
		Scores:          make(map[string]float64, len(c.roles)),
		MatchedKeywords: make(map[string][]string, len(c.roles)),
	}
	for _, role := range c.roles {
		result.Scores[role.name] = 0
	}

	if role, ok := c.companyOverrides[strings.ToLower(company)]; ok {
		result.Role = role
		result.Confidence = 1.0
		result.Scores[role] = overrideScore
		result.AppliedRules = []string{fmt.Sprintf("Company override: %s -> %s", company, role)}
		return result
	}

	for _, override := range c.titleOverrides {
		if override.pattern.MatchString(p.Title) {
			result.Role = override.role
			result.Confidence = 1.0
			result.Scores[override.role] = overrideScore
			result.AppliedRules = []string{fmt.Sprintf("Title override: %s -> %s", override.raw, override.role)}
			return result
		}
	}

	// Keyword presence is boolean per keyword, not frequency-weighted.
	for _, role := range c.roles {
		for _, keyword := range role.keywords {
			if strings.Contains(text, keyword) {
				result.Scores[role.name] += role.weights[keyword]
				result.MatchedKeywords[role.name] = append(result.MatchedKeywords[role.name], keyword)
			}
		}
	}

	for _, excl := range c.exclusions {
		if !excl.pattern.MatchString(text) {
			continue
		}
		for _, role := range excl.roles {
			result.Scores[role] -= excl.penalty
			result.AppliedRules = append(result.AppliedRules,
				fmt.Sprintf("Exclusion: %s reduces %s by %g", excl.raw, role, excl.penalty))
		}
	}

	result.Role = c.winner(result.Scores)
	result.Confidence = c.confidence(result.Scores, result.Role)

	return result
}

// winner picks the role with the maximum score; ties resolve to the role
// declared first in the config.
func (c *Classifier) winner(scores map[string]float64) string {
	best := c.roles[0].name
	for _, role := range c.roles[1:] {
		if scores[role.name] > scores[best] {
			best = role.name
		}
	}
	return best
}

// confidence preserves the original gap-based formula, degenerate cases
// included: single-role tables score 1.0 only when positive, and a
// non-positive top score collapses to 0.5 or 0.0.
func (c *Classifier) confidence(scores map[string]float64, winner string) float64 {
	top := scores[winner]

	if len(c.roles) == 1 {
		if top > 0 {
			return 1.0
		}
		return 0.0
	}

	if top > 0 {
		second := secondBest(scores, winner, c.roles)
		confidence := (top - second) / top
		if confidence < 0 {
			return 0.0
		}
		if confidence > 1 {
			return 1.0
		}
		return confidence
	}

	for _, role := range c.roles {
		if scores[role.name] != 0 {
			return 0.5
		}
	}
	return 0.0
}

func secondBest(scores map[string]float64, winner string, roles []roleTable) float64 {
	second := 0.0
	first := true
	for _, role := range roles {
		if role.name == winner {
			continue
		}
		if first || scores[role.name] > second {
			second = scores[role.name]
			first = false
		}
	}
	return second
}

// Explain renders a human-readable report for a classification result.
func (c *Classifier) Explain(result *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Classification: %s (confidence %.0f%%)\n", result.Role, result.Confidence*100)
	b.WriteString("Scores:\n")
	for _, role := range c.roles {
		marker := " "
		if role.name == result.Role {
			marker = "*"
		}
		fmt.Fprintf(&b, "  [%s] %s: %.1f\n", marker, role.name, result.Scores[role.name])
	}

	if matched := result.MatchedKeywords[result.Role]; len(matched) > 0 {
		fmt.Fprintf(&b, "Matched keywords: %s\n", strings.Join(matched, ", "))
	}
	for _, rule := range result.AppliedRules {
		fmt.Fprintf(&b, "Rule: %s\n", rule)
	}

	return b.String()
}
