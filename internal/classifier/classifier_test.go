package classifier

import (
	"testing"

	"jobhunter/internal/posting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoRoleConfig() *Config {
	return &Config{
		Version: SchemaVersion,
		Roles: []RoleConfig{
			{
				Name: "data_engineer",
				Keywords: map[string]float64{
					"python":     2,
					"sql":        1,
					"databricks": 3,
					"etl":        2,
				},
			},
			{
				Name:     "ml_engineer",
				Keywords: map[string]float64{"pytorch": 3},
			},
		},
	}
}

func dataEngineerPosting() *posting.Posting {
	return &posting.Posting{
		ID:          "p1",
		Title:       "Data Engineer",
		Company:     "Acme",
		Description: "Python, SQL, Databricks, ETL",
	}
}

func TestClassifyWeightedKeywords(t *testing.T) {
	c, err := New(twoRoleConfig())
	require.NoError(t, err)

	result := c.Classify(dataEngineerPosting())

	assert.Equal(t, "data_engineer", result.Role)
	assert.Equal(t, 8.0, result.Scores["data_engineer"])
	assert.Equal(t, 0.0, result.Scores["ml_engineer"])
	assert.Equal(t, 1.0, result.Confidence)
	assert.ElementsMatch(t, []string{"python", "sql", "databricks", "etl"}, result.MatchedKeywords["data_engineer"])
}

func TestClassifyCompanyOverrideShortCircuits(t *testing.T) {
	cfg := twoRoleConfig()
	cfg.Overrides.Companies = map[string]string{"Acme": "ml_engineer"}

	c, err := New(cfg)
	require.NoError(t, err)

	result := c.Classify(dataEngineerPosting())

	assert.Equal(t, "ml_engineer", result.Role)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, []string{"Company override: Acme -> ml_engineer"}, result.AppliedRules)
	// The keyword scan is bypassed entirely.
	assert.Empty(t, result.MatchedKeywords["data_engineer"])
	assert.Equal(t, 0.0, result.Scores["data_engineer"])
}

func TestClassifyTitleOverride(t *testing.T) {
	cfg := twoRoleConfig()
	cfg.Overrides.Titles = []TitleOverride{{Pattern: `machine\s+learning`, Role: "ml_engineer"}}

	c, err := New(cfg)
	require.NoError(t, err)

	result := c.Classify(&posting.Posting{
		Title:       "Machine Learning Engineer",
		Company:     "Globex",
		Description: "Python, SQL, Databricks, ETL",
	})

	assert.Equal(t, "ml_engineer", result.Role)
	assert.Equal(t, 1.0, result.Confidence)
	require.Len(t, result.AppliedRules, 1)
	assert.Contains(t, result.AppliedRules[0], "Title override")
}

func TestClassifyExclusionsOnlyReduceScores(t *testing.T) {
	cfg := twoRoleConfig()
	cfg.Exclusions = []ExclusionConfig{
		{Pattern: "internship", Roles: []string{"data_engineer"}, Penalty: 10},
	}

	c, err := New(cfg)
	require.NoError(t, err)

	p := dataEngineerPosting()
	p.Description += " Internship position."

	before := c.Classify(dataEngineerPosting())
	after := c.Classify(p)

	assert.Less(t, after.Scores["data_engineer"], before.Scores["data_engineer"])
	// Scores are not floored at zero.
	assert.Equal(t, -2.0, after.Scores["data_engineer"])
	assert.NotEmpty(t, after.AppliedRules)
	for role := range after.Scores {
		assert.LessOrEqual(t, after.Scores[role], before.Scores[role])
	}
}

func TestClassifyTieBreaksOnDeclarationOrder(t *testing.T) {
	cfg := &Config{
		Version: SchemaVersion,
		Roles: []RoleConfig{
			{Name: "data_scientist", Keywords: map[string]float64{"python": 2}},
			{Name: "data_engineer", Keywords: map[string]float64{"python": 2}},
		},
	}
	c, err := New(cfg)
	require.NoError(t, err)

	result := c.Classify(&posting.Posting{Title: "Engineer", Company: "Acme", Description: "python"})

	assert.Equal(t, "data_scientist", result.Role, "first-declared role wins ties")
	assert.Equal(t, 0.0, result.Confidence, "equal scores leave no gap")
}

func TestClassifyConfidenceDegenerateCases(t *testing.T) {
	c, err := New(twoRoleConfig())
	require.NoError(t, err)

	// No keyword matches anywhere: all scores zero.
	blank := c.Classify(&posting.Posting{Title: "Chef", Company: "Bistro", Description: "cooking"})
	assert.Equal(t, 0.0, blank.Confidence)

	// Top score forced non-positive, but a score is non-zero.
	cfg := twoRoleConfig()
	cfg.Exclusions = []ExclusionConfig{
		{Pattern: "python", Roles: []string{"data_engineer", "ml_engineer"}, Penalty: 50},
	}
	penalized, err := New(cfg)
	require.NoError(t, err)

	result := penalized.Classify(&posting.Posting{Title: "Engineer", Company: "Acme", Description: "python"})
	assert.Equal(t, 0.5, result.Confidence)

	single, err := New(&Config{
		Version: SchemaVersion,
		Roles:   []RoleConfig{{Name: "only", Keywords: map[string]float64{"go": 1}}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, single.Classify(&posting.Posting{Title: "Go Dev", Company: "A", Description: "go"}).Confidence)
	assert.Equal(t, 0.0, single.Classify(&posting.Posting{Title: "Chef", Company: "A", Description: "food"}).Confidence)
}

func TestClassifyIsRepeatable(t *testing.T) {
	c, err := New(twoRoleConfig())
	require.NoError(t, err)

	p := dataEngineerPosting()
	first := c.Classify(p)
	second := c.Classify(p)

	assert.Equal(t, first, second)
	assert.True(t, first.Confidence >= 0 && first.Confidence <= 1)
}

func TestExplainReportsScoresAndRules(t *testing.T) {
	cfg := twoRoleConfig()
	cfg.Exclusions = []ExclusionConfig{
		{Pattern: "internship", Roles: []string{"data_engineer"}, Penalty: 1},
	}
	c, err := New(cfg)
	require.NoError(t, err)

	p := dataEngineerPosting()
	p.Description += " Internship position."
	report := c.Explain(c.Classify(p))

	assert.Contains(t, report, "Classification: data_engineer")
	assert.Contains(t, report, "[*] data_engineer")
	assert.Contains(t, report, "Matched keywords:")
	assert.Contains(t, report, "Exclusion: internship")
}

func TestConfigValidation(t *testing.T) {
	bad := twoRoleConfig()
	bad.Version = 99
	_, err := New(bad)
	assert.Error(t, err, "unknown schema version is fatal")

	bad = twoRoleConfig()
	bad.Overrides.Companies = map[string]string{"Acme": "nonexistent_role"}
	_, err = New(bad)
	assert.Error(t, err, "override must reference a declared role")

	bad = twoRoleConfig()
	bad.Exclusions = []ExclusionConfig{{Pattern: "(", Roles: []string{"ml_engineer"}, Penalty: 1}}
	_, err = New(bad)
	assert.Error(t, err, "non-compiling exclusion pattern is fatal")

	bad = twoRoleConfig()
	bad.Roles = nil
	_, err = New(bad)
	assert.Error(t, err, "at least one role is required")
}
