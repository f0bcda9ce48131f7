package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"jobhunter/internal/ai"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/posting"
	"jobhunter/internal/scorer"
	"jobhunter/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memSource struct {
	raws []posting.Raw
}

func (m *memSource) Name() string { return "memory" }

func (m *memSource) Fetch(_ context.Context) ([]posting.Raw, error) {
	return m.raws, nil
}

type fixedScorer struct {
	score *ai.ExternalScore
	calls int
}

func (f *fixedScorer) Score(_ context.Context, _ *posting.Posting) (*ai.ExternalScore, error) {
	f.calls++
	return f.score, nil
}

func (f *fixedScorer) Model() string { return "fixed-model" }

func testEngine(t *testing.T) *filter.Engine {
	t.Helper()
	engine, err := filter.New(&filter.Config{Rules: []filter.RuleConfig{
		{Name: "sponsorship", Reason: filter.ReasonNoSponsorship, Hard: true, Patterns: []string{`no (visa )?sponsorship`}},
		{Name: "onsite", Reason: filter.ReasonLocationInfeasible, Penalty: 1.5, Patterns: []string{`fully on-?site`}},
	}}, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func testClassifier(t *testing.T) *classifier.Classifier {
	t.Helper()
	cls, err := classifier.New(&classifier.Config{
		Version: 1,
		Roles: []classifier.RoleConfig{
			{Name: "data_engineer", Keywords: map[string]float64{"python": 2, "airflow": 1}},
		},
	})
	require.NoError(t, err)
	return cls
}

func newPipeline(t *testing.T, raws []posting.Raw, aiScorer ai.Scorer, threshold float64) (*Pipeline, *tracker.Store) {
	t.Helper()
	store, err := tracker.Open(filepath.Join(t.TempDir(), "state.json"), threshold, zap.NewNop())
	require.NoError(t, err)

	agg := scorer.New(scorer.Config{}, aiScorer, zap.NewNop())
	p := New(&memSource{raws: raws}, testEngine(t), testClassifier(t), agg, store, zap.NewNop())
	return p, store
}

func TestRunMixedBatch(t *testing.T) {
	raws := []posting.Raw{
		{Title: "Data Engineer", Company: "Acme", URL: "https://acme.example/1", Description: "Python and Airflow pipelines"},
		{Title: "Data Engineer", Company: "Acme", URL: "https://acme.example/1?ref=feed", Description: "duplicate"},
		{Title: "Backend Engineer", Company: "Initech", URL: "https://initech.example/2", Description: "Python. No visa sponsorship offered."},
		{Title: "", Company: "Hooli", URL: "https://hooli.example/3"},
	}

	p, store := newPipeline(t, raws, nil, 7)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.New)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 1, summary.FilteredOut)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.ReviewQueued)
	assert.NotEmpty(t, summary.RunID)

	stats := store.Stats()
	assert.Equal(t, 1, stats[tracker.StatusResumePending])
	assert.Equal(t, 1, stats[tracker.StatusFilteredOut])

	good := store.ByStatus(tracker.StatusResumePending)[0]
	// base 5 + python 2 + airflow 1
	assert.InDelta(t, 8.0, good.RuleScore, 1e-9)
	assert.InDelta(t, 8.0, good.FinalScore, 1e-9)
	require.NotNil(t, good.Classification)
	assert.Equal(t, "data_engineer", good.Classification.Role)

	rejected := store.ByStatus(tracker.StatusFilteredOut)[0]
	require.NotNil(t, rejected.Verdict)
	assert.Contains(t, rejected.Verdict.RejectReasons, filter.ReasonNoSponsorship)
}

func TestRunPersistsAfterEveryPosting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := tracker.Open(path, 7, zap.NewNop())
	require.NoError(t, err)

	raws := []posting.Raw{
		{Title: "Data Engineer", Company: "Acme", URL: "https://acme.example/1", Description: "Python"},
	}
	agg := scorer.New(scorer.Config{}, nil, zap.NewNop())
	p := New(&memSource{raws: raws}, testEngine(t), testClassifier(t), agg, store, zap.NewNop())

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	reopened, err := tracker.Open(path, 7, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, reopened.Jobs(), 1)
}

func TestRunAugmentsWithExternalScore(t *testing.T) {
	fixed := &fixedScorer{score: &ai.ExternalScore{
		OverallScore:   9.1,
		Recommendation: ai.RecommendApply,
		CostUnits:      800,
	}}
	raws := []posting.Raw{
		{Title: "Data Engineer", Company: "Acme", URL: "https://acme.example/1", Description: "Python and Airflow"},
	}

	p, store := newPipeline(t, raws, fixed, 9)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AIScored)
	assert.Equal(t, 800, summary.TokensUsed)
	assert.Equal(t, 1, fixed.calls)

	job := store.Jobs()[0]
	require.NotNil(t, job.External)
	// The external score replaces the rule score and pushes the job over the
	// review threshold the rule score alone would have missed.
	assert.InDelta(t, 8.0, job.RuleScore, 1e-9)
	assert.InDelta(t, 9.1, job.FinalScore, 1e-9)
	assert.Equal(t, tracker.StatusResumePending, job.Status)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	raws := []posting.Raw{
		{Title: "Data Engineer", Company: "Acme", URL: "https://acme.example/1", Description: "Python"},
	}
	p, _ := newPipeline(t, raws, nil, 7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, summary.New)
}
