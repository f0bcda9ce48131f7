package scorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobhunter/internal/ai"
	"jobhunter/internal/classifier"
	"jobhunter/internal/filter"
	"jobhunter/internal/posting"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeScorer struct {
	scores []*ai.ExternalScore
	err    error
	calls  int
}

func (f *fakeScorer) Score(_ context.Context, _ *posting.Posting) (*ai.ExternalScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	score := f.scores[0]
	if len(f.scores) > 1 {
		f.scores = f.scores[1:]
	}
	return score, nil
}

func (f *fakeScorer) Model() string { return "fake-model" }

func classified(role string, score float64) *classifier.Result {
	return &classifier.Result{Role: role, Scores: map[string]float64{role: score}}
}

func TestRuleScore(t *testing.T) {
	agg := New(Config{}, nil, zap.NewNop())

	cases := []struct {
		name    string
		result  *classifier.Result
		verdict filter.Verdict
		want    float64
	}{
		{"base plus keywords", classified("data_engineer", 3), filter.Verdict{Passed: true}, 8.0},
		{"penalty subtracts", classified("data_engineer", 3), filter.Verdict{Passed: true, Penalty: 2.5}, 5.5},
		{"clamped at ten", classified("data_engineer", 9), filter.Verdict{Passed: true}, 10.0},
		{"clamped at zero", classified("data_engineer", 0), filter.Verdict{Passed: true, Penalty: 7}, 0.0},
		{"nil classification", nil, filter.Verdict{Passed: true}, 5.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, agg.RuleScore(tc.result, tc.verdict), 1e-9)
		})
	}
}

func TestAugmentIneligible(t *testing.T) {
	fake := &fakeScorer{scores: []*ai.ExternalScore{{OverallScore: 9}}}
	agg := New(Config{MinRuleScoreForAI: 6}, fake, zap.NewNop())

	score, outcome := agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 5.5)

	assert.Nil(t, score)
	assert.Equal(t, OutcomeIneligible, outcome)
	assert.Zero(t, fake.calls)
}

func TestAugmentNilScorer(t *testing.T) {
	agg := New(Config{}, nil, zap.NewNop())

	_, outcome := agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 9)
	assert.Equal(t, OutcomeIneligible, outcome)
}

func TestAugmentTracksTokens(t *testing.T) {
	fake := &fakeScorer{scores: []*ai.ExternalScore{
		{OverallScore: 8, CostUnits: 600},
		{OverallScore: 7, CostUnits: 500},
	}}
	agg := New(Config{TokenBudget: 1000}, fake, zap.NewNop())

	_, outcome := agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 8)
	require.Equal(t, OutcomeScored, outcome)
	assert.Equal(t, 600, agg.TokensUsed())
	assert.False(t, agg.BudgetExhausted())

	_, outcome = agg.Augment(context.Background(), &posting.Posting{ID: "p2"}, 8)
	require.Equal(t, OutcomeScored, outcome)
	assert.Equal(t, 1100, agg.TokensUsed())
	assert.True(t, agg.BudgetExhausted())

	// Budget is a soft stop: the call that crossed it succeeded, the next
	// one does not happen.
	_, outcome = agg.Augment(context.Background(), &posting.Posting{ID: "p3"}, 8)
	assert.Equal(t, OutcomeBudgetExhausted, outcome)
	assert.Equal(t, 2, fake.calls)
}

func TestAugmentFailureDoesNotAbort(t *testing.T) {
	fake := &fakeScorer{err: errors.New("upstream timeout")}
	agg := New(Config{}, fake, zap.NewNop())

	score, outcome := agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 8)

	assert.Nil(t, score)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, agg.TokensUsed())
}

func TestAugmentDelaysBetweenCalls(t *testing.T) {
	fake := &fakeScorer{scores: []*ai.ExternalScore{{OverallScore: 8}}}
	agg := New(Config{RequestDelay: 30 * time.Millisecond}, fake, zap.NewNop())

	start := time.Now()
	agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 8)
	first := time.Since(start)
	assert.Less(t, first, 25*time.Millisecond, "first call must not be delayed")

	start = time.Now()
	agg.Augment(context.Background(), &posting.Posting{ID: "p2"}, 8)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestAugmentDelayRespectsContext(t *testing.T) {
	fake := &fakeScorer{scores: []*ai.ExternalScore{{OverallScore: 8}}}
	agg := New(Config{RequestDelay: time.Minute}, fake, zap.NewNop())

	agg.Augment(context.Background(), &posting.Posting{ID: "p1"}, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, outcome := agg.Augment(ctx, &posting.Posting{ID: "p2"}, 8)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, 1, fake.calls)
}

func TestFinalScore(t *testing.T) {
	assert.Equal(t, 6.5, FinalScore(6.5, nil))
	assert.Equal(t, 8.9, FinalScore(6.5, &ai.ExternalScore{OverallScore: 8.9}))
}
