package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/circuitbreaker"
)

func twoTasks() []models.Task {
	return []models.Task{
		{ID: 1, Person: "rezazadeh", Text: "Design onboarding flow"},
		{ID: 2, Person: "rezazadeh", Text: "Team lunch"},
	}
}

func TestAggregateSumsRounds(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply(scoresJSON(1, 50, 2, 0))
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 200, 2: 0}, agg.Totals)
	assert.Equal(t, 4, agg.Rounds)
	assert.Equal(t, 4, fc.Calls())
	assert.Equal(t, 60, agg.Usage.TotalTokens)
}

func TestAggregateOmitsTasksNeverScored(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply(scoresJSON(1, 80))
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, 320, agg.Totals[1])
	_, present := agg.Totals[2]
	assert.False(t, present)
}

func TestAggregateSendsDeterministicParams(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply(scoresJSON(1, 10))
	_, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	require.Len(t, fc.reqs, 4)
	for _, req := range fc.reqs {
		require.NotNil(t, req.Seed)
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 42, *req.Seed)
		assert.Equal(t, float32(0), *req.Temperature)
		assert.Equal(t, 4096, req.MaxTokens)
		assert.Equal(t, fc.reqs[0].UserPrompt, req.UserPrompt)
	}
}

func TestAggregateRetriesMalformedRound(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := &fakeCompleter{fn: func(call int, _ llm.CompletionRequest) (string, error) {
		if call == 1 {
			return "I could not produce JSON this time", nil
		}
		return scoresJSON(1, 25), nil
	}}
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, 100, agg.Totals[1])
	assert.Equal(t, 5, fc.Calls())
}

func TestAggregateRetriesTransientProviderError(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := &fakeCompleter{fn: func(call int, _ llm.CompletionRequest) (string, error) {
		if call <= 2 {
			return "", &llm.ProviderError{StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
		}
		return scoresJSON(1, 10), nil
	}}
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, 40, agg.Totals[1])
	assert.Equal(t, 6, fc.Calls())
}

func TestAggregateFailsWhenRoundExhaustsRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply("still not json")
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.Error(t, err)
	assert.Nil(t, agg)

	var af *AnalysisFailedError
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "K-B2B-048", af.KRCode)
	assert.Equal(t, "rezazadeh", af.Person)
	assert.True(t, IsAnalysisFailure(err))

	var merr *MalformedResponseError
	assert.ErrorAs(t, err, &merr)
	assert.LessOrEqual(t, fc.Calls(), 4*3)
}

func TestAggregateDoesNotRetryPermanentProviderError(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := &fakeCompleter{fn: func(int, llm.CompletionRequest) (string, error) {
		return "", &llm.ProviderError{StatusCode: 400, Err: errors.New("bad request")}
	}}
	a := NewAggregator(fc, AggregatorConfig{Rounds: 1, RoundRetries: 3})

	_, err := a.Aggregate(context.Background(), twoTasks(), sampleKR())

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 400, perr.StatusCode)
	assert.Equal(t, 1, fc.Calls())
}

func TestAggregateSumsRepeatedIDsAndDropsUnknown(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply(scoresJSON(1, 90, 1, 10, 99, 100))
	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 400}, agg.Totals)
}

func TestAggregateRetriesHalfOpenBreakerRejection(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := &fakeCompleter{fn: func(call int, _ llm.CompletionRequest) (string, error) {
		if call == 1 {
			return "", &llm.ProviderError{Transient: true, Err: circuitbreaker.ErrHalfOpenBusy}
		}
		return scoresJSON(1, 50, 2, 25), nil
	}}

	agg, err := testAggregator(fc).Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 200, 2: 100}, agg.Totals)
	assert.Equal(t, 5, fc.Calls())
}

func TestAggregateMeanReduction(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := &fakeCompleter{fn: func(call int, _ llm.CompletionRequest) (string, error) {
		if call%2 == 1 {
			return scoresJSON(1, 50, 2, 10), nil
		}
		return scoresJSON(1, 81), nil
	}}
	a := NewAggregator(fc, AggregatorConfig{Rounds: 2, Concurrency: 1, Reduction: ReductionMean})

	agg, err := a.Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 66, 2: 10}, agg.Totals)
}

func TestAggregateMeanCountsRoundsNotEntries(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := constantReply(scoresJSON(1, 30, 1, 20))
	a := NewAggregator(fc, AggregatorConfig{Rounds: 2, Concurrency: 1, Reduction: ReductionMean})

	agg, err := a.Aggregate(context.Background(), twoTasks(), sampleKR())
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 50}, agg.Totals)
}

func TestAggregateRejectsEmptyTasks(t *testing.T) {
	fc := constantReply(scoresJSON(1, 10))
	_, err := testAggregator(fc).Aggregate(context.Background(), nil, sampleKR())

	assert.ErrorIs(t, err, ErrNoTasks)
	assert.Zero(t, fc.Calls())
}

func TestAggregateStopsOnCancelledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fc := constantReply(scoresJSON(1, 10))
	_, err := testAggregator(fc).Aggregate(ctx, twoTasks(), sampleKR())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fc.Calls())
}
