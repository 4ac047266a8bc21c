package scoring

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/retry"
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Reduction string

const (
	ReductionSum  Reduction = "sum"
	ReductionMean Reduction = "mean"
)

type AggregatorConfig struct {
	Rounds       int
	Reduction    Reduction
	RoundRetries int
	Concurrency  int
	Temperature  float32
	Seed         int
	MaxTokens    int
	RetryDelay   time.Duration
}

type Aggregator struct {
	llm Completer
	cfg AggregatorConfig
	log *zap.Logger
}

type Aggregate struct {
	Totals map[int64]int
	Rounds int
	Usage  llm.Usage
}

func NewAggregator(completer Completer, cfg AggregatorConfig) *Aggregator {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 4
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = cfg.Rounds
	}
	if cfg.Reduction == "" {
		cfg.Reduction = ReductionSum
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	return &Aggregator{llm: completer, cfg: cfg, log: logger.Named("aggregator")}
}

type roundResult struct {
	entries []ScoreEntry
	usage   llm.Usage
}

// Aggregate issues the configured number of rounds for one KR and reduces the
// per-task scores. A round that still fails after its retries fails the whole
// aggregation; partial totals are never returned.
func (a *Aggregator) Aggregate(ctx context.Context, tasks []models.Task, kr models.KeyResult) (*Aggregate, error) {
	prompt, err := BuildPrompt(tasks, kr)
	if err != nil {
		return nil, err
	}
	person := tasks[0].Person

	results := make([]roundResult, a.cfg.Rounds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for round := 0; round < a.cfg.Rounds; round++ {
		g.Go(func() error {
			res, err := a.runRound(gctx, prompt, round)
			if err != nil {
				return &AnalysisFailedError{KRCode: kr.Code, Person: person, Round: round + 1, Err: err}
			}
			results[round] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.log.Error("Aggregation failed",
			zap.String("kr_code", kr.Code),
			zap.String("person", person),
			zap.Error(err),
		)
		return nil, err
	}

	agg := a.reduce(results, prompt.TaskIDs, kr.Code)

	a.log.Info("Aggregation finished",
		zap.String("kr_code", kr.Code),
		zap.String("person", person),
		zap.Int("rounds", a.cfg.Rounds),
		zap.Int("scored_tasks", len(agg.Totals)),
		zap.Int("total_tokens", agg.Usage.TotalTokens),
	)
	return agg, nil
}

func (a *Aggregator) runRound(ctx context.Context, prompt Prompt, round int) (roundResult, error) {
	temperature := a.cfg.Temperature
	seed := a.cfg.Seed
	req := llm.CompletionRequest{
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		Temperature:  &temperature,
		Seed:         &seed,
		MaxTokens:    a.cfg.MaxTokens,
	}

	policy := retry.Config{
		MaxAttempts:    a.cfg.RoundRetries + 1,
		InitialDelay:   a.cfg.RetryDelay,
		MaxDelay:       30 * a.cfg.RetryDelay,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      retryableRoundErr,
		OnRetry: func(int, error) {
			metrics.ScoringRounds.WithLabelValues("retried").Inc()
		},
		Logger: a.log.With(zap.Int("round", round+1)),
	}

	return retry.DoWithResult(ctx, policy, func() (roundResult, error) {
		start := time.Now()
		defer func() { metrics.ScoringRoundDuration.Observe(time.Since(start).Seconds()) }()

		resp, err := a.llm.Complete(ctx, req)
		if err != nil {
			return roundResult{}, err
		}

		parsed, err := ParseScoreResponse(resp.Content)
		if err != nil {
			return roundResult{}, err
		}

		metrics.ScoringRounds.WithLabelValues("ok").Inc()
		return roundResult{entries: parsed.AllTaskScores, usage: resp.Usage}, nil
	})
}

// reduce folds the rounds in order, adding every entry's score into its id's
// total. Ids outside the prompt are dropped. For the mean, an id is divided by
// the number of rounds that scored it.
func (a *Aggregator) reduce(results []roundResult, taskIDs []int64, krCode string) *Aggregate {
	known := make(map[int64]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		known[id] = struct{}{}
	}

	sums := make(map[int64]int)
	hits := make(map[int64]int)
	agg := &Aggregate{Rounds: len(results)}

	for _, res := range results {
		agg.Usage.Add(res.usage)
		seen := make(map[int64]struct{}, len(res.entries))
		for _, e := range res.entries {
			if _, ok := known[e.ID]; !ok {
				a.log.Warn("Dropping score for unknown task id",
					zap.String("kr_code", krCode),
					zap.Int64("task_id", e.ID),
				)
				continue
			}
			sums[e.ID] += e.Score
			if _, dup := seen[e.ID]; !dup {
				seen[e.ID] = struct{}{}
				hits[e.ID]++
			}
		}
	}

	agg.Totals = make(map[int64]int, len(sums))
	for id, sum := range sums {
		if a.cfg.Reduction == ReductionMean {
			agg.Totals[id] = (sum + hits[id]/2) / hits[id]
			continue
		}
		agg.Totals[id] = sum
	}
	return agg
}

// IsAnalysisFailure reports whether err came from an exhausted scoring round.
func IsAnalysisFailure(err error) bool {
	var af *AnalysisFailedError
	return errors.As(err, &af)
}
