package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type Store interface {
	ScoreRunExists(ctx context.Context, krCode, person string) (bool, error)
	SaveScores(ctx context.Context, run models.ScoringRun, scores map[int64]int) error
	ListPersons(ctx context.Context) ([]string, error)
	TasksByPerson(ctx context.Context, person string) ([]models.Task, error)
}

type Scorer interface {
	Aggregate(ctx context.Context, tasks []models.Task, kr models.KeyResult) (*Aggregate, error)
}

type OrchestratorConfig struct {
	CellConcurrency int
	FailFast        bool
}

type Orchestrator struct {
	store   Store
	scorer  Scorer
	claimer Claimer
	cfg     OrchestratorConfig
	log     *zap.Logger

	mu        sync.RWMutex
	listeners []func(context.Context, CellResult)
}

func NewOrchestrator(store Store, scorer Scorer, claimer Claimer, cfg OrchestratorConfig) *Orchestrator {
	if claimer == nil {
		claimer = NewLocalClaimer()
	}
	if cfg.CellConcurrency <= 0 {
		cfg.CellConcurrency = 1
	}
	return &Orchestrator{
		store:   store,
		scorer:  scorer,
		claimer: claimer,
		cfg:     cfg,
		log:     logger.Named("orchestrator"),
	}
}

// OnCell registers a listener invoked after every processed cell.
func (o *Orchestrator) OnCell(fn func(context.Context, CellResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// RunAll scores every KR against every person, skipping pairs that already
// have a stored run. Cell failures are recorded in the report; with FailFast
// the first failure stops the run and is returned.
func (o *Orchestrator) RunAll(ctx context.Context, krs []models.KeyResult, observe func(CellResult)) (*RunReport, error) {
	report := newReport(time.Now())

	persons, err := o.store.ListPersons(ctx)
	if err != nil {
		o.log.Error("Failed to list persons", zap.Error(err))
		return report, fmt.Errorf("failed to list persons: %w", err)
	}

	type cell struct {
		kr     models.KeyResult
		person string
	}
	cells := make([]cell, 0, len(krs)*len(persons))
	for _, kr := range krs {
		for _, p := range persons {
			cells = append(cells, cell{kr: kr, person: p})
		}
	}

	o.log.Info("Scoring run started",
		zap.Int("key_results", len(krs)),
		zap.Int("persons", len(persons)),
		zap.Int("cells", len(cells)),
	)

	results := make([]*CellResult, len(cells))
	var observeMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.CellConcurrency)

	for i, c := range cells {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := o.RunCell(gctx, c.kr, c.person)
			results[i] = &res

			if observe != nil {
				observeMu.Lock()
				observe(res)
				observeMu.Unlock()
			}

			if res.Outcome == OutcomeFailed && o.cfg.FailFast {
				return res.err
			}
			return nil
		})
	}

	runErr := g.Wait()
	for _, r := range results {
		if r != nil {
			report.add(*r)
		}
	}
	report.FinishedAt = time.Now()

	if runErr == nil {
		runErr = ctx.Err()
	}

	o.log.Info("Scoring run finished",
		zap.Int("scored", report.Counts[OutcomeScored]),
		zap.Int("skipped", report.Counts[OutcomeSkipped]),
		zap.Int("failed", report.Counts[OutcomeFailed]),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, runErr
}

// RunCell scores one (kr, person) pair. The existence check runs before any
// completion call and again after the claim is taken.
func (o *Orchestrator) RunCell(ctx context.Context, kr models.KeyResult, person string) CellResult {
	start := time.Now()
	res := o.runCell(ctx, kr, person)
	res.DurationMS = time.Since(start).Milliseconds()

	metrics.ScoringCells.WithLabelValues(string(res.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("kr_code", kr.Code),
		zap.String("person", person),
		zap.String("outcome", string(res.Outcome)),
	}
	if res.Outcome == OutcomeFailed {
		o.log.Error("Cell failed", append(fields, zap.Error(res.err))...)
	} else {
		o.log.Info("Cell processed", fields...)
	}

	o.mu.RLock()
	listeners := o.listeners
	o.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, res)
	}

	return res
}

func (o *Orchestrator) runCell(ctx context.Context, kr models.KeyResult, person string) CellResult {
	res := CellResult{KRCode: kr.Code, Person: person}
	fail := func(err error) CellResult {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		res.err = err
		return res
	}

	exists, err := o.store.ScoreRunExists(ctx, kr.Code, person)
	if err != nil {
		return fail(err)
	}
	if exists {
		res.Outcome = OutcomeSkipped
		return res
	}

	release, err := o.claimer.Claim(ctx, kr.Code, person)
	if errors.Is(err, ErrClaimHeld) {
		res.Outcome = OutcomeClaimed
		return res
	}
	if err != nil {
		return fail(fmt.Errorf("failed to claim cell: %w", err))
	}
	defer release()

	exists, err = o.store.ScoreRunExists(ctx, kr.Code, person)
	if err != nil {
		return fail(err)
	}
	if exists {
		res.Outcome = OutcomeSkipped
		return res
	}

	tasks, err := o.store.TasksByPerson(ctx, person)
	if err != nil {
		return fail(err)
	}
	res.TaskCount = len(tasks)
	if len(tasks) == 0 {
		res.Outcome = OutcomeNoTasks
		return res
	}

	agg, err := o.scorer.Aggregate(ctx, tasks, kr)
	if err != nil {
		return fail(err)
	}

	run := models.ScoringRun{
		RunID:     uuid.NewString(),
		KRCode:    kr.Code,
		Person:    person,
		Rounds:    agg.Rounds,
		TaskCount: len(tasks),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.SaveScores(ctx, run, agg.Totals); err != nil {
		if errors.Is(err, ErrRunExists) {
			res.Outcome = OutcomeSkipped
			return res
		}
		return fail(err)
	}

	metrics.ScoresSaved.Add(float64(len(agg.Totals)))

	res.Outcome = OutcomeScored
	res.RunID = run.RunID
	res.Scored = len(agg.Totals)
	res.Totals = agg.Totals
	return res
}
