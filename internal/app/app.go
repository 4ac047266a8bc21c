package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/analysis"
	"github.com/abbasKakoolvand/OKR-analyze/internal/api"
	rediscache "github.com/abbasKakoolvand/OKR-analyze/internal/cache/redis"
	"github.com/abbasKakoolvand/OKR-analyze/internal/events"
	"github.com/abbasKakoolvand/OKR-analyze/internal/ingestion"
	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scheduler"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/database"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

// App holds the wired services shared by the API server and the CLI.
type App struct {
	Config       *config.Config
	DB           *database.Client
	Redis        *rediscache.Client
	LLM          *llm.Client
	Orchestrator *scoring.Orchestrator
	Analyzer     *analysis.Analyzer
	Importer     *ingestion.Importer
	Sheets       ingestion.Sheets
	Publisher    events.Publisher
}

func New(cfg *config.Config) (*App, error) {
	metrics.Init()

	a := &App{
		Config:    cfg,
		Sheets:    ingestion.Sheets{TaskPath: cfg.Ingestion.TaskSheet, OKRPath: cfg.Ingestion.OKRSheet},
		Publisher: events.NoopPublisher{},
	}

	db, err := database.NewClient(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.InitSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.Redis.Enabled {
		rc, err := rediscache.NewClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
	}

	if cfg.Events.Enabled {
		pub, err := events.NewRabbitMQPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Publisher = pub
	}

	llmCfg := cfg.LLM
	if llmCfg.HalfOpenRequests < cfg.Scoring.RoundConcurrency {
		llmCfg.HalfOpenRequests = cfg.Scoring.RoundConcurrency
	}
	llmClient, err := llm.NewClient(llmCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	a.LLM = llmClient

	// Scoring rounds and analyses retry on their own; the provider-level retry
	// stays on the classifier only.
	a.wire(llmClient.WithoutRetry())
	return a, nil
}

// wire builds the scoring, analysis and ingestion services on top of the
// opened backends.
func (a *App) wire(completer scoring.Completer) {
	cfg := a.Config

	aggregator := scoring.NewAggregator(completer, scoring.AggregatorConfig{
		Rounds:       cfg.Scoring.Rounds,
		Reduction:    scoring.Reduction(cfg.Scoring.Reduction),
		RoundRetries: cfg.Scoring.RoundRetries,
		Concurrency:  cfg.Scoring.RoundConcurrency,
		Temperature:  cfg.LLM.Temperature,
		Seed:         cfg.LLM.Seed,
		MaxTokens:    cfg.LLM.MaxTokens,
	})

	var (
		claimer     scoring.Claimer
		cache       analysis.Cache
		invalidator ingestion.CacheInvalidator
	)
	if a.Redis != nil {
		claimer = a.Redis.Claimer(cfg.Redis.ClaimTTL())
		cache = a.Redis
		invalidator = a.Redis
	}

	a.Orchestrator = scoring.NewOrchestrator(a.DB, aggregator, claimer, scoring.OrchestratorConfig{
		CellConcurrency: cfg.Scoring.CellConcurrency,
		FailFast:        cfg.Scoring.FailFast,
	})
	if cfg.Events.Enabled {
		a.Orchestrator.OnCell(events.CellListener(a.Publisher))
	}

	a.Analyzer = analysis.NewAnalyzer(completer, cache, analysis.Config{
		Seed:      cfg.LLM.Seed,
		MaxTokens: cfg.LLM.MaxTokens,
		Retries:   cfg.Scoring.RoundRetries,
		CacheTTL:  cfg.Redis.AnalysisTTL(),
	})
	a.Importer = ingestion.NewImporter(a.DB, invalidator, cfg.Ingestion.SplitNumbered)
}

// ScoreAll runs the orchestrator over the configured OKR sheet, optionally
// narrowed to codes.
func (a *App) ScoreAll(ctx context.Context, codes []string, observe func(scoring.CellResult)) (*scoring.RunReport, error) {
	krs, err := a.Sheets.KeyResults()
	if err != nil {
		return nil, err
	}
	krs, err = analysis.SelectKeyResults(krs, codes)
	if err != nil {
		return nil, err
	}
	return a.Orchestrator.RunAll(ctx, krs, observe)
}

func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(a.Config.Scheduler.ScoringCron, func(ctx context.Context) error {
		report, err := a.ScoreAll(ctx, nil, nil)
		if err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			return fmt.Errorf("%d of %d cells failed", len(failed), len(report.Cells))
		}
		return nil
	})
}

func (a *App) Router() (*fiber.App, func()) {
	ready := map[string]api.Pinger{"database": a.DB}
	if a.Redis != nil {
		ready["redis"] = a.Redis
	}

	return api.NewRouter(a.Config.Server, api.Deps{
		Runner:     a.Orchestrator,
		Scores:     a.DB,
		Analyzer:   a.Analyzer,
		Importer:   a.Importer,
		Classifier: a.LLM,
		Tasks:      a.Sheets,
		OKRs:       a.Sheets,
		Ready:      ready,
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		errs = append(errs, a.Publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Errors while closing app", zap.Error(err))
		return err
	}
	return nil
}
