package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/abbasKakoolvand/OKR-analyze/internal/api/handlers"
	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/internal/middleware/ratelimit"
	"github.com/abbasKakoolvand/OKR-analyze/internal/middleware/security"
	"github.com/abbasKakoolvand/OKR-analyze/internal/middleware/validation"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Runner     handlers.Runner
	Scores     handlers.ScoreReader
	Analyzer   handlers.Analyzer
	Importer   handlers.TaskImporter
	Classifier handlers.Classifier
	Tasks      handlers.TaskTableSource
	OKRs       handlers.OKRSource
	// Ready checks run by /ready; any failure reports not ready.
	Ready map[string]Pinger
}

// NewRouter builds the HTTP API. The returned stop function releases the rate
// limiter and must be called on shutdown.
func NewRouter(cfg config.ServerConfig, deps Deps) (*fiber.App, func()) {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:             cfg.BodyLimit,
		UnescapePath:          true,
		DisableStartupMessage: true,
	})

	allowOrigins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.AllowedOrigins, ",")
	}

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		IsDevelopment:  cfg.Development,
	}))
	app.Use(validation.Middleware(validation.Config{Logger: logger.GetLogger()}))

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimitPerMinute,
		Logger:               logger.GetLogger(),
	})
	spend := limiter.Middleware()
	params := validation.PathParams(logger.GetLogger())

	scoringHandler := handlers.NewScoringHandler(deps.Runner, deps.OKRs, deps.Scores)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analyzer, deps.Tasks, deps.OKRs)
	tasksHandler := handlers.NewTasksHandler(deps.Importer, deps.Tasks)
	okrHandler := handlers.NewOKRHandler(deps.Classifier, deps.OKRs)
	wsHandler := handlers.NewWebSocketHandler(deps.Runner, deps.OKRs)

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/analyze", spend, analysisHandler.Analyze)
	api.Get("/analyze-kr/:kr_code", params, spend, analysisHandler.AnalyzeKR)

	api.Post("/scoring/runs", spend, scoringHandler.StartRun)
	api.Post("/scoring/runs/:kr_code/:person", params, spend, scoringHandler.ScoreCell)
	api.Get("/scores", params, scoringHandler.ListScores)
	api.Get("/runs", scoringHandler.ListRuns)
	api.Get("/persons", scoringHandler.ListPersons)

	api.Post("/tasks/import", tasksHandler.ImportTasks)
	api.Get("/okrs", okrHandler.ListKeyResults)
	api.Post("/okrs/classify", spend, okrHandler.Classify)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		ready := true
		for name, p := range deps.Ready {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				ready = false
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		status := fiber.StatusOK
		state := "ready"
		if !ready {
			status = fiber.StatusServiceUnavailable
			state = "not_ready"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": state,
			"checks": checks,
		})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/runs", websocket.New(wsHandler.HandleConnection))

	return app, limiter.Stop
}
