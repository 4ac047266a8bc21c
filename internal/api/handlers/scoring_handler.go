package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/analysis"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/database"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type ScoreReader interface {
	ScoresFor(ctx context.Context, filter database.ScoreFilter) ([]models.ScoreRecord, error)
	ListRuns(ctx context.Context) ([]models.ScoringRun, error)
	ListPersons(ctx context.Context) ([]string, error)
}

type Runner interface {
	RunAll(ctx context.Context, krs []models.KeyResult, observe func(scoring.CellResult)) (*scoring.RunReport, error)
	RunCell(ctx context.Context, kr models.KeyResult, person string) scoring.CellResult
}

type ScoringHandler struct {
	runner Runner
	okrs   OKRSource
	store  ScoreReader
}

func NewScoringHandler(runner Runner, okrs OKRSource, store ScoreReader) *ScoringHandler {
	return &ScoringHandler{
		runner: runner,
		okrs:   okrs,
		store:  store,
	}
}

func (h *ScoringHandler) StartRun(c *fiber.Ctx) error {
	var req struct {
		KRCodes []string `json:"kr_codes"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return badRequest(c, "Invalid request body")
		}
	}

	krs, err := h.keyResults(req.KRCodes)
	if err != nil {
		return respondError(c, "Failed to load key results", err)
	}

	report, err := h.runner.RunAll(c.Context(), krs, nil)
	if err != nil {
		logger.Error("Scoring run failed", zap.Error(err))
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error":  "Scoring run failed",
			"detail": err.Error(),
			"report": report,
		})
	}

	return c.JSON(report)
}

func (h *ScoringHandler) ScoreCell(c *fiber.Ctx) error {
	krs, err := h.keyResults([]string{c.Params("kr_code")})
	if err != nil {
		return respondError(c, "Unknown key result", err)
	}

	res := h.runner.RunCell(c.Context(), krs[0], c.Params("person"))
	if res.Outcome == scoring.OutcomeFailed {
		return c.Status(statusFor(res.Err())).JSON(res)
	}
	return c.JSON(res)
}

func (h *ScoringHandler) ListScores(c *fiber.Ctx) error {
	records, err := h.store.ScoresFor(c.Context(), database.ScoreFilter{
		KRCode: c.Query("kr_code"),
		Person: c.Query("person"),
	})
	if err != nil {
		logger.Error("Failed to list scores", zap.Error(err))
		return respondError(c, "Failed to list scores", err)
	}

	return c.JSON(fiber.Map{
		"scores": records,
	})
}

func (h *ScoringHandler) ListRuns(c *fiber.Ctx) error {
	runs, err := h.store.ListRuns(c.Context())
	if err != nil {
		logger.Error("Failed to list runs", zap.Error(err))
		return respondError(c, "Failed to list runs", err)
	}

	return c.JSON(fiber.Map{
		"runs": runs,
	})
}

func (h *ScoringHandler) ListPersons(c *fiber.Ctx) error {
	persons, err := h.store.ListPersons(c.Context())
	if err != nil {
		logger.Error("Failed to list persons", zap.Error(err))
		return respondError(c, "Failed to list persons", err)
	}

	return c.JSON(fiber.Map{
		"persons": persons,
	})
}

func (h *ScoringHandler) keyResults(codes []string) ([]models.KeyResult, error) {
	krs, err := h.okrs.KeyResults()
	if err != nil {
		return nil, err
	}
	return analysis.SelectKeyResults(krs, codes)
}
