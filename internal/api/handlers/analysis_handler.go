package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, rows []models.TaskRow, krs []models.KeyResult) (*models.AnalysisResult, error)
	AnalyzeKR(ctx context.Context, rows []models.TaskRow, krs []models.KeyResult, code string) (*models.AnalysisResult, models.KeyResult, error)
}

type AnalysisHandler struct {
	analyzer Analyzer
	tasks    TaskTableSource
	okrs     OKRSource
}

func NewAnalysisHandler(analyzer Analyzer, tasks TaskTableSource, okrs OKRSource) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		tasks:    tasks,
		okrs:     okrs,
	}
}

func (h *AnalysisHandler) Analyze(c *fiber.Ctx) error {
	rows, krs, err := h.load()
	if err != nil {
		logger.Error("Failed to load sheets", zap.Error(err))
		return respondError(c, "Failed to load task or OKR sheet", err)
	}

	result, err := h.analyzer.Analyze(c.Context(), rows, krs)
	if err != nil {
		logger.Error("Analysis failed", zap.Error(err))
		return respondError(c, "Analysis failed", err)
	}

	return c.JSON(result)
}

func (h *AnalysisHandler) AnalyzeKR(c *fiber.Ctx) error {
	rows, krs, err := h.load()
	if err != nil {
		logger.Error("Failed to load sheets", zap.Error(err))
		return respondError(c, "Failed to load task or OKR sheet", err)
	}

	result, kr, err := h.analyzer.AnalyzeKR(c.Context(), rows, krs, c.Params("kr_code"))
	if err != nil {
		logger.Error("KR analysis failed", zap.String("kr_code", c.Params("kr_code")), zap.Error(err))
		return respondError(c, "Analysis failed", err)
	}

	return c.JSON(fiber.Map{
		"kr_name":   kr.Description,
		"kr_result": result,
	})
}

func (h *AnalysisHandler) load() ([]models.TaskRow, []models.KeyResult, error) {
	rows, err := h.tasks.TaskTable()
	if err != nil {
		return nil, nil, err
	}
	krs, err := h.okrs.KeyResults()
	if err != nil {
		return nil, nil, err
	}
	return rows, krs, nil
}
