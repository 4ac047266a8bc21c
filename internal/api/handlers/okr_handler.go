package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/ingestion"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/models"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

type Classifier interface {
	ClassifyOKRs(ctx context.Context, okrs []string) ([]models.OKRClassification, error)
}

type OKRHandler struct {
	classifier Classifier
	okrs       OKRSource
}

func NewOKRHandler(classifier Classifier, okrs OKRSource) *OKRHandler {
	return &OKRHandler{
		classifier: classifier,
		okrs:       okrs,
	}
}

func (h *OKRHandler) ListKeyResults(c *fiber.Ctx) error {
	krs, err := h.okrs.KeyResults()
	if err != nil {
		logger.Error("Failed to load key results", zap.Error(err))
		return respondError(c, "Failed to load key results", err)
	}

	return c.JSON(fiber.Map{
		"key_results": krs,
	})
}

// Classify labels the posted OKR texts, or the configured sheet when the body
// carries none.
func (h *OKRHandler) Classify(c *fiber.Ctx) error {
	var req struct {
		OKRs []string `json:"okrs"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return badRequest(c, "Invalid request body")
		}
	}

	texts := make([]string, 0, len(req.OKRs))
	for _, t := range req.OKRs {
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		krs, err := h.okrs.KeyResults()
		if err != nil {
			logger.Error("Failed to load key results", zap.Error(err))
			return respondError(c, "Failed to load key results", err)
		}
		texts = ingestion.OKRTexts(krs)
	}
	if len(texts) == 0 {
		return badRequest(c, "No OKRs to classify")
	}

	classified, err := h.classifier.ClassifyOKRs(c.Context(), texts)
	if err != nil {
		logger.Error("Failed to classify OKRs", zap.Error(err))
		return respondError(c, "Failed to classify OKRs", err)
	}

	return c.JSON(fiber.Map{
		"classified_okrs": classified,
	})
}
