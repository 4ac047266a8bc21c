package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/abbasKakoolvand/OKR-analyze/internal/analysis"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/circuitbreaker"
)

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		validation *scoring.ValidationError
		malformed  *scoring.MalformedResponseError
		failed     *scoring.AnalysisFailedError
		provider   *scoring.ProviderError
		persist    *scoring.PersistenceError
	)
	switch {
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrUnknownKR):
		return fiber.StatusNotFound
	case errors.Is(err, scoring.ErrClaimHeld):
		return fiber.StatusConflict
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrHalfOpenBusy):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &failed), errors.As(err, &malformed), errors.As(err, &provider):
		return fiber.StatusBadGateway
	case errors.As(err, &persist):
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error":  msg,
		"detail": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
