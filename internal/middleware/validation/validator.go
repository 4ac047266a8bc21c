package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var krCodePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}._-]{0,63}$`)

const maxPersonLength = 128

type Config struct {
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects unsupported request bodies and malformed kr_code / person
// values, whether they arrive as path parameters or query strings.
func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		return c.Next()
	}
}

// PathParams validates the kr_code and person route parameters and query values.
func PathParams(logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		for _, code := range []string{c.Params("kr_code"), c.Query("kr_code")} {
			if code != "" && !ValidKRCode(code) {
				logger.Warn("Rejected kr_code", zap.String("ip", c.IP()), zap.String("kr_code", code))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid kr_code",
				})
			}
		}

		for _, person := range []string{c.Params("person"), c.Query("person")} {
			if person != "" && !ValidPerson(person) {
				logger.Warn("Rejected person", zap.String("ip", c.IP()))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid person",
				})
			}
		}

		return c.Next()
	}
}

func ValidKRCode(code string) bool {
	return krCodePattern.MatchString(code)
}

// ValidPerson accepts any printable name up to maxPersonLength runes without markup.
func ValidPerson(person string) bool {
	if !utf8.ValidString(person) || strings.TrimSpace(person) == "" {
		return false
	}
	if utf8.RuneCountInString(person) > maxPersonLength {
		return false
	}
	if strings.ContainsAny(person, "<>/\\") {
		return false
	}
	for _, r := range person {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.HasPrefix(strings.ToLower(contentType), t) {
			return true
		}
	}
	return false
}
