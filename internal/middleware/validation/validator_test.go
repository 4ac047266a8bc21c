package validation

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidKRCode(t *testing.T) {
	for _, code := range []string{"K-B2B-048", "KR1", "kr_2.1"} {
		assert.True(t, ValidKRCode(code), code)
	}
	for _, code := range []string{"", "-K1", "K 1", "K1;DROP", strings.Repeat("K", 65)} {
		assert.False(t, ValidKRCode(code), code)
	}
}

func TestValidPerson(t *testing.T) {
	assert.True(t, ValidPerson("rezazadeh"))
	assert.True(t, ValidPerson("علی رضازاده"))
	assert.False(t, ValidPerson("  "))
	assert.False(t, ValidPerson("a/b"))
	assert.False(t, ValidPerson("<script>"))
	assert.False(t, ValidPerson("a\x00b"))
	assert.False(t, ValidPerson(strings.Repeat("a", 129)))
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{UnescapePath: true})
	app.Use(Middleware(Config{}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Post("/runs/:kr_code/:person", PathParams(nil), ok)
	app.Get("/scores", PathParams(nil), ok)
	return app
}

func TestPathParams(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"valid", "POST", "/runs/K-B2B-048/rezazadeh", fiber.StatusOK},
		{"persian person", "POST", "/runs/KR1/" + url.PathEscape("علی"), fiber.StatusOK},
		{"bad kr", "POST", "/runs/" + url.PathEscape("K 1") + "/rezazadeh", fiber.StatusBadRequest},
		{"bad query person", "GET", "/scores?person=" + url.QueryEscape("<b>"), fiber.StatusBadRequest},
		{"empty query", "GET", "/scores", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.target, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestMiddlewareRejectsContentType(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest("POST", "/runs/KR1/p", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	req = httptest.NewRequest("POST", "/runs/KR1/p", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
