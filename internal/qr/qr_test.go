package qr

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	app := fiber.New()
	app.Get("/qr", Generate)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/qr?data=https%3A%2F%2Fchat.whatsapp.com%2Finvite123", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, _ := io.ReadAll(resp.Body)
	require.True(t, len(body) > 8)
	assert.Equal(t, "\x89PNG", string(body[:4]))
}

func TestGenerateRequiresData(t *testing.T) {
	app := fiber.New()
	app.Get("/qr", Generate)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/qr", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
