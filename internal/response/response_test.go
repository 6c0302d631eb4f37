package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func decode(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	res, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer res.Body.Close()

	body := map[string]any{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zaptest.NewLogger(t))})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("pq: connection refused")
	})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	status, body := decode(t, app, "/boom")
	require.Equal(t, fiber.StatusInternalServerError, status)
	require.Equal(t, false, body["success"])
	require.Equal(t, "Internal Server Error", body["message"])

	status, body = decode(t, app, "/teapot")
	require.Equal(t, fiber.StatusTeapot, status)
	require.Equal(t, "short and stout", body["message"])

	status, body = decode(t, app, "/missing")
	require.Equal(t, fiber.StatusNotFound, status)
	require.Equal(t, false, body["success"])
}

func TestEnvelopeOmitsEmptyFields(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return JSON(c, fiber.StatusOK, "done", nil)
	})

	status, body := decode(t, app, "/")
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.NotContains(t, body, "data")
	require.NotContains(t, body, "errors")
	require.NotContains(t, body, "pagination")
}
