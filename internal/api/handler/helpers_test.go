package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/middleware"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(testLogger())})
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, v), "body: %s", body)
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body middleware.ErrorResponse
	decodeJSON(t, resp, &body)
	return body.Error.Code
}
