package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := RequestID(c)

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{Error: ErrorBody{
				Code:      "HTTP_ERROR",
				Message:   fiberErr.Message,
				RequestID: requestID,
			}})
		}

		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			if appErr.StatusCode >= 500 {
				logger.Error("request failed",
					slog.String("code", appErr.Code),
					slog.String("message", appErr.Message),
					slog.Any("error", appErr.Err),
					slog.String("request_id", requestID),
				)
			}

			return c.Status(appErr.StatusCode).JSON(ErrorResponse{Error: ErrorBody{
				Code:      appErr.Code,
				Message:   appErr.Message,
				RequestID: requestID,
			}})
		}

		logger.Error("unhandled error",
			slog.Any("error", err),
			slog.String("path", c.Path()),
			slog.String("request_id", requestID),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: ErrorBody{
			Code:      domain.ErrInternal.Code,
			Message:   domain.ErrInternal.Message,
			RequestID: requestID,
		}})
	}
}
