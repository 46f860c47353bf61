package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

func Recover(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					slog.Any("panic", r),
					slog.String("path", c.Path()),
					slog.String("method", c.Method()),
					slog.String("request_id", RequestID(c)),
				)

				err = c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: ErrorBody{
					Code:      domain.ErrInternal.Code,
					Message:   domain.ErrInternal.Message,
					RequestID: RequestID(c),
				}})
			}
		}()
		return c.Next()
	}
}
