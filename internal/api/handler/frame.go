package handler

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// sendFrame writes the newest preview frame. Camera frames are JPEG; a
// still image source may serve PNG.
func sendFrame(c *fiber.Ctx, frame domain.Frame, ok bool) error {
	if !ok {
		return domain.ErrNoFrame
	}
	c.Set(fiber.HeaderContentType, http.DetectContentType(frame.Data))
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
	return c.Send(frame.Data)
}
