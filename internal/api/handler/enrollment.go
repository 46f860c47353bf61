package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
)

// EnrollmentService drives the pose capture sequence.
type EnrollmentService interface {
	SubmitName(ctx context.Context, firstName, lastName string) (enrollment.State, error)
	Capture(ctx context.Context) (enrollment.State, error)
	Leave() enrollment.State
	State() enrollment.State
	LatestFrame() (domain.Frame, bool)
}

type EnrollmentHandler struct {
	service EnrollmentService
	logger  *slog.Logger
}

func NewEnrollmentHandler(service EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		service: service,
		logger:  logger,
	}
}

// SubmitNameRequest is the body of POST /v1/enrollment/name
type SubmitNameRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SubmitName POST /v1/enrollment/name
func (h *EnrollmentHandler) SubmitName(c *fiber.Ctx) error {
	var req SubmitNameRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	state, err := h.service.SubmitName(c.UserContext(), req.FirstName, req.LastName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(state)
}

// Capture POST /v1/enrollment/capture
func (h *EnrollmentHandler) Capture(c *fiber.Ctx) error {
	state, err := h.service.Capture(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(state)
}

// Leave POST /v1/enrollment/leave
func (h *EnrollmentHandler) Leave(c *fiber.Ctx) error {
	return c.JSON(h.service.Leave())
}

// State GET /v1/enrollment/state
func (h *EnrollmentHandler) State(c *fiber.Ctx) error {
	return c.JSON(h.service.State())
}

// Frame GET /v1/enrollment/frame
func (h *EnrollmentHandler) Frame(c *fiber.Ctx) error {
	frame, ok := h.service.LatestFrame()
	return sendFrame(c, frame, ok)
}
