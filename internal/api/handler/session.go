package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// SessionService is the login session lifecycle.
type SessionService interface {
	Start(ctx context.Context) (uuid.UUID, error)
	Stop() error
	Snapshot() domain.MatchState
	LatestFrame() (domain.Frame, bool)
}

type SessionHandler struct {
	service SessionService
	logger  *slog.Logger
}

func NewSessionHandler(service SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger,
	}
}

// MatchStateResponse is the match state as the UI renders it.
type MatchStateResponse struct {
	SessionID       string `json:"session_id,omitempty"`
	Active          bool   `json:"active"`
	Verified        bool   `json:"verified"`
	MatchedIdentity string `json:"matched_identity,omitempty"`
	LastCheckedAt   string `json:"last_checked_at,omitempty"`
	Error           string `json:"error,omitempty"`
	Message         string `json:"message"`
}

func NewMatchStateResponse(s domain.MatchState) MatchStateResponse {
	resp := MatchStateResponse{
		Active:          s.Active,
		Verified:        s.Verified,
		MatchedIdentity: s.MatchedIdentity,
		Error:           s.Error,
		Message:         statusMessage(s),
	}
	if s.SessionID != uuid.Nil {
		resp.SessionID = s.SessionID.String()
	}
	if !s.LastCheckedAt.IsZero() {
		resp.LastCheckedAt = s.LastCheckedAt.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func statusMessage(s domain.MatchState) string {
	switch {
	case s.Verified:
		return "Login Successful! Welcome " + s.MatchedIdentity
	case s.Error == domain.ErrDeviceUnavailable.Code:
		return "Camera unavailable"
	case s.Error != "":
		return "Session failed"
	case s.Active && s.LastCheckedAt.IsZero():
		return "Looking for a face..."
	case s.Active:
		return "No Match"
	default:
		return "Idle"
	}
}

// Start POST /v1/session/start
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	id, err := h.service.Start(c.UserContext())
	if err != nil {
		return err
	}

	h.logger.Info("login session requested", "session_id", id)
	return c.Status(fiber.StatusCreated).JSON(NewMatchStateResponse(h.service.Snapshot()))
}

// Stop POST /v1/session/stop
func (h *SessionHandler) Stop(c *fiber.Ctx) error {
	if err := h.service.Stop(); err != nil {
		return err
	}
	return c.JSON(NewMatchStateResponse(h.service.Snapshot()))
}

// State GET /v1/session/state
func (h *SessionHandler) State(c *fiber.Ctx) error {
	return c.JSON(NewMatchStateResponse(h.service.Snapshot()))
}

// Frame GET /v1/session/frame
func (h *SessionHandler) Frame(c *fiber.Ctx) error {
	frame, ok := h.service.LatestFrame()
	return sendFrame(c, frame, ok)
}
