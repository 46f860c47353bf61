package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// VerificationLister reads the audit log.
type VerificationLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Verification, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Verification, error)
	Stats(ctx context.Context, since time.Time) (domain.VerificationStats, error)
}

type VerificationHandler struct {
	repo   VerificationLister
	logger *slog.Logger
}

func NewVerificationHandler(repo VerificationLister, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{
		repo:   repo,
		logger: logger,
	}
}

type VerificationListResponse struct {
	Verifications []domain.Verification `json:"verifications"`
	Count         int                   `json:"count"`
}

// List GET /v1/verifications?limit=N or ?session_id=UUID
func (h *VerificationHandler) List(c *fiber.Ctx) error {
	var (
		items []domain.Verification
		err   error
	)

	if raw := c.Query("session_id"); raw != "" {
		sessionID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			return domain.ErrBadRequest.WithError(errors.New("session_id must be a UUID"))
		}
		items, err = h.repo.ListBySession(c.UserContext(), sessionID)
	} else {
		items, err = h.repo.ListRecent(c.UserContext(), c.QueryInt("limit", 50))
	}
	if err != nil {
		h.logger.Error("list verifications failed", "error", err)
		return domain.ErrInternal.WithError(err)
	}

	return c.JSON(VerificationListResponse{Verifications: items, Count: len(items)})
}

// Stats GET /v1/verifications/stats?window=24h
func (h *VerificationHandler) Stats(c *fiber.Ctx) error {
	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return domain.ErrBadRequest.WithError(errors.New("window must be a positive duration such as 24h"))
		}
		window = d
	}

	stats, err := h.repo.Stats(c.UserContext(), time.Now().Add(-window))
	if err != nil {
		h.logger.Error("verification stats failed", "error", err)
		return domain.ErrInternal.WithError(err)
	}
	return c.JSON(stats)
}
