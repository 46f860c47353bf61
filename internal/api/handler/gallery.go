package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
)

// GalleryScanner lists enrolled identities.
type GalleryScanner interface {
	Scan(ctx context.Context) (*gallery.Gallery, error)
}

type GalleryHandler struct {
	scanner GalleryScanner
	logger  *slog.Logger
}

func NewGalleryHandler(scanner GalleryScanner, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{
		scanner: scanner,
		logger:  logger,
	}
}

// IdentityResponse describes one enrolled identity.
type IdentityResponse struct {
	Label        string   `json:"label"`
	Poses        []string `json:"poses"`
	HasCanonical bool     `json:"has_canonical"`
	Complete     bool     `json:"complete"`
}

type GalleryResponse struct {
	Identities []IdentityResponse `json:"identities"`
	Total      int                `json:"total"`
	Revision   uint64             `json:"revision"`
}

func NewIdentityResponse(id domain.Identity) IdentityResponse {
	resp := IdentityResponse{Label: id.Label, Poses: make([]string, 0, len(id.References))}
	for _, ref := range id.References {
		resp.Poses = append(resp.Poses, string(ref.Pose))
	}
	_, resp.HasCanonical = id.Canonical()
	resp.Complete = len(id.References) == len(domain.Poses)
	return resp
}

// List GET /v1/gallery
func (h *GalleryHandler) List(c *fiber.Ctx) error {
	g, err := h.scanner.Scan(c.UserContext())
	if err != nil {
		return err
	}

	resp := GalleryResponse{Identities: make([]IdentityResponse, 0, g.Len()), Total: g.Len(), Revision: g.Revision()}
	for _, id := range g.Identities() {
		resp.Identities = append(resp.Identities, NewIdentityResponse(id))
	}
	return c.JSON(resp)
}

// Get GET /v1/gallery/:label
func (h *GalleryHandler) Get(c *fiber.Ctx) error {
	g, err := h.scanner.Scan(c.UserContext())
	if err != nil {
		return err
	}

	id, ok := g.Lookup(c.Params("label"))
	if !ok {
		return domain.ErrIdentityNotFound
	}
	return c.JSON(NewIdentityResponse(id))
}
