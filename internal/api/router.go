package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/ws"
)

// SessionService is the login session as the API and the event stream see it.
type SessionService interface {
	handler.SessionService
	Subscribe(buffer int) (<-chan domain.MatchState, func())
}

// EnrollmentService is the enrollment sequencer as the API and the event
// stream see it.
type EnrollmentService interface {
	handler.EnrollmentService
	Subscribe(buffer int) (<-chan enrollment.State, func())
}

type Dependencies struct {
	Session    SessionService
	Enrollment EnrollmentService
	Gallery    handler.GalleryScanner
	// Verifications is nil when no database is configured.
	Verifications handler.VerificationLister
	ReadyChecks   map[string]handler.ReadyCheck
}

type Router struct {
	app       *fiber.App
	logger    *slog.Logger
	deps      *Dependencies
	wsHub     *ws.Hub
	cancelHub context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(logger),
		AppName:               "UnlockX",
		DisableStartupMessage: true,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var checks map[string]handler.ReadyCheck
	if r.deps != nil {
		checks = r.deps.ReadyChecks
	}
	healthHandler := handler.NewHealthHandler(checks)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil {
		return
	}

	v1 := r.app.Group("/v1")

	r.wsHub = ws.NewHub(r.logger)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	r.cancelHub = hubCancel
	go r.wsHub.Run(hubCtx)

	if r.deps.Session != nil {
		sessionHandler := handler.NewSessionHandler(r.deps.Session, r.logger)
		v1.Post("/session/start", sessionHandler.Start)
		v1.Post("/session/stop", sessionHandler.Stop)
		v1.Get("/session/state", sessionHandler.State)
		v1.Get("/session/frame", sessionHandler.Frame)

		updates, unsubscribe := r.deps.Session.Subscribe(16)
		go func() {
			<-hubCtx.Done()
			unsubscribe()
		}()
		go func() {
			for state := range updates {
				r.wsHub.Broadcast(ws.TopicMatch, ws.EventMatchUpdated, handler.NewMatchStateResponse(state))
			}
		}()
	}

	if r.deps.Enrollment != nil {
		enrollmentHandler := handler.NewEnrollmentHandler(r.deps.Enrollment, r.logger)
		v1.Post("/enrollment/name", enrollmentHandler.SubmitName)
		v1.Post("/enrollment/capture", enrollmentHandler.Capture)
		v1.Post("/enrollment/leave", enrollmentHandler.Leave)
		v1.Get("/enrollment/state", enrollmentHandler.State)
		v1.Get("/enrollment/frame", enrollmentHandler.Frame)

		updates, unsubscribe := r.deps.Enrollment.Subscribe(16)
		go func() {
			defer unsubscribe()
			ws.Forward(hubCtx, r.wsHub, ws.TopicEnrollment, ws.EventEnrollmentUpdated, updates)
		}()
	}

	if r.deps.Gallery != nil {
		galleryHandler := handler.NewGalleryHandler(r.deps.Gallery, r.logger)
		v1.Get("/gallery", galleryHandler.List)
		v1.Get("/gallery/:label", galleryHandler.Get)
	}

	if r.deps.Verifications != nil {
		verificationHandler := handler.NewVerificationHandler(r.deps.Verifications, r.logger)
		v1.Get("/verifications", verificationHandler.List)
		v1.Get("/verifications/stats", verificationHandler.Stats)
	}

	v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.wsHub, r.snapshot))
}

// snapshot is what a new WebSocket client receives on connect.
func (r *Router) snapshot() []ws.Event {
	var events []ws.Event
	if r.deps.Session != nil {
		events = append(events, ws.Event{
			Topic: ws.TopicMatch,
			Type:  ws.EventMatchUpdated,
			Data:  handler.NewMatchStateResponse(r.deps.Session.Snapshot()),
		})
	}
	if r.deps.Enrollment != nil {
		events = append(events, ws.Event{
			Topic: ws.TopicEnrollment,
			Type:  ws.EventEnrollmentUpdated,
			Data:  r.deps.Enrollment.State(),
		})
	}
	return events
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Hub() *ws.Hub {
	return r.wsHub
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	if r.cancelHub != nil {
		r.cancelHub()
	}
	return r.app.Shutdown()
}
