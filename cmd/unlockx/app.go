package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/audit"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/camera"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/config"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/database"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/enrollment"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/face"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/repository"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/session"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/webhook"
)

// app is the wired engine shared by serve, login and enroll.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	camera    *camera.Shared
	store     *gallery.Store
	matcher   provider.FaceMatcher
	pool      *pgxpool.Pool
	repo      *repository.VerificationRepository
	recorder  *audit.Recorder
	retention *audit.Retention
	notifier  *webhook.Notifier

	session    *session.Manager
	enrollment *enrollment.Sequencer
}

type appOptions struct {
	// withMatcher is false for commands that never compare faces.
	withMatcher bool
	// withDatabase connects the audit log when DATABASE_URL is set.
	withDatabase bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	camCfg := camera.DefaultConfig()
	camCfg.Device = cfg.CameraDevice
	camCfg.FFmpegPath = cfg.FFmpegPath
	camCfg.FPS = cfg.CameraFPS
	src, err := camera.New(camCfg, logger)
	if err != nil {
		return nil, err
	}
	a.camera = camera.NewShared(src)

	if err := os.MkdirAll(cfg.GalleryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create gallery dir: %w", err)
	}
	a.store = gallery.NewStore(cfg.GalleryDir, logger)

	sink := audit.Sink(audit.NewSlogSink(logger))
	if opts.withDatabase && cfg.AuditEnabled() {
		if err := database.MigrateUp(ctx, cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
		pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.repo = repository.NewVerificationRepository(pool)
		sink = audit.NewRepositorySink(a.repo)

		if cfg.AuditRetention > 0 {
			a.retention = audit.NewRetention(a.repo, logger, cfg.AuditRetention, time.Hour)
			go a.retention.Start(ctx)
		}
	}
	a.recorder = audit.NewRecorder(sink, logger, audit.DefaultRecorderConfig())
	a.recorder.Start()

	if opts.withMatcher {
		matcher, err := face.NewFaceMatcher(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.matcher = matcher
		logger.Info("face matcher ready", "provider", matcher.Name())

		a.session = session.NewManager(a.camera, a.store, matcher, a.recorder, session.Config{
			Width:           cfg.CameraWidth,
			Height:          cfg.CameraHeight,
			DisplayInterval: cfg.DisplayInterval,
			PreviewWidth:    cfg.PreviewWidth,
			TeardownTimeout: cfg.TeardownTimeout,
			Scheduler: session.SchedulerConfig{
				Interval:       cfg.ThrottleInterval,
				MatcherTimeout: cfg.MatcherTimeout,
				Options: provider.VerifyOptions{
					Threshold:        cfg.MatchThreshold,
					EnforceDetection: true,
				},
			},
		}, logger)

		if cfg.WebhookURL != "" {
			whCfg := webhook.DefaultConfig()
			whCfg.URL = cfg.WebhookURL
			whCfg.Secret = cfg.WebhookSecret
			a.notifier = webhook.NewNotifier(whCfg, logger)
			a.notifier.Start()

			updates, unsubscribe := a.session.Subscribe(16)
			go func() {
				defer unsubscribe()
				a.notifier.WatchLogins(ctx, updates)
			}()
		}
	}

	a.enrollment = enrollment.NewSequencer(a.camera, a.store, enrollment.Config{
		Width:           cfg.CameraWidth,
		Height:          cfg.CameraHeight,
		DisplayInterval: cfg.DisplayInterval,
		PreviewWidth:    cfg.PreviewWidth,
	}, logger)

	return a, nil
}

// readyChecks are the dependencies /ready reports on.
func (a *app) readyChecks() map[string]handler.ReadyCheck {
	checks := map[string]handler.ReadyCheck{
		"gallery": func(ctx context.Context) error {
			_, err := os.Stat(a.store.Root())
			return err
		},
	}
	if a.pool != nil {
		checks["database"] = func(ctx context.Context) error {
			return database.HealthCheck(ctx, a.pool)
		}
	}
	if p, ok := a.matcher.(interface{ Ping(context.Context) error }); ok {
		checks["matcher"] = p.Ping
	}
	return checks
}

// close stops the session and enrollment, flushes the audit log and closes
// the database pool.
func (a *app) close() {
	if a.session != nil {
		_ = a.session.Stop()
	}
	if a.enrollment != nil {
		a.enrollment.Leave()
	}
	if a.notifier != nil {
		a.notifier.Stop()
	}
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.recorder != nil {
		a.recorder.Stop()
		if dropped := a.recorder.Dropped(); dropped > 0 {
			a.logger.Warn("audit entries dropped", "count", dropped)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
