package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/preview"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

// GalleryStore is what the verification loop needs from the gallery.
type GalleryStore interface {
	Scan(ctx context.Context) (*gallery.Gallery, error)
	Revision() uint64
	ReadImage(ref domain.ImageRef) ([]byte, error)
}

// Recorder receives one entry per attempt that reached the matcher. Record
// must not block.
type Recorder interface {
	Record(v domain.Verification)
}

type nopRecorder struct{}

func (nopRecorder) Record(domain.Verification) {}

type SchedulerConfig struct {
	// Interval is the minimum time between the starts of two attempts.
	Interval time.Duration
	// MatcherTimeout bounds a single comparison.
	MatcherTimeout time.Duration
	Options        provider.VerifyOptions
}

// Scheduler runs the throttled verification loop for one session at a time.
type Scheduler struct {
	source   preview.FrameReader
	store    GalleryStore
	matcher  provider.FaceMatcher
	state    *MatchState
	recorder Recorder
	cfg      SchedulerConfig
	logger   *slog.Logger
}

func NewScheduler(source preview.FrameReader, store GalleryStore, matcher provider.FaceMatcher, state *MatchState, recorder Recorder, cfg SchedulerConfig, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MatcherTimeout <= 0 {
		cfg.MatcherTimeout = 30 * time.Second
	}
	return &Scheduler{
		source:   source,
		store:    store,
		matcher:  matcher,
		state:    state,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger.With("component", "scheduler"),
	}
}

// Run loops until ctx is done, a match is committed or the camera is lost.
// It returns true when the loop ended by itself. Attempts run inline, so two
// attempts never overlap.
func (s *Scheduler) Run(ctx context.Context, epoch uint64, sessionID uuid.UUID) bool {
	logger := s.logger.With("session_id", sessionID)
	logger.Info("verification loop started", "interval", s.cfg.Interval, "matcher", s.matcher.Name())

	r := &run{Scheduler: s, epoch: epoch, sessionID: sessionID, logger: logger}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("verification loop stopped")
			return false
		case <-timer.C:
		}

		start := time.Now()
		if r.attempt(ctx) {
			logger.Info("verification loop finished")
			return true
		}

		wait := s.cfg.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// run holds the per-session loop state.
type run struct {
	*Scheduler
	epoch     uint64
	sessionID uuid.UUID
	logger    *slog.Logger
	gallery   *gallery.Gallery
}

func (r *run) refreshGallery(ctx context.Context) {
	if r.gallery != nil && r.gallery.Revision() == r.store.Revision() {
		return
	}
	g, err := r.store.Scan(ctx)
	if err != nil {
		r.logger.Warn("gallery scan failed", "error", err)
		return
	}
	r.logger.Debug("gallery loaded", "identities", g.Len(), "revision", g.Revision())
	r.gallery = g
}

// attempt runs one pass over the gallery. It returns true when the session
// is over: a match was committed or the camera is gone.
func (r *run) attempt(ctx context.Context) bool {
	frame, err := r.source.ReadFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		switch {
		case errors.Is(err, domain.ErrDeviceUnavailable):
			r.logger.Error("camera lost, ending session", "error", err)
			r.state.Fail(r.epoch, domain.ErrDeviceUnavailable.Code)
			return true
		case errors.Is(err, domain.ErrReadTimeout):
			r.logger.Debug("no frame this tick", "error", err)
		default:
			r.logger.Warn("frame read failed", "error", err)
		}
		return false
	}

	r.refreshGallery(ctx)

	var identities []domain.Identity
	if r.gallery != nil {
		identities = r.gallery.Identities()
	}

	started := time.Now()
	compared := 0
	best := 0.0
	for _, id := range identities {
		if ctx.Err() != nil {
			return false
		}

		ref, ok := id.Canonical()
		if !ok {
			r.logger.Debug("identity has no canonical reference", "label", id.Label)
			continue
		}
		reference, err := r.store.ReadImage(ref)
		if err != nil {
			r.logger.Warn("skipping identity", "label", id.Label, "error", err)
			continue
		}

		res, err := r.compare(ctx, frame.Data, reference)
		compared++
		if err != nil {
			if errors.Is(err, domain.ErrNoFaceDetected) {
				r.logger.Debug("no face detected", "label", id.Label)
			} else {
				r.logger.Warn("comparison failed", "label", id.Label, "error", err)
			}
			continue
		}
		if res.Confidence > best {
			best = res.Confidence
		}
		if res.Verified {
			now := time.Now()
			if r.state.Commit(r.epoch, true, id.Label, now) {
				r.logger.Info("identity verified", "label", id.Label, "confidence", res.Confidence)
			}
			r.record(id.Label, true, res.Confidence, compared, started, now)
			return true
		}
	}

	now := time.Now()
	r.state.Commit(r.epoch, false, "", now)
	if compared > 0 {
		r.record("", false, best, compared, started, now)
	}
	return false
}

// compare runs one matcher call. Stopping the session does not abort it;
// only the per-call timeout does.
func (r *run) compare(ctx context.Context, probe, reference []byte) (*provider.VerifyResult, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.MatcherTimeout)
	defer cancel()

	res, err := r.matcher.Verify(callCtx, probe, reference, r.cfg.Options)
	if err != nil {
		var appErr *domain.AppError
		if !errors.As(err, &appErr) {
			err = domain.ErrModelError.WithError(err)
		}
		return nil, err
	}
	return res, nil
}

func (r *run) record(label string, verified bool, confidence float64, compared int, started, at time.Time) {
	r.recorder.Record(domain.Verification{
		ID:         uuid.New(),
		SessionID:  r.sessionID,
		Label:      label,
		Verified:   verified,
		Confidence: confidence,
		Compared:   compared,
		LatencyMs:  at.Sub(started).Milliseconds(),
		CreatedAt:  at,
	})
}
