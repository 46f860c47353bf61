package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/camera"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/preview"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

type Config struct {
	Width           int
	Height          int
	DisplayInterval time.Duration
	PreviewWidth    int
	TeardownTimeout time.Duration
	Scheduler       SchedulerConfig
}

// Manager owns the login session lifecycle: camera, preview loop and
// verification loop.
type Manager struct {
	source    camera.Source
	scheduler *Scheduler
	state     *MatchState
	preview   *preview.Runner
	cfg       Config
	logger    *slog.Logger

	mu        sync.Mutex
	active    bool
	sessionID uuid.UUID
	epoch     uint64
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewManager(source camera.Source, store GalleryStore, matcher provider.FaceMatcher, recorder Recorder, cfg Config, logger *slog.Logger) *Manager {
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = 10 * time.Second
	}
	state := NewMatchState()
	return &Manager{
		source:    source,
		scheduler: NewScheduler(source, store, matcher, state, recorder, cfg.Scheduler, logger),
		state:     state,
		preview:   preview.NewRunner(preview.New(source, cfg.DisplayInterval, cfg.PreviewWidth, logger)),
		cfg:       cfg,
		logger:    logger.With("component", "session"),
	}
}

// Start resets the match state, acquires the camera and launches the
// display and verification loops. A camera failure leaves no session
// running.
func (m *Manager) Start(ctx context.Context) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return m.sessionID, domain.ErrSessionActive
	}

	sessionID := uuid.New()
	epoch := m.state.Reset(sessionID)

	if err := m.source.Open(ctx, m.cfg.Width, m.cfg.Height); err != nil {
		m.state.End(epoch)
		m.logger.Error("session start failed", "session_id", sessionID, "error", err)
		return uuid.Nil, err
	}

	m.preview.Start()

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		finished := m.scheduler.Run(runCtx, epoch, sessionID)
		close(done)
		if finished {
			m.stop(sessionID)
		}
	}()

	m.active = true
	m.sessionID = sessionID
	m.epoch = epoch
	m.cancel = cancel
	m.done = done

	m.logger.Info("session started", "session_id", sessionID)
	return sessionID, nil
}

// Stop ends the running session. It waits for the verification loop up to
// the teardown timeout, then releases the camera.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return domain.ErrSessionNotActive
	}
	m.teardownLocked()
	return nil
}

// stop ends the session only if it is still the one identified by id.
func (m *Manager) stop(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || m.sessionID != id {
		return
	}
	m.teardownLocked()
}

func (m *Manager) teardownLocked() {
	logger := m.logger.With("session_id", m.sessionID)

	m.cancel()
	select {
	case <-m.done:
	case <-time.After(m.cfg.TeardownTimeout):
		logger.Warn("verification loop did not stop in time, releasing camera anyway", "timeout", m.cfg.TeardownTimeout)
	}

	m.preview.Stop()
	if err := m.source.Close(); err != nil {
		logger.Warn("camera close failed", "error", err)
	}
	m.state.End(m.epoch)

	m.active = false
	m.cancel = nil
	m.done = nil

	snap := m.state.Snapshot()
	logger.Info("session stopped", "verified", snap.Verified, "identity", snap.MatchedIdentity)
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	return m.state.Snapshot().Active
}

// Snapshot returns the current match state.
func (m *Manager) Snapshot() domain.MatchState {
	return m.state.Snapshot()
}

// Subscribe streams match state changes.
func (m *Manager) Subscribe(buffer int) (<-chan domain.MatchState, func()) {
	return m.state.Subscribe(buffer)
}

// LatestFrame is the newest preview frame of the running session.
func (m *Manager) LatestFrame() (domain.Frame, bool) {
	return m.preview.Loop().Latest()
}

// Wait blocks until the session is no longer active or ctx is done, and
// returns the final state.
func (m *Manager) Wait(ctx context.Context) (domain.MatchState, error) {
	updates, unsubscribe := m.Subscribe(8)
	defer unsubscribe()

	if snap := m.Snapshot(); !snap.Active {
		return snap, nil
	}
	for {
		select {
		case <-ctx.Done():
			return m.Snapshot(), ctx.Err()
		case <-updates:
			if snap := m.Snapshot(); !snap.Active {
				return snap, nil
			}
		}
	}
}
