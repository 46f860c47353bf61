package preview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/camera"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// FrameReader is the part of camera.Source the display loop needs.
type FrameReader interface {
	ReadFrame(ctx context.Context) (domain.Frame, error)
}

// Loop pulls frames at display cadence and keeps the newest one for the UI.
// It never waits on face matching.
type Loop struct {
	source   FrameReader
	interval time.Duration
	maxWidth int
	logger   *slog.Logger

	mu     sync.RWMutex
	latest domain.Frame
	frames uint64
}

func New(source FrameReader, interval time.Duration, maxWidth int, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = 30 * time.Millisecond
	}
	return &Loop{
		source:   source,
		interval: interval,
		maxWidth: maxWidth,
		logger:   logger.With("component", "preview"),
	}
}

// Run refreshes the latest frame every interval until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := l.source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, domain.ErrReadTimeout) && !failing {
				l.logger.Warn("preview frame read failed", "error", err)
				failing = true
			}
			continue
		}
		failing = false

		if l.maxWidth > 0 {
			small, err := camera.Downscale(frame, l.maxWidth)
			if err != nil {
				l.logger.Debug("preview downscale failed", "error", err)
			} else {
				frame = small
			}
		}

		l.mu.Lock()
		l.latest = frame
		l.frames++
		l.mu.Unlock()
	}
}

// Latest returns a copy of the newest displayed frame.
func (l *Loop) Latest() (domain.Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.latest.IsZero() {
		return domain.Frame{}, false
	}
	return l.latest.Clone(), true
}

// Frames is the number of frames displayed so far.
func (l *Loop) Frames() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frames
}

// Reset drops the latest frame so a stale image is not shown after the
// camera is released.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.latest = domain.Frame{}
	l.mu.Unlock()
}

// Runner starts and stops a Loop in its own goroutine.
type Runner struct {
	loop *Loop

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(loop *Loop) *Runner {
	return &Runner{loop: loop}
}

func (r *Runner) Loop() *Loop {
	return r.loop
}

// Start launches the loop unless it is already running.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.loop.Run(ctx)
	}()
	r.cancel = cancel
	r.done = done
}

// Stop cancels the loop and waits for it to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.loop.Reset()
}
