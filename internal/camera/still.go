package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// StillSource replays a single image file at the configured frame rate. It
// stands in for a camera on headless hosts.
type StillSource struct {
	path   string
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	slot   *frameSlot
	cancel context.CancelFunc
	done   chan struct{}

	reader slotReader
}

func NewStillSource(path string, cfg Config, logger *slog.Logger) *StillSource {
	return &StillSource{path: path, cfg: cfg, logger: logger.With("component", "camera", "device", filePrefix+path)}
}

func (s *StillSource) Open(ctx context.Context, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.ErrDeviceUnavailable.WithError(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return domain.ErrDeviceUnavailable.WithError(fmt.Errorf("decode %s: %w", s.path, err))
	}

	slot := newFrameSlot()
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	frame := domain.Frame{Data: data, Width: cfg.Width, Height: cfg.Height}
	frame.CapturedAt = time.Now()
	slot.publish(frame)

	go func() {
		defer close(done)
		defer slot.close()

		ticker := time.NewTicker(s.cfg.FrameInterval())
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case now := <-ticker.C:
				f := frame
				f.CapturedAt = now
				slot.publish(f)
			}
		}
	}()

	s.slot = slot
	s.cancel = cancel
	s.done = done
	s.reader.reset()

	s.logger.Info("camera opened", "width", cfg.Width, "height", cfg.Height, "requested_width", width, "requested_height", height)
	return nil
}

func (s *StillSource) ReadFrame(ctx context.Context) (domain.Frame, error) {
	s.mu.Lock()
	slot := s.slot
	s.mu.Unlock()

	return s.reader.read(ctx, slot, s.cfg.readTimeout())
}

func (s *StillSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot == nil {
		return nil
	}
	s.cancel()
	<-s.done

	s.slot = nil
	s.cancel = nil
	s.done = nil

	s.logger.Info("camera closed")
	return nil
}

func (s *StillSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot != nil
}
