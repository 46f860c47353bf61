package camera

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// Source is a camera that yields frames on demand.
//
// Open is idempotent while the source is open. ReadFrame is safe for
// concurrent use; calls are serialized and each caller receives its own copy
// of the frame bytes. A ReadFrame that sees no new frame within one frame
// interval (plus a small grace) returns domain.ErrReadTimeout.
type Source interface {
	Open(ctx context.Context, width, height int) error
	ReadFrame(ctx context.Context) (domain.Frame, error)
	Close() error
	IsOpen() bool
}

type Config struct {
	// Device is a v4l2 device path, or "file:<path>" to stream a still image.
	Device      string
	FFmpegPath  string
	InputFormat string
	FPS         int
	// StartupTimeout bounds how long Open waits for the first frame.
	StartupTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Device:         "/dev/video0",
		FFmpegPath:     "ffmpeg",
		InputFormat:    "v4l2",
		FPS:            30,
		StartupTimeout: 5 * time.Second,
	}
}

// FrameInterval is the nominal time between two frames.
func (c Config) FrameInterval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.FPS)
}

// readTimeout is one frame interval plus half an interval of grace.
func (c Config) readTimeout() time.Duration {
	iv := c.FrameInterval()
	return iv + iv/2
}

const filePrefix = "file:"

// New picks the implementation for cfg.Device.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("camera device is required")
	}
	if path, ok := strings.CutPrefix(cfg.Device, filePrefix); ok {
		return NewStillSource(path, cfg, logger), nil
	}
	return NewFFmpegSource(cfg, logger), nil
}
