package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

const (
	scanBufferSize    = 1024 * 1024
	maxScanBufferSize = 16 * 1024 * 1024
	stderrTailSize    = 4096
)

// SplitJpeg is a bufio.SplitFunc that yields one complete JPEG image per
// token from an MJPEG byte stream.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	stop := start + len(jpegSOI) + end + len(jpegEOI)
	return stop, data[start:stop], nil
}

// FFmpegSource captures frames from a local camera through an ffmpeg
// subprocess emitting MJPEG on stdout.
type FFmpegSource struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	slot   *frameSlot
	stderr *tailBuffer

	reader slotReader
}

func NewFFmpegSource(cfg Config, logger *slog.Logger) *FFmpegSource {
	if cfg.InputFormat == "" {
		cfg.InputFormat = "v4l2"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 5 * time.Second
	}
	return &FFmpegSource{cfg: cfg, logger: logger.With("component", "camera", "device", cfg.Device)}
}

func (s *FFmpegSource) args(width, height int) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", s.cfg.InputFormat}
	if width > 0 && height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", width, height))
	}
	if s.cfg.FPS > 0 {
		args = append(args, "-framerate", strconv.Itoa(s.cfg.FPS))
	}
	return append(args, "-i", s.cfg.Device, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

// Open starts the capture process and waits for the first frame. The
// resolution is a preference; the driver may pick another. If the previous
// process exited by itself, a new one is started.
func (s *FFmpegSource) Open(ctx context.Context, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot != nil {
		if s.runningLocked() {
			return nil
		}
		s.logger.Warn("ffmpeg exited, restarting capture", "stderr", s.stderr.String())
		s.releaseLocked()
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, s.cfg.FFmpegPath, s.args(width, height)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return domain.ErrDeviceUnavailable.WithError(err)
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return domain.ErrDeviceUnavailable.WithError(fmt.Errorf("start ffmpeg: %w", err))
	}

	slot := newFrameSlot()
	done := make(chan struct{})
	go s.pump(cmd, stdout, slot, done)

	waitCtx, waitCancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer waitCancel()
	if _, err := slot.next(waitCtx, 0, s.cfg.StartupTimeout); err != nil {
		cancel()
		<-done
		msg := stderr.String()
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return domain.ErrDeviceUnavailable.WithError(err)
	}

	s.cancel = cancel
	s.done = done
	s.slot = slot
	s.stderr = stderr
	s.reader.reset()

	s.logger.Info("camera opened", "width", width, "height", height, "fps", s.cfg.FPS)
	return nil
}

func (s *FFmpegSource) pump(cmd *exec.Cmd, stdout io.Reader, slot *frameSlot, done chan struct{}) {
	defer close(done)
	defer slot.close()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, scanBufferSize), maxScanBufferSize)
	scanner.Split(SplitJpeg)

	for scanner.Scan() {
		raw := scanner.Bytes()
		data := make([]byte, len(raw))
		copy(data, raw)

		frame := domain.Frame{Data: data, CapturedAt: time.Now()}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			frame.Width = cfg.Width
			frame.Height = cfg.Height
		}
		slot.publish(frame)
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn("camera stream read failed", "error", err)
	}
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("ffmpeg exited", "error", err)
	}
}

func (s *FFmpegSource) ReadFrame(ctx context.Context) (domain.Frame, error) {
	s.mu.Lock()
	slot := s.slot
	s.mu.Unlock()

	return s.reader.read(ctx, slot, s.cfg.readTimeout())
}

// Close stops the capture process. Closing an already closed source is a
// no-op.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slot == nil {
		return nil
	}

	drops := s.releaseLocked()
	s.logger.Info("camera closed", "dropped_frames", drops)
	return nil
}

// IsOpen reports whether the capture process is running.
func (s *FFmpegSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot != nil && s.runningLocked()
}

func (s *FFmpegSource) runningLocked() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// releaseLocked stops the process, waits for the reader and forgets it.
func (s *FFmpegSource) releaseLocked() uint64 {
	s.cancel()
	<-s.done
	drops := s.slot.dropped()

	s.cancel = nil
	s.done = nil
	s.slot = nil
	s.stderr = nil
	return drops
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf))
}
