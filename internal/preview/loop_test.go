package preview

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReader struct {
	frame domain.Frame
	reads atomic.Int64
	fail  atomic.Bool
}

func (f *fakeReader) ReadFrame(ctx context.Context) (domain.Frame, error) {
	f.reads.Add(1)
	if f.fail.Load() {
		return domain.Frame{}, domain.ErrReadTimeout
	}
	out := f.frame.Clone()
	out.Seq = uint64(f.reads.Load())
	return out, nil
}

func jpegFrame(t *testing.T, w, h int) domain.Frame {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return domain.Frame{Data: buf.Bytes(), Width: w, Height: h}
}

func TestLoop_KeepsLatestFrame(t *testing.T) {
	reader := &fakeReader{frame: jpegFrame(t, 64, 48)}
	loop := New(reader, 2*time.Millisecond, 0, testLogger())

	_, ok := loop.Latest()
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return loop.Frames() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	f, ok := loop.Latest()
	require.True(t, ok)
	assert.Equal(t, 64, f.Width)
	assert.Greater(t, f.Seq, uint64(1))
}

func TestLoop_DownscalesForDisplay(t *testing.T) {
	reader := &fakeReader{frame: jpegFrame(t, 1280, 720)}
	loop := New(reader, time.Millisecond, 320, testLogger())

	runner := NewRunner(loop)
	runner.Start()
	require.Eventually(t, func() bool { return loop.Frames() >= 1 }, time.Second, time.Millisecond)

	f, ok := loop.Latest()
	require.True(t, ok)
	assert.Equal(t, 320, f.Width)
	assert.Equal(t, 180, f.Height)

	runner.Stop()
	_, ok = loop.Latest()
	assert.False(t, ok)
}

func TestLoop_SkipsFailedReads(t *testing.T) {
	reader := &fakeReader{frame: jpegFrame(t, 8, 8)}
	reader.fail.Store(true)
	loop := New(reader, time.Millisecond, 0, testLogger())

	runner := NewRunner(loop)
	runner.Start()
	runner.Start()
	require.Eventually(t, func() bool { return reader.reads.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(0), loop.Frames())

	reader.fail.Store(false)
	require.Eventually(t, func() bool { return loop.Frames() >= 1 }, time.Second, time.Millisecond)

	runner.Stop()
	runner.Stop()
}
