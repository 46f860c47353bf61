package camera

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

var errSlotClosed = errors.New("frame slot closed")

// frameSlot is a single-frame mailbox. Publishing overwrites whatever frame
// was there; readers wait for a sequence number newer than the one they last
// saw.
type frameSlot struct {
	mu     sync.Mutex
	frame  domain.Frame
	notify chan struct{}
	closed bool
	drops  uint64
	read   uint64
}

func newFrameSlot() *frameSlot {
	return &frameSlot{notify: make(chan struct{})}
}

func (s *frameSlot) publish(f domain.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.frame.Seq > s.read {
		s.drops++
	}

	f.Seq = s.frame.Seq + 1
	s.frame = f

	close(s.notify)
	s.notify = make(chan struct{})
}

// next blocks until a frame with Seq > after is available, the timeout
// elapses, ctx is done, or the slot is closed.
func (s *frameSlot) next(ctx context.Context, after uint64, timeout time.Duration) (domain.Frame, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return domain.Frame{}, errSlotClosed
		}
		if s.frame.Seq > after {
			f := s.frame.Clone()
			s.read = f.Seq
			s.mu.Unlock()
			return f, nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return domain.Frame{}, domain.ErrReadTimeout
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		}
	}
}

func (s *frameSlot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.notify)
}

func (s *frameSlot) dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drops
}

// slotReader serializes reads against a slot and remembers the last sequence
// handed out, so consecutive reads never return the same frame twice.
type slotReader struct {
	mu      sync.Mutex
	lastSeq uint64
}

func (r *slotReader) read(ctx context.Context, slot *frameSlot, timeout time.Duration) (domain.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot == nil {
		return domain.Frame{}, domain.ErrDeviceUnavailable
	}

	f, err := slot.next(ctx, r.lastSeq, timeout)
	if err != nil {
		if errors.Is(err, errSlotClosed) {
			return domain.Frame{}, domain.ErrDeviceUnavailable.WithError(err)
		}
		return domain.Frame{}, err
	}
	r.lastSeq = f.Seq
	return f, nil
}

func (r *slotReader) reset() {
	r.mu.Lock()
	r.lastSeq = 0
	r.mu.Unlock()
}
