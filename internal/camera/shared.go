package camera

import (
	"context"
	"sync"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// Shared lets several holders use one device. Each Open must be paired with
// a Close; the device is released when the last holder closes. An Open while
// held restarts a device that died underneath the holders.
type Shared struct {
	src Source

	mu   sync.Mutex
	refs int
}

func NewShared(src Source) *Shared {
	return &Shared{src: src}
}

func (s *Shared) Open(ctx context.Context, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 || !s.src.IsOpen() {
		if err := s.src.Open(ctx, width, height); err != nil {
			return err
		}
	}
	s.refs++
	return nil
}

func (s *Shared) ReadFrame(ctx context.Context) (domain.Frame, error) {
	return s.src.ReadFrame(ctx)
}

func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs == 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	return s.src.Close()
}

func (s *Shared) IsOpen() bool {
	return s.src.IsOpen()
}

// Holders is the number of outstanding Open calls.
func (s *Shared) Holders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}
