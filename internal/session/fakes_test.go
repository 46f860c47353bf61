package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/gallery"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource serves the same probe bytes on every read.
type fakeSource struct {
	mu      sync.Mutex
	probe   []byte
	open    bool
	opens   int
	closes  int
	openErr error
	readErr error
	reads   atomic.Int64
}

func (f *fakeSource) Open(ctx context.Context, width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	if !f.open {
		f.opens++
	}
	f.open = true
	return nil
}

func (f *fakeSource) ReadFrame(ctx context.Context) (domain.Frame, error) {
	n := f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return domain.Frame{}, f.readErr
	}
	if !f.open {
		return domain.Frame{}, domain.ErrDeviceUnavailable
	}
	data := append([]byte(nil), f.probe...)
	return domain.Frame{Data: data, Seq: uint64(n), CapturedAt: time.Now()}, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.closes++
	}
	f.open = false
	return nil
}

func (f *fakeSource) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeStore is an in-memory gallery.
type fakeStore struct {
	mu         sync.Mutex
	identities []domain.Identity
	images     map[string][]byte
	revision   atomic.Uint64
	scans      atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{images: make(map[string][]byte)}
}

// add registers an identity whose canonical reference holds data. A nil
// data registers a path that cannot be read.
func (s *fakeStore) add(label string, poses map[domain.Pose][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.Identity{Label: label}
	for _, pose := range domain.Poses {
		data, ok := poses[pose]
		if !ok {
			continue
		}
		path := label + "/" + string(pose)
		if data != nil {
			s.images[path] = data
		}
		id.References = append(id.References, domain.ImageRef{Label: label, Pose: pose, Path: path})
	}
	s.identities = append(s.identities, id)
	s.revision.Add(1)
}

func (s *fakeStore) Scan(ctx context.Context) (*gallery.Gallery, error) {
	s.scans.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := append([]domain.Identity(nil), s.identities...)
	return gallery.New(ids, s.revision.Load()), nil
}

func (s *fakeStore) Revision() uint64 {
	return s.revision.Load()
}

func (s *fakeStore) ReadImage(ref domain.ImageRef) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.images[ref.Path]
	if !ok {
		return nil, domain.ErrGalleryIO
	}
	return data, nil
}

// fakeMatcher matches when probe and reference are equal. Errors can be
// injected per reference.
type fakeMatcher struct {
	delay    time.Duration
	errFor   map[string]error
	calls    atomic.Int64
	inflight atomic.Int64
	maxSeen  atomic.Int64

	mu     sync.Mutex
	starts []time.Time
}

func (m *fakeMatcher) Name() string { return "fake" }

func (m *fakeMatcher) Verify(ctx context.Context, probe, reference []byte, opts provider.VerifyOptions) (*provider.VerifyResult, error) {
	m.calls.Add(1)
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	m.mu.Lock()
	m.starts = append(m.starts, time.Now())
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := m.errFor[string(reference)]; ok {
		return nil, err
	}
	if bytes.Equal(probe, reference) {
		return &provider.VerifyResult{Verified: true, Confidence: 1}, nil
	}
	return &provider.VerifyResult{Confidence: 0.1}, nil
}

// recorder collects audit entries.
type recorder struct {
	mu      sync.Mutex
	entries []domain.Verification
}

func (r *recorder) Record(v domain.Verification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, v)
}

func (r *recorder) all() []domain.Verification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Verification(nil), r.entries...)
}
