package enrollment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/camera"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
	"github.com/saturnino-fabrica-de-software/unlockx/internal/preview"
)

type Phase string

const (
	PhaseAwaitingName Phase = "awaiting_name"
	PhaseCapturing    Phase = "capturing"
	PhaseComplete     Phase = "complete"
)

// Store is what enrollment needs from the gallery.
type Store interface {
	EnsureIdentity(name string) (string, error)
	AddReference(ctx context.Context, name string, pose domain.Pose, frame domain.Frame) (domain.ImageRef, error)
}

// State is a snapshot of the sequencer.
type State struct {
	Phase     Phase             `json:"phase"`
	PoseIndex int               `json:"pose_index"`
	Pose      domain.Pose       `json:"pose,omitempty"`
	Total     int               `json:"total"`
	Label     string            `json:"label,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Captured  []domain.ImageRef `json:"captured"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Config struct {
	Width           int
	Height          int
	DisplayInterval time.Duration
	PreviewWidth    int
}

// Sequencer walks one person through the fixed pose list, storing one
// reference image per pose. Operations are serialized.
type Sequencer struct {
	source  camera.Source
	store   Store
	preview *preview.Runner
	cfg     Config
	logger  *slog.Logger

	mu        sync.Mutex
	phase     Phase
	poseIndex int
	label     string
	firstName string
	lastName  string
	captured  []domain.ImageRef
	holding   bool
	updatedAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

func NewSequencer(source camera.Source, store Store, cfg Config, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		source:    source,
		store:     store,
		preview:   preview.NewRunner(preview.New(source, cfg.DisplayInterval, cfg.PreviewWidth, logger)),
		cfg:       cfg,
		logger:    logger.With("component", "enrollment"),
		phase:     PhaseAwaitingName,
		updatedAt: time.Now(),
		subs:      make(map[int]chan State),
	}
}

// SubmitName validates the name, creates the identity directory and
// acquires the camera. Any failure leaves the sequencer where it was.
func (s *Sequencer) SubmitName(ctx context.Context, firstName, lastName string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseCapturing {
		return s.stateLocked(), domain.ErrInvalidTransition
	}

	first := strings.ToUpper(strings.TrimSpace(firstName))
	last := strings.ToUpper(strings.TrimSpace(lastName))
	if first == "" || last == "" {
		return s.stateLocked(), domain.ErrInvalidName
	}

	label, err := s.store.EnsureIdentity(last)
	if err != nil {
		s.logger.Warn("identity creation failed", "label", last, "error", err)
		return s.stateLocked(), err
	}

	if !s.holding {
		if err := s.source.Open(ctx, s.cfg.Width, s.cfg.Height); err != nil {
			s.logger.Error("camera unavailable for enrollment", "label", label, "error", err)
			return s.stateLocked(), err
		}
		s.holding = true
	}
	s.preview.Start()

	s.phase = PhaseCapturing
	s.poseIndex = 0
	s.label = label
	s.firstName = first
	s.lastName = last
	s.captured = nil

	s.logger.Info("enrollment started", "label", label)
	return s.changedLocked(), nil
}

// Capture stores the current frame as the reference for the current pose
// and advances. After the last pose the camera is released.
func (s *Sequencer) Capture(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCapturing {
		return s.stateLocked(), domain.ErrInvalidTransition
	}

	pose := domain.Poses[s.poseIndex]
	frame, err := s.source.ReadFrame(ctx)
	if err != nil {
		s.logger.Warn("capture read failed", "label", s.label, "pose", pose, "error", err)
		return s.stateLocked(), err
	}

	ref, err := s.store.AddReference(ctx, s.label, pose, frame)
	if err != nil {
		s.logger.Warn("capture write failed", "label", s.label, "pose", pose, "error", err)
		return s.stateLocked(), err
	}

	s.captured = append(s.captured, ref)
	s.poseIndex++
	if s.poseIndex >= len(domain.Poses) {
		s.phase = PhaseComplete
		s.releaseLocked()
		s.logger.Info("enrollment complete", "label", s.label, "references", len(s.captured))
	}
	return s.changedLocked(), nil
}

// Leave releases the camera and discards unfinished progress. Images
// already written stay in the gallery.
func (s *Sequencer) Leave() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	if s.phase == PhaseCapturing {
		s.logger.Info("enrollment abandoned", "label", s.label, "captured", len(s.captured))
	}

	s.phase = PhaseAwaitingName
	s.poseIndex = 0
	s.label = ""
	s.firstName = ""
	s.lastName = ""
	s.captured = nil
	return s.changedLocked()
}

func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// LatestFrame is the newest preview frame while capturing.
func (s *Sequencer) LatestFrame() (domain.Frame, bool) {
	return s.preview.Loop().Latest()
}

// Subscribe streams state changes. Slow subscribers miss updates.
func (s *Sequencer) Subscribe(buffer int) (<-chan State, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if buffer < 1 {
		buffer = 1
	}
	id := s.nextSub
	s.nextSub++
	ch := make(chan State, buffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *Sequencer) releaseLocked() {
	s.preview.Stop()
	if !s.holding {
		return
	}
	if err := s.source.Close(); err != nil {
		s.logger.Warn("camera close failed", "error", err)
	}
	s.holding = false
}

func (s *Sequencer) stateLocked() State {
	st := State{
		Phase:     s.phase,
		PoseIndex: s.poseIndex,
		Total:     len(domain.Poses),
		Label:     s.label,
		FirstName: s.firstName,
		LastName:  s.lastName,
		Captured:  append([]domain.ImageRef{}, s.captured...),
		UpdatedAt: s.updatedAt,
	}
	if s.phase == PhaseCapturing {
		st.Pose = domain.Poses[s.poseIndex]
	}
	return st
}

func (s *Sequencer) changedLocked() State {
	s.updatedAt = time.Now()
	st := s.stateLocked()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
	return st
}
