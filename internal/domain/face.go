package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pose identifica uma das capturas de referência de uma identidade.
type Pose string

const (
	PoseFront Pose = "Front View"
	PoseLeft  Pose = "Left Side"
	PoseRight Pose = "Right Side"
	PoseUp    Pose = "Upward"
	PoseDown  Pose = "Downward"
)

// Poses is the fixed capture order used by enrollment. The first entry is
// the canonical reference compared during login.
var Poses = []Pose{PoseFront, PoseLeft, PoseRight, PoseUp, PoseDown}

// CanonicalPose is the pose the verification loop compares against.
const CanonicalPose = PoseFront

// PoseIndex returns the position of p in Poses, or -1.
func PoseIndex(p Pose) int {
	for i, pose := range Poses {
		if pose == p {
			return i
		}
	}
	return -1
}

// Frame is a single captured camera image, JPEG encoded.
type Frame struct {
	Data       []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Seq        uint64    `json:"seq"`
	CapturedAt time.Time `json:"captured_at"`
}

// Clone returns a copy that does not share the pixel buffer.
func (f Frame) Clone() Frame {
	out := f
	if f.Data != nil {
		out.Data = make([]byte, len(f.Data))
		copy(out.Data, f.Data)
	}
	return out
}

func (f Frame) IsZero() bool {
	return len(f.Data) == 0
}

// ImageRef representa uma imagem de referência gravada na galeria
type ImageRef struct {
	Label      string    `json:"label"`
	Pose       Pose      `json:"pose"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"captured_at"`
}

// Identity representa um usuário cadastrado
type Identity struct {
	Label      string     `json:"label"`
	References []ImageRef `json:"references"`
}

// Canonical returns the Front View reference, if the identity has one.
func (i Identity) Canonical() (ImageRef, bool) {
	for _, ref := range i.References {
		if ref.Pose == CanonicalPose {
			return ref, true
		}
	}
	return ImageRef{}, false
}

// MatchState is the published outcome of the verification loop.
type MatchState struct {
	SessionID       uuid.UUID `json:"session_id"`
	Active          bool      `json:"active"`
	Verified        bool      `json:"verified"`
	MatchedIdentity string    `json:"matched_identity,omitempty"`
	LastCheckedAt   time.Time `json:"last_checked_at"`
	Error           string    `json:"error,omitempty"`
}

// Verification representa um registro de verificação (audit)
type Verification struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Label      string    `json:"label,omitempty"`
	Verified   bool      `json:"verified"`
	Confidence float64   `json:"confidence"`
	Compared   int       `json:"compared"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// VerificationStats summarizes the audit log over a period.
type VerificationStats struct {
	Since        time.Time `json:"since"`
	Attempts     int64     `json:"attempts"`
	Verified     int64     `json:"verified"`
	Sessions     int64     `json:"sessions"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	SuccessRate  float64   `json:"success_rate"`
}
