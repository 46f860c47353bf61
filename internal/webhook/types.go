package webhook

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventLoginVerified = "login.verified"

	SignatureHeader = "X-UnlockX-Signature"
	EventHeader     = "X-UnlockX-Event"
	DeliveryHeader  = "X-UnlockX-Delivery"
)

type Config struct {
	URL    string
	Secret string
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration
	// MaxAttempts is the number of deliveries tried before an event is
	// dropped.
	MaxAttempts int
	// RetryBase is the first retry delay; it doubles on each attempt.
	RetryBase time.Duration
	// QueueSize is how many events may wait for delivery.
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxAttempts: 5,
		RetryBase:   time.Second,
		QueueSize:   32,
	}
}

// Event is the JSON body of a delivery.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// LoginData describes a successful login.
type LoginData struct {
	SessionID  uuid.UUID `json:"session_id"`
	Identity   string    `json:"identity"`
	VerifiedAt time.Time `json:"verified_at"`
}

type job struct {
	event    Event
	payload  []byte
	attempts int
}
