package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// EventType defines the type of auditable event
type EventType string

const (
	EventLoginVerified EventType = "LOGIN_VERIFIED"
	EventLoginRejected EventType = "LOGIN_REJECTED"
)

// Sink persists a batch of verification attempts.
type Sink interface {
	Write(ctx context.Context, batch []domain.Verification) error
}

// BatchWriter is the repository side of a database sink.
type BatchWriter interface {
	CreateBatch(ctx context.Context, vs []domain.Verification) (int64, error)
}

// RepositorySink writes batches through the verification repository.
type RepositorySink struct {
	repo BatchWriter
}

func NewRepositorySink(repo BatchWriter) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Write(ctx context.Context, batch []domain.Verification) error {
	_, err := s.repo.CreateBatch(ctx, batch)
	return err
}

// SlogSink writes one structured audit_event line per attempt. It is used
// when no database is configured.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{
		logger: logger.With("component", "audit"),
	}
}

func (s *SlogSink) Write(ctx context.Context, batch []domain.Verification) error {
	for _, v := range batch {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now().UTC()
		}

		eventType := EventLoginRejected
		if v.Verified {
			eventType = EventLoginVerified
		}

		data, err := json.Marshal(v)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to marshal audit event",
				slog.String("error", err.Error()),
				slog.String("event_type", string(eventType)),
			)
			return err
		}

		s.logger.InfoContext(ctx, "audit_event",
			slog.String("event_id", v.ID.String()),
			slog.String("event_type", string(eventType)),
			slog.String("session_id", v.SessionID.String()),
			slog.Bool("verified", v.Verified),
			slog.String("event_data", string(data)),
		)
	}
	return nil
}

// NoOpSink drops everything.
type NoOpSink struct{}

func (NoOpSink) Write(_ context.Context, _ []domain.Verification) error {
	return nil
}
