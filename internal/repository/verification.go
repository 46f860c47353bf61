package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
}

// VerificationRepositoryInterface defines the audit log operations.
type VerificationRepositoryInterface interface {
	Create(ctx context.Context, v *domain.Verification) error
	CreateBatch(ctx context.Context, vs []domain.Verification) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Verification, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Verification, error)
	Stats(ctx context.Context, since time.Time) (domain.VerificationStats, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

var verificationColumns = []string{"id", "session_id", "label", "verified", "confidence", "compared", "latency_ms", "created_at"}

type VerificationRepository struct {
	pool PgxPool
}

func NewVerificationRepository(pool PgxPool) *VerificationRepository {
	return &VerificationRepository{pool: pool}
}

func (r *VerificationRepository) Create(ctx context.Context, v *domain.Verification) error {
	query := `
		INSERT INTO verifications (id, session_id, label, verified, confidence, compared, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, query,
		v.ID,
		v.SessionID,
		v.Label,
		v.Verified,
		v.Confidence,
		v.Compared,
		v.LatencyMs,
	).Scan(&v.CreatedAt)

	if err != nil {
		return fmt.Errorf("create verification: %w", err)
	}

	return nil
}

// CreateBatch writes vs with COPY. Entries without an ID or timestamp get
// one assigned.
func (r *VerificationRepository) CreateBatch(ctx context.Context, vs []domain.Verification) (int64, error) {
	if len(vs) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(vs))
	for _, v := range vs {
		if v.ID == uuid.Nil {
			v.ID = uuid.New()
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = time.Now()
		}
		rows = append(rows, []any{v.ID, v.SessionID, v.Label, v.Verified, v.Confidence, v.Compared, v.LatencyMs, v.CreatedAt})
	}

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"verifications"}, verificationColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("create verification batch: %w", err)
	}
	return n, nil
}

func (r *VerificationRepository) ListRecent(ctx context.Context, limit int) ([]domain.Verification, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, session_id, label, verified, confidence, compared, latency_ms, created_at
		FROM verifications
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	return scanVerifications(rows, "list verifications")
}

func (r *VerificationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Verification, error) {
	query := `
		SELECT id, session_id, label, verified, confidence, compared, latency_ms, created_at
		FROM verifications
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session verifications: %w", err)
	}
	defer rows.Close()

	return scanVerifications(rows, "list session verifications")
}

// Stats aggregates the entries created at or after since.
func (r *VerificationRepository) Stats(ctx context.Context, since time.Time) (domain.VerificationStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE verified),
			COUNT(DISTINCT session_id),
			COALESCE(AVG(latency_ms), 0)
		FROM verifications
		WHERE created_at >= $1
	`

	stats := domain.VerificationStats{Since: since}
	err := r.pool.QueryRow(ctx, query, since).Scan(
		&stats.Attempts,
		&stats.Verified,
		&stats.Sessions,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return domain.VerificationStats{}, fmt.Errorf("verification stats: %w", err)
	}

	if stats.Attempts > 0 {
		stats.SuccessRate = float64(stats.Verified) / float64(stats.Attempts)
	}
	return stats, nil
}

// DeleteOlderThan removes entries older than age.
func (r *VerificationRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `
		DELETE FROM verifications
		WHERE created_at < $1
	`

	cutoff := time.Now().Add(-age)
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old verifications: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanVerifications(rows pgx.Rows, op string) ([]domain.Verification, error) {
	out := make([]domain.Verification, 0)
	for rows.Next() {
		var v domain.Verification
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Label, &v.Verified, &v.Confidence, &v.Compared, &v.LatencyMs, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
