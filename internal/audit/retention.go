package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pruner deletes audit entries older than a given age.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// Retention periodically prunes the audit log.
type Retention struct {
	pruner   Pruner
	logger   *slog.Logger
	maxAge   time.Duration
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewRetention creates a retention worker keeping maxAge of history.
func NewRetention(pruner Pruner, logger *slog.Logger, maxAge, interval time.Duration) *Retention {
	if interval == 0 {
		interval = time.Hour
	}

	return &Retention{
		pruner:   pruner,
		logger:   logger.With("component", "audit_retention"),
		maxAge:   maxAge,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start prunes once, then every interval, until ctx is done or Stop is
// called. It blocks.
func (r *Retention) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("audit retention started", "max_age", r.maxAge, "interval", r.interval)
	r.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("audit retention stopped")
			return
		case <-r.done:
			r.logger.Info("audit retention stopped")
			return
		case <-ticker.C:
			r.prune(ctx)
		}
	}
}

func (r *Retention) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Retention) prune(ctx context.Context) {
	deleted, err := r.pruner.DeleteOlderThan(ctx, r.maxAge)
	if err != nil {
		r.logger.Error("failed to delete old verifications", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("deleted old verifications", "count", deleted)
	}
}
