package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// Notifier delivers signed events to one URL. Failed deliveries are retried
// with exponential backoff; events are kept in memory only.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	queue    chan job
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	delivered atomic.Uint64
	failed    atomic.Uint64
}

func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With("component", "webhook"),
		queue:  make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.run()
	n.logger.Info("webhook notifier started", "url", n.cfg.URL)
}

// Stop abandons pending retries and waits for the worker to exit.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		n.wg.Wait()
		n.logger.Info("webhook notifier stopped", "delivered", n.delivered.Load(), "failed", n.failed.Load())
	})
}

// Notify queues an event. It never blocks; a full queue drops the event.
func (n *Notifier) Notify(eventType string, data interface{}) {
	event := Event{ID: uuid.New(), Type: eventType, Data: data, Timestamp: time.Now().UTC()}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("failed to marshal webhook event", "type", eventType, "error", err)
		return
	}

	select {
	case n.queue <- job{event: event, payload: payload}:
	default:
		n.failed.Add(1)
		n.logger.Warn("webhook queue full, dropping event", "event_id", event.ID, "type", eventType)
	}
}

// WatchLogins sends one login.verified event per verified session until
// updates is closed or ctx is done.
func (n *Notifier) WatchLogins(ctx context.Context, updates <-chan domain.MatchState) {
	var last uuid.UUID
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-updates:
			if !ok {
				return
			}
			if !state.Verified || state.SessionID == last {
				continue
			}
			last = state.SessionID
			n.Notify(EventLoginVerified, LoginData{
				SessionID:  state.SessionID,
				Identity:   state.MatchedIdentity,
				VerifiedAt: state.LastCheckedAt,
			})
		}
	}
}

func (n *Notifier) Delivered() uint64 {
	return n.delivered.Load()
}

func (n *Notifier) Failed() uint64 {
	return n.failed.Load()
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for {
		select {
		case <-n.stopCh:
			return
		case j := <-n.queue:
			n.deliver(j)
		}
	}
}

// deliver tries j until it succeeds, runs out of attempts or the notifier
// stops.
func (n *Notifier) deliver(j job) {
	logger := n.logger.With("event_id", j.event.ID, "type", j.event.Type)

	for {
		err := n.send(j)
		j.attempts++
		if err == nil {
			n.delivered.Add(1)
			logger.Info("webhook delivered", "attempts", j.attempts)
			return
		}
		if j.attempts >= n.cfg.MaxAttempts {
			n.failed.Add(1)
			logger.Error("webhook delivery failed", "attempts", j.attempts, "error", err)
			return
		}

		delay := n.cfg.RetryBase * time.Duration(1<<(j.attempts-1))
		logger.Info("webhook scheduled for retry", "attempts", j.attempts, "delay", delay, "error", err)

		select {
		case <-n.stopCh:
			n.failed.Add(1)
			return
		case <-time.After(delay):
		}
	}
}

func (n *Notifier) send(j job) error {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(j.payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, j.event.Type)
	req.Header.Set(DeliveryHeader, j.event.ID.String())
	req.Header.Set("User-Agent", "UnlockX-Webhook/1.0")
	if n.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.cfg.Secret, j.payload))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}
