package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type receiver struct {
	mu       sync.Mutex
	bodies   [][]byte
	headers  []http.Header
	failures atomic.Int32
}

// handler answers 500 for the first failures requests, then 204.
func (r *receiver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		r.headers = append(r.headers, req.Header.Clone())
		r.mu.Unlock()

		if r.failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (r *receiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func newTestNotifier(t *testing.T, url string, maxAttempts int) *Notifier {
	t.Helper()
	n := NewNotifier(Config{
		URL:         url,
		Secret:      "s3cret",
		MaxAttempts: maxAttempts,
		RetryBase:   5 * time.Millisecond,
	}, testLogger())
	n.Start()
	t.Cleanup(n.Stop)
	return n
}

func TestNotifier_DeliversSignedEvent(t *testing.T) {
	rcv := &receiver{}
	server := httptest.NewServer(rcv.handler())
	defer server.Close()

	n := newTestNotifier(t, server.URL, 3)
	sessionID := uuid.New()
	n.Notify(EventLoginVerified, LoginData{SessionID: sessionID, Identity: "DOE"})

	require.Eventually(t, func() bool { return n.Delivered() == 1 }, time.Second, 5*time.Millisecond)

	rcv.mu.Lock()
	defer rcv.mu.Unlock()
	require.Len(t, rcv.bodies, 1)

	body, header := rcv.bodies[0], rcv.headers[0]
	assert.True(t, Verify("s3cret", body, header.Get(SignatureHeader)))
	assert.Equal(t, EventLoginVerified, header.Get(EventHeader))
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	var event struct {
		ID   uuid.UUID `json:"id"`
		Type string    `json:"type"`
		Data LoginData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, event.ID.String(), header.Get(DeliveryHeader))
	assert.Equal(t, sessionID, event.Data.SessionID)
	assert.Equal(t, "DOE", event.Data.Identity)
}

func TestNotifier_RetriesUntilSuccess(t *testing.T) {
	rcv := &receiver{}
	rcv.failures.Store(2)
	server := httptest.NewServer(rcv.handler())
	defer server.Close()

	n := newTestNotifier(t, server.URL, 5)
	n.Notify(EventLoginVerified, LoginData{Identity: "DOE"})

	require.Eventually(t, func() bool { return n.Delivered() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, rcv.count())
	assert.Zero(t, n.Failed())

	rcv.mu.Lock()
	defer rcv.mu.Unlock()
	assert.Equal(t, rcv.headers[0].Get(DeliveryHeader), rcv.headers[2].Get(DeliveryHeader), "retries reuse the delivery id")
}

func TestNotifier_GivesUpAfterMaxAttempts(t *testing.T) {
	rcv := &receiver{}
	rcv.failures.Store(100)
	server := httptest.NewServer(rcv.handler())
	defer server.Close()

	n := newTestNotifier(t, server.URL, 3)
	n.Notify(EventLoginVerified, LoginData{Identity: "DOE"})

	require.Eventually(t, func() bool { return n.Failed() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, rcv.count())
	assert.Zero(t, n.Delivered())
}

func TestNotifier_WatchLogins(t *testing.T) {
	rcv := &receiver{}
	server := httptest.NewServer(rcv.handler())
	defer server.Close()

	n := newTestNotifier(t, server.URL, 1)

	first, second := uuid.New(), uuid.New()
	updates := make(chan domain.MatchState, 8)
	updates <- domain.MatchState{SessionID: first, Active: true}
	updates <- domain.MatchState{SessionID: first, Active: true, Verified: true, MatchedIdentity: "DOE"}
	updates <- domain.MatchState{SessionID: first, Active: false, Verified: true, MatchedIdentity: "DOE"}
	updates <- domain.MatchState{SessionID: second, Active: true}
	updates <- domain.MatchState{SessionID: second, Active: true, Verified: true, MatchedIdentity: "ROE"}
	close(updates)

	done := make(chan struct{})
	go func() {
		n.WatchLogins(context.Background(), updates)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchLogins did not return after updates closed")
	}

	require.Eventually(t, func() bool { return n.Delivered() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, rcv.count(), "one event per verified session")
}

func TestNotifier_StopAbandonsRetries(t *testing.T) {
	rcv := &receiver{}
	rcv.failures.Store(100)
	server := httptest.NewServer(rcv.handler())
	defer server.Close()

	n := NewNotifier(Config{URL: server.URL, MaxAttempts: 10, RetryBase: time.Hour}, testLogger())
	n.Start()
	n.Notify(EventLoginVerified, LoginData{Identity: "DOE"})
	require.Eventually(t, func() bool { return rcv.count() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		n.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a pending retry")
	}
	assert.Equal(t, uint64(1), n.Failed())
}
