package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func newTestClient(hub *Hub, buffer int, topics ...Topic) *Client {
	c := &Client{hub: hub, topics: make(map[Topic]bool), send: make(chan []byte, buffer)}
	for _, topic := range topics {
		c.topics[topic] = true
	}
	return c
}

func TestNewHub(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHub_AddAndRemoveClient(t *testing.T) {
	hub, _ := testHub(t)
	client := newTestClient(hub, 1)

	require.True(t, hub.Register(client))
	assert.Eventually(t, func() bool { return hub.ConnectedClients(TopicMatch) == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ConnectedClients(TopicMatch) == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-client.send
	assert.False(t, ok, "send channel is closed on unregister")
}

func TestHub_Broadcast(t *testing.T) {
	hub, _ := testHub(t)
	client := newTestClient(hub, 10)
	require.True(t, hub.Register(client))

	hub.Broadcast(TopicMatch, EventMatchUpdated, map[string]bool{"verified": true})

	select {
	case msg := <-client.send:
		var event struct {
			Type EventType       `json:"type"`
			Data map[string]bool `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &event))
		assert.Equal(t, EventMatchUpdated, event.Type)
		assert.True(t, event.Data["verified"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub, _ := testHub(t)
	matchOnly := newTestClient(hub, 10, TopicMatch)
	enrollOnly := newTestClient(hub, 10, TopicEnrollment)
	require.True(t, hub.Register(matchOnly))
	require.True(t, hub.Register(enrollOnly))

	assert.Eventually(t, func() bool { return hub.ConnectedClients(TopicMatch) == 1 }, time.Second, 5*time.Millisecond)
	hub.Broadcast(TopicEnrollment, EventEnrollmentUpdated, "capturing")

	select {
	case <-enrollOnly.send:
	case <-time.After(time.Second):
		t.Fatal("enrollment client should receive the event")
	}

	select {
	case <-matchOnly.send:
		t.Fatal("match client should not receive enrollment events")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub, _ := testHub(t)
	slow := newTestClient(hub, 1)
	require.True(t, hub.Register(slow))

	hub.Broadcast(TopicMatch, EventMatchUpdated, 1)
	hub.Broadcast(TopicMatch, EventMatchUpdated, 2)

	assert.Eventually(t, func() bool { return hub.ConnectedClients(TopicMatch) == 0 }, time.Second, 5*time.Millisecond)

	hub.Unregister(slow)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub, cancel := testHub(t)
	client := newTestClient(hub, 1)
	require.True(t, hub.Register(client))

	cancel()

	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("client not closed on hub shutdown")
	}
	assert.False(t, hub.Register(newTestClient(hub, 1)))
	hub.Unregister(client)
}

func TestForward(t *testing.T) {
	hub, _ := testHub(t)
	client := newTestClient(hub, 10)
	require.True(t, hub.Register(client))

	updates := make(chan string, 2)
	updates <- "a"
	updates <- "b"
	close(updates)

	Forward(context.Background(), hub, TopicEnrollment, EventEnrollmentUpdated, updates)

	for _, want := range []string{"a", "b"} {
		select {
		case msg := <-client.send:
			var event struct {
				Data string `json:"data"`
			}
			require.NoError(t, json.Unmarshal(msg, &event))
			assert.Equal(t, want, event.Data)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for forwarded event")
		}
	}
}

func TestParseTopics(t *testing.T) {
	assert.Empty(t, parseTopics(""))
	assert.Equal(t, map[Topic]bool{TopicMatch: true, TopicEnrollment: true}, parseTopics(" Match, enrollment ,"))
}
