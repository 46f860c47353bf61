package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

func TestSlogSink_Write(t *testing.T) {
	tests := []struct {
		name          string
		entry         domain.Verification
		wantEventType EventType
	}{
		{
			name:          "verified login",
			entry:         domain.Verification{SessionID: uuid.New(), Label: "DOE", Verified: true, Confidence: 0.93},
			wantEventType: EventLoginVerified,
		},
		{
			name:          "rejected attempt",
			entry:         domain.Verification{SessionID: uuid.New(), Compared: 3},
			wantEventType: EventLoginRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

			err := sink.Write(context.Background(), []domain.Verification{tt.entry})
			require.NoError(t, err)

			output := buf.String()
			assert.Contains(t, output, "audit_event")
			assert.Contains(t, output, string(tt.wantEventType))
			assert.Contains(t, output, tt.entry.SessionID.String())
			if tt.entry.Label != "" {
				assert.Contains(t, output, tt.entry.Label)
			}
		})
	}
}

func TestSlogSink_Write_GeneratesID(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := sink.Write(context.Background(), []domain.Verification{{SessionID: uuid.New()}, {SessionID: uuid.New()}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	eventID, ok := entry["event_id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(eventID)
	assert.NoError(t, err)
	assert.Equal(t, "audit", entry["component"])
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]domain.Verification
	err     error
}

func (s *fakeSink) Write(_ context.Context, batch []domain.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]domain.Verification(nil), batch...))
	return nil
}

func (s *fakeSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *fakeSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_FlushesOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder(sink, discardLogger(), RecorderConfig{BatchInterval: time.Hour, MaxBatchSize: 3})
	r.Start()
	defer r.Stop()

	for i := 0; i < 3; i++ {
		r.Record(domain.Verification{SessionID: uuid.New()})
	}

	assert.Eventually(t, func() bool { return sink.total() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sink.batchCount())
	assert.Equal(t, uint64(3), r.Written())
}

func TestRecorder_FlushesOnInterval(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder(sink, discardLogger(), RecorderConfig{BatchInterval: 20 * time.Millisecond, MaxBatchSize: 100})
	r.Start()
	defer r.Stop()

	r.Record(domain.Verification{SessionID: uuid.New()})

	assert.Eventually(t, func() bool { return sink.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestRecorder_StopFlushesPending(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder(sink, discardLogger(), RecorderConfig{BatchInterval: time.Hour, MaxBatchSize: 100})
	r.Start()

	for i := 0; i < 5; i++ {
		r.Record(domain.Verification{SessionID: uuid.New()})
	}
	r.Stop()
	r.Stop()

	assert.Equal(t, 5, sink.total())
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	sink := &fakeSink{}
	r := NewRecorder(sink, discardLogger(), RecorderConfig{BufferSize: 2})

	for i := 0; i < 5; i++ {
		r.Record(domain.Verification{SessionID: uuid.New()})
	}

	assert.Equal(t, uint64(3), r.Dropped())

	r.Start()
	r.Stop()
	assert.Equal(t, 2, sink.total())
}

func TestRecorder_SinkErrorIsNotFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("database down")}
	r := NewRecorder(sink, discardLogger(), RecorderConfig{BatchInterval: 10 * time.Millisecond})
	r.Start()

	r.Record(domain.Verification{SessionID: uuid.New()})
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	assert.Zero(t, r.Written())
}

type fakeBatchWriter struct {
	got []domain.Verification
}

func (w *fakeBatchWriter) CreateBatch(_ context.Context, vs []domain.Verification) (int64, error) {
	w.got = append(w.got, vs...)
	return int64(len(vs)), nil
}

func TestRepositorySink_Write(t *testing.T) {
	w := &fakeBatchWriter{}
	sink := NewRepositorySink(w)

	err := sink.Write(context.Background(), []domain.Verification{{Label: "DOE", Verified: true}})

	require.NoError(t, err)
	require.Len(t, w.got, 1)
	assert.Equal(t, "DOE", w.got[0].Label)
}

func TestNoOpSink(t *testing.T) {
	assert.NoError(t, NoOpSink{}.Write(context.Background(), []domain.Verification{{}}))
}
