package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/unlockx/internal/domain"
)

// RecorderConfig holds configuration for the recorder
type RecorderConfig struct {
	BufferSize    int           // Channel buffer size (default: 256)
	BatchInterval time.Duration // Flush interval (default: 2 seconds)
	MaxBatchSize  int           // Max entries per write (default: 50)
	WriteTimeout  time.Duration // Per batch write timeout (default: 10 seconds)
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BufferSize:    256,
		BatchInterval: 2 * time.Second,
		MaxBatchSize:  50,
		WriteTimeout:  10 * time.Second,
	}
}

// Recorder buffers verification attempts and writes them to a Sink in
// batches from a background goroutine. Record never blocks the caller.
type Recorder struct {
	sink   Sink
	logger *slog.Logger

	ch chan domain.Verification

	batchInterval time.Duration
	maxBatchSize  int
	writeTimeout  time.Duration

	dropped atomic.Uint64
	written atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewRecorder(sink Sink, logger *slog.Logger, config RecorderConfig) *Recorder {
	def := DefaultRecorderConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.BatchInterval <= 0 {
		config.BatchInterval = def.BatchInterval
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = def.MaxBatchSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}

	return &Recorder{
		sink:          sink,
		logger:        logger.With("component", "audit_recorder"),
		ch:            make(chan domain.Verification, config.BufferSize),
		batchInterval: config.BatchInterval,
		maxBatchSize:  config.MaxBatchSize,
		writeTimeout:  config.WriteTimeout,
		done:          make(chan struct{}),
	}
}

// Start begins the background worker
func (r *Recorder) Start() {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
		r.logger.Info("audit recorder started",
			"buffer_size", cap(r.ch),
			"batch_interval", r.batchInterval,
		)
	})
}

// Stop flushes what is buffered and waits for the worker.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Info("audit recorder stopped", "written", r.written.Load(), "dropped", r.dropped.Load())
	})
}

// Record enqueues v. When the buffer is full the entry is dropped.
func (r *Recorder) Record(v domain.Verification) {
	select {
	case r.ch <- v:
	default:
		r.dropped.Add(1)
		r.logger.Debug("audit entry dropped - buffer full", "session_id", v.SessionID)
	}
}

func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.batchInterval)
	defer ticker.Stop()

	var batch []domain.Verification

	for {
		select {
		case <-r.done:
			for {
				select {
				case v := <-r.ch:
					batch = append(batch, v)
				default:
					r.flush(batch)
					return
				}
			}

		case v := <-r.ch:
			batch = append(batch, v)
			if len(batch) >= r.maxBatchSize {
				r.flush(batch)
				batch = nil
			}

		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = nil
			}
		}
	}
}

func (r *Recorder) flush(batch []domain.Verification) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, batch); err != nil {
		r.logger.Error("failed to write audit batch", "count", len(batch), "error", err)
		return
	}
	r.written.Add(uint64(len(batch)))
	r.logger.Debug("audit batch written", "count", len(batch))
}
