package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/pipeline"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("extraction queue closed")

// Job is one document waiting for extraction.
type Job struct {
	DocumentID  uuid.UUID
	Path        string
	Schema      *schema.Schema
	SubmittedAt time.Time
}

// FileExtractor runs a full extraction for one file.
type FileExtractor interface {
	ExtractFile(ctx context.Context, docID uuid.UUID, path string, s *schema.Schema) (pipeline.Result, error)
}

// ResultHandler receives every finished job.
type ResultHandler func(job Job, res pipeline.Result, err error)

// Queue runs extractions on a fixed pool of workers. Each document is handled
// by exactly one worker.
type Queue struct {
	proc     FileExtractor
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onResult ResultHandler
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithResultHandler(h ResultHandler) Option {
	return func(q *Queue) { q.onResult = h }
}

func NewQueue(proc FileExtractor, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.metrics.SetQueueDepth(len(q.ch))
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	res, err := q.proc.ExtractFile(ctx, job.DocumentID, job.Path, job.Schema)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "document_id", job.DocumentID, "path", job.Path, "error", err)
	} else {
		q.logger.Info("processed document successfully",
			"worker_id", workerID,
			"document_id", job.DocumentID,
			"fields", len(res.Fields),
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	if q.onResult != nil {
		q.onResult(job, res, err)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "document_id", job.DocumentID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.metrics.SetQueueDepth(len(q.ch))
	q.logger.Info("queued document for extraction", "document_id", job.DocumentID, "path", job.Path)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish or for
// ctx to end.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
