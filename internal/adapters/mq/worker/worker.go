// Package worker consumes outcome events and refreshes the cached attendance
// records of each recognized user.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/presence/internal/adapters/mq/queue"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
	"github.com/okian/presence/pkg/metrics"
)

const poolShutdownTimeout = 10 * time.Second

// Event abstracts what workers read off the queue.
type Event = queue.Event

// RecordsSource fetches the backend's recent attendance records.
type RecordsSource interface {
	AttendanceRecords(ctx context.Context, token string) ([]model.AttendanceRecord, error)
}

// RecordsStore caches records per user.
type RecordsStore interface {
	Put(ctx context.Context, userID string, records []model.AttendanceRecord) error
}

// TokenSource supplies the bearer token for record reads.
type TokenSource interface {
	Token(ctx context.Context) string
}

type noToken struct{}

func (noToken) Token(context.Context) string { return "" }

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes outcome events.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker refreshes records after every Recognized outcome.
type InMemoryWorker struct {
	queue  Queue
	source RecordsSource
	store  RecordsStore
	tokens TokenSource
	name   string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, source RecordsSource, store RecordsStore, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		source:   source,
		store:    store,
		tokens:   noToken{},
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	eventChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processEvent refreshes the cached records of a recognized user. Other
// outcomes are ignored.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) error { //nolint:gocritic // hugeParam: Event must be passed by value for channel semantics
	o := event.Outcome
	if o.Kind != model.OutcomeRecognized || o.Recognition == nil || o.Recognition.UserID == "" {
		return nil
	}
	userID := o.Recognition.UserID

	all, err := w.source.AttendanceRecords(ctx, w.tokens.Token(ctx))
	if err != nil {
		metrics.RecordWorkerError("records_fetch")
		return fmt.Errorf("fetch records for event %s: %w", event.EventID, err)
	}
	mine := make([]model.AttendanceRecord, 0, len(all))
	for _, r := range all {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	if err := w.store.Put(ctx, userID, mine); err != nil {
		metrics.RecordWorkerError("records_store")
		return fmt.Errorf("store records for event %s: %w", event.EventID, err)
	}
	w.logger.Debug(ctx, "records refreshed",
		logger.String("event_id", event.EventID),
		logger.String("user_id", userID),
		logger.Int("records", len(mine)))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A kiosk rarely needs more than one worker.
func NewPool(workerCount int, queue Queue, source RecordsSource, store RecordsStore, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, source, store, wopts...)
	}
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for _, worker := range p.workers {
		close(worker.shutdown)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
