// Package notify contains outcome sinks: the board the control API reads,
// a log sink and a sink that publishes outcomes for background workers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/presence/internal/adapters/mq/queue"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
)

// Sink renders outcomes. It matches session.Sink.
type Sink interface {
	Show(ctx context.Context, o model.Outcome)
}

// Board holds the single message currently on display. A new outcome,
// including an attempt's InProgress placeholder, replaces the old one;
// nothing is queued.
type Board struct {
	mu      sync.RWMutex
	current model.Outcome
	shown   bool
	version uint64
}

// NewBoard returns an empty board.
func NewBoard() *Board { return &Board{} }

// Show implements Sink. The zero Outcome clears the board.
func (b *Board) Show(_ context.Context, o model.Outcome) {
	b.mu.Lock()
	b.current = o
	b.shown = o.Kind != ""
	b.version++
	b.mu.Unlock()
}

// Current returns the displayed outcome and its version. ok is false when
// nothing has been shown yet.
func (b *Board) Current() (o model.Outcome, version uint64, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.version, b.shown
}

// Clear dismisses the displayed message.
func (b *Board) Clear() {
	b.mu.Lock()
	b.current = model.Outcome{}
	b.shown = false
	b.version++
	b.mu.Unlock()
}

// LogSink writes every terminal outcome to a logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a sink logging to l, or to the global logger when nil.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("notify")
	}
	return &LogSink{log: l}
}

// Show implements Sink.
func (s *LogSink) Show(ctx context.Context, o model.Outcome) {
	if !o.Terminal() {
		return
	}
	fields := []logger.Field{
		logger.String("attempt", o.AttemptID.String()),
		logger.String("outcome", string(o.Kind)),
		logger.String("text", o.Text()),
	}
	if o.FailureKind != "" {
		fields = append(fields, logger.String("failure", string(o.FailureKind)))
	}
	if w := o.Warning(); w != "" {
		s.log.Warn(ctx, "outcome shown with warning", append(fields, logger.String("warning", w))...)
		return
	}
	s.log.Info(ctx, "outcome shown", fields...)
}

// Publisher accepts outcome events without blocking.
type Publisher interface {
	Enqueue(ctx context.Context, e queue.Event) bool
}

// QueueSink publishes every terminal outcome as an OutcomeEvent. A full queue drops
// the event; the display path never waits on consumers.
type QueueSink struct {
	pub       Publisher
	sessionID string
	now       func() time.Time
	log       logger.Logger
}

// NewQueueSink returns a sink publishing events tagged with sessionID.
func NewQueueSink(pub Publisher, sessionID string, l logger.Logger) *QueueSink {
	if l == nil {
		l = logger.Get().Named("notify")
	}
	return &QueueSink{pub: pub, sessionID: sessionID, now: time.Now, log: l}
}

// Show implements Sink.
func (s *QueueSink) Show(ctx context.Context, o model.Outcome) {
	if !o.Terminal() {
		return
	}
	e := model.OutcomeEvent{
		EventID:   uuid.NewString(),
		SessionID: s.sessionID,
		Outcome:   o,
		TS:        s.now(),
	}
	if !s.pub.Enqueue(ctx, e) {
		s.log.Warn(ctx, "outcome event dropped", logger.String("event_id", e.EventID), logger.String("outcome", string(o.Kind)))
	}
}

// Multi fans an outcome out to several sinks in order.
type Multi []Sink

// Show implements Sink.
func (m Multi) Show(ctx context.Context, o model.Outcome) {
	for _, s := range m {
		if s != nil {
			s.Show(ctx, o)
		}
	}
}
