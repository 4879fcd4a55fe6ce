// Package lease provides exclusive, release-once ownership of hardware
// resources such as a camera stream or a geolocation watch.
//
// A Slot holds at most one live Lease. Acquiring a held slot fails fast with
// ErrAlreadyHeld instead of opening a second handle. Releasing is idempotent
// and never fails; close errors are logged and swallowed.
package lease

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/presence/pkg/logger"
	"github.com/okian/presence/pkg/metrics"
)

// Kind names a class of exclusive resource.
type Kind string

// Resource kinds owned by a capture session.
const (
	KindCamera      Kind = "camera"
	KindGeolocation Kind = "geolocation"
)

// Lease is ownership of one opened resource. It is never reused after Release.
type Lease[T any] struct {
	id         uint64
	kind       Kind
	value      T
	acquiredAt time.Time

	once      sync.Once
	released  atomic.Bool
	closeFn   func(T) error
	onRelease func(*Lease[T])
	log       logger.Logger
}

// ID is unique per slot and increases with every acquire.
func (l *Lease[T]) ID() uint64 { return l.id }

// Kind returns the resource kind.
func (l *Lease[T]) Kind() Kind { return l.kind }

// Value returns the leased handle.
func (l *Lease[T]) Value() T { return l.value }

// AcquiredAt returns when the resource was opened.
func (l *Lease[T]) AcquiredAt() time.Time { return l.acquiredAt }

// Released reports whether Release has run.
func (l *Lease[T]) Released() bool { return l.released.Load() }

// Release closes the underlying handle exactly once. Safe on a nil lease.
func (l *Lease[T]) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error(context.Background(), "resource close panicked",
					logger.String("kind", string(l.kind)), logger.Uint64("lease", l.id), logger.Any("panic", r))
			}
			l.released.Store(true)
			if l.onRelease != nil {
				l.onRelease(l)
			}
		}()
		if l.closeFn == nil {
			return
		}
		if err := l.closeFn(l.value); err != nil {
			l.log.Warn(context.Background(), "resource close failed",
				logger.String("kind", string(l.kind)), logger.Uint64("lease", l.id), logger.Error(err))
		}
	})
}

// Stats counts opened and closed handles for a slot. After every lease
// has been released Opened equals Closed.
type Stats struct {
	Opened    uint64 `json:"opened"`
	Closed    uint64 `json:"closed"`
	Abandoned uint64 `json:"abandoned"`
	Live      bool   `json:"live"`
	Pending   bool   `json:"pending"`
}

// Slot enforces a single live lease of one kind.
type Slot[T any] struct {
	kind Kind
	log  logger.Logger
	now  func() time.Time

	mu      sync.Mutex
	current *Lease[T]
	pending bool
	gen     uint64
	nextID  uint64
	stats   Stats
}

// Option configures a Slot.
type Option func(*slotConfig)

type slotConfig struct {
	log logger.Logger
	now func() time.Time
}

// WithLogger sets the slot logger.
func WithLogger(l logger.Logger) Option {
	return func(c *slotConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides time.Now for acquisition timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *slotConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// NewSlot returns an empty slot for kind.
func NewSlot[T any](kind Kind, opts ...Option) *Slot[T] {
	cfg := slotConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logger.Get().Named("lease")
	}
	return &Slot[T]{
		kind: kind,
		log:  cfg.log.With(logger.String("kind", string(kind))),
		now:  cfg.now,
	}
}

// Kind returns the slot's resource kind.
func (s *Slot[T]) Kind() Kind { return s.kind }

// Acquire opens a resource with open and wraps it in a lease released via closeFn.
//
// open runs without the slot lock held so a slow permission prompt does not
// block Release. If Release is called while open is in flight the freshly
// opened handle is closed and ErrAbandoned is returned.
func (s *Slot[T]) Acquire(ctx context.Context, open func(context.Context) (T, error), closeFn func(T) error) (*Lease[T], error) {
	s.mu.Lock()
	if s.pending || (s.current != nil && !s.current.Released()) {
		s.mu.Unlock()
		metrics.RecordLeaseAcquire(string(s.kind), ReasonName(ErrAlreadyHeld))
		return nil, fmt.Errorf("%s: %w", s.kind, ErrAlreadyHeld)
	}
	s.pending = true
	s.stats.Pending = true
	gen := s.gen
	s.mu.Unlock()

	value, err := open(ctx)

	s.mu.Lock()
	s.pending = false
	s.stats.Pending = false
	if err != nil {
		s.mu.Unlock()
		err = Classify(s.kind, err)
		metrics.RecordLeaseAcquire(string(s.kind), ReasonName(err))
		s.log.Debug(ctx, "acquire failed", logger.Error(err))
		return nil, err
	}
	s.stats.Opened++
	if gen != s.gen {
		s.stats.Abandoned++
		s.stats.Closed++
		s.mu.Unlock()
		if closeFn != nil {
			if cerr := closeFn(value); cerr != nil {
				s.log.Warn(ctx, "closing abandoned resource failed", logger.Error(cerr))
			}
		}
		metrics.RecordLeaseAcquire(string(s.kind), ReasonName(ErrAbandoned))
		s.log.Debug(ctx, "acquire abandoned")
		return nil, fmt.Errorf("%s: %w", s.kind, ErrAbandoned)
	}
	s.nextID++
	l := &Lease[T]{
		id:         s.nextID,
		kind:       s.kind,
		value:      value,
		acquiredAt: s.now(),
		closeFn:    closeFn,
		onRelease:  s.released,
		log:        s.log,
	}
	s.current = l
	s.stats.Live = true
	s.mu.Unlock()

	metrics.RecordLeaseAcquire(string(s.kind), "ok")
	s.log.Debug(ctx, "lease acquired", logger.Uint64("lease", l.id))
	return l, nil
}

func (s *Slot[T]) released(l *Lease[T]) {
	s.mu.Lock()
	s.stats.Closed++
	if s.current == l {
		s.current = nil
		s.stats.Live = false
	}
	s.mu.Unlock()
	metrics.RecordLeaseRelease(string(s.kind))
	s.log.Debug(context.Background(), "lease released", logger.Uint64("lease", l.id))
}

// Current returns the live lease, or nil.
func (s *Slot[T]) Current() *Lease[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Release releases the live lease and abandons any acquire in flight.
// Safe to call any number of times from any goroutine.
func (s *Slot[T]) Release() {
	s.mu.Lock()
	s.gen++
	l := s.current
	s.mu.Unlock()
	l.Release()
}

// Stats returns a snapshot of the slot's counters.
func (s *Slot[T]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
