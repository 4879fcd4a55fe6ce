package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
)

// Request carries the positioning options forwarded to a Sensor.
type Request struct {
	HighAccuracy bool
	// MaxAge allows a cached fix no older than this to be returned.
	MaxAge time.Duration
}

// Reading is one sensor result: a fix or an error.
type Reading struct {
	Fix model.LocationFix
	Err error
}

// Watch is an open positioning request. It delivers readings until closed.
type Watch interface {
	Readings() <-chan Reading
	Close() error
}

// Sensor opens positioning watches.
type Sensor interface {
	Name() string
	Watch(ctx context.Context, req Request) (Watch, error)
}

// Static reports fixed coordinates after an optional delay. A fix younger
// than the request's MaxAge is served from cache without delay.
type Static struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
	Delay     time.Duration
	Now       func() time.Time

	mu   sync.Mutex
	last *model.LocationFix
}

// Name implements Sensor.
func (s *Static) Name() string { return "static" }

// Watch implements Sensor.
func (s *Static) Watch(_ context.Context, req Request) (Watch, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	w := newChanWatch()

	s.mu.Lock()
	cached := s.last
	s.mu.Unlock()
	if cached != nil && req.MaxAge > 0 && now().Sub(cached.AcquiredAt) <= req.MaxAge {
		w.deliver(Reading{Fix: *cached})
		return w, nil
	}

	acc := s.Accuracy
	if !req.HighAccuracy && acc > 0 {
		acc *= 10
	}
	go func() {
		if s.Delay > 0 {
			t := time.NewTimer(s.Delay)
			defer t.Stop()
			select {
			case <-w.done:
				return
			case <-t.C:
			}
		}
		fix := model.LocationFix{Latitude: s.Latitude, Longitude: s.Longitude, Accuracy: acc, AcquiredAt: now()}
		s.mu.Lock()
		s.last = &fix
		s.mu.Unlock()
		w.deliver(Reading{Fix: fix})
	}()
	return w, nil
}

// Disabled models a device without positioning hardware.
type Disabled struct{}

// Name implements Sensor.
func (Disabled) Name() string { return "disabled" }

// Watch implements Sensor.
func (Disabled) Watch(context.Context, Request) (Watch, error) {
	return nil, fmt.Errorf("location services disabled: %w", lease.ErrUnavailable)
}

// Denied models a kiosk without location consent.
type Denied struct{}

// Name implements Sensor.
func (Denied) Name() string { return "denied" }

// Watch implements Sensor.
func (Denied) Watch(context.Context, Request) (Watch, error) {
	return nil, fmt.Errorf("location consent not granted: %w", lease.ErrPermissionDenied)
}

type chanWatch struct {
	ch   chan Reading
	done chan struct{}
	once sync.Once
}

func newChanWatch() *chanWatch {
	return &chanWatch{ch: make(chan Reading, 1), done: make(chan struct{})}
}

func (w *chanWatch) deliver(r Reading) {
	select {
	case <-w.done:
	case w.ch <- r:
	default:
	}
}

func (w *chanWatch) Readings() <-chan Reading { return w.ch }

func (w *chanWatch) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}
