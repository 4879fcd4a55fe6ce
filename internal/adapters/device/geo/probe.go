// Package geo acquires a single bounded geolocation fix through a leased
// positioning watch.
package geo

import (
	"context"
	"time"

	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
)

// Probe runs one-shot location requests against a Sensor. Each Acquire
// holds the geolocation lease only until the first reading, error or
// timeout.
type Probe struct {
	sensor Sensor
	slot   *lease.Slot[Watch]
	maxAge time.Duration
	log    logger.Logger
}

// Option configures a Probe.
type Option func(*Probe)

// WithLogger sets the probe logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Probe) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMaxAge forwards a cached-fix allowance to the sensor.
func WithMaxAge(d time.Duration) Option {
	return func(p *Probe) { p.maxAge = d }
}

// NewProbe returns a probe over sensor.
func NewProbe(sensor Sensor, opts ...Option) *Probe {
	p := &Probe{sensor: sensor}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("geo")
	}
	p.slot = lease.NewSlot[Watch](lease.KindGeolocation, lease.WithLogger(p.log))
	return p
}

// Acquire returns the first fix the sensor reports within timeout. Errors
// are *lease.AcquireError with reason ErrPermissionDenied, ErrUnavailable or
// ErrTimeout. The watch is released before Acquire returns.
func (p *Probe) Acquire(ctx context.Context, timeout time.Duration, highAccuracy bool) (model.LocationFix, error) {
	if timeout <= 0 {
		return model.LocationFix{}, lease.Classify(lease.KindGeolocation, context.DeadlineExceeded)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := Request{HighAccuracy: highAccuracy, MaxAge: p.maxAge}
	type opened struct {
		l   *lease.Lease[Watch]
		err error
	}
	ch := make(chan opened, 1)
	go func() {
		l, err := p.slot.Acquire(ctx, func(ctx context.Context) (Watch, error) {
			return p.sensor.Watch(ctx, req)
		}, func(w Watch) error {
			return w.Close()
		})
		ch <- opened{l: l, err: err}
	}()

	var l *lease.Lease[Watch]
	select {
	case o := <-ch:
		if o.err != nil {
			return model.LocationFix{}, lease.Classify(lease.KindGeolocation, o.err)
		}
		l = o.l
	case <-ctx.Done():
		// A sensor stuck opening is abandoned; its watch closes when it returns.
		p.slot.Release()
		return model.LocationFix{}, lease.Classify(lease.KindGeolocation, ctx.Err())
	}
	defer l.Release()

	select {
	case r := <-l.Value().Readings():
		if r.Err != nil {
			return model.LocationFix{}, lease.Classify(lease.KindGeolocation, r.Err)
		}
		p.log.Debug(ctx, "location fix",
			logger.Float64("lat", r.Fix.Latitude),
			logger.Float64("lon", r.Fix.Longitude),
			logger.Float64("accuracy_m", r.Fix.Accuracy))
		return r.Fix, nil
	case <-ctx.Done():
		return model.LocationFix{}, lease.Classify(lease.KindGeolocation, ctx.Err())
	}
}

// Stop releases any watch in use and abandons one being opened.
func (p *Probe) Stop() {
	p.slot.Release()
}

// Stats returns open/close counters for the geolocation slot.
func (p *Probe) Stats() lease.Stats {
	return p.slot.Stats()
}
