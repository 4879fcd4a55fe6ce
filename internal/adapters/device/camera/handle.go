// Package camera owns the kiosk camera: it opens a stream through a leased
// slot and turns the latest stream frame into an encoded still.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
)

// Handle controls one camera device. At most one stream is open at a time.
type Handle struct {
	dev  Device
	slot *lease.Slot[Stream]
	log  logger.Logger
	now  func() time.Time
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the handle logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.log = l
		}
	}
}

// WithClock overrides time.Now for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handle) {
		if now != nil {
			h.now = now
		}
	}
}

// New returns a handle for dev.
func New(dev Device, opts ...Option) *Handle {
	h := &Handle{dev: dev, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get().Named("camera")
	}
	h.slot = lease.NewSlot[Stream](lease.KindCamera, lease.WithLogger(h.log), lease.WithClock(h.now))
	return h
}

// Start opens a stream. It fails fast with lease.ErrAlreadyHeld when a
// stream is open or opening, and with lease.ErrAbandoned when Stop ran
// before the device finished opening.
func (h *Handle) Start(ctx context.Context, preferred Resolution, facing Facing) (*lease.Lease[Stream], error) {
	c := Constraints{Preferred: preferred, Facing: facing}
	l, err := h.slot.Acquire(ctx, func(ctx context.Context) (Stream, error) {
		return h.dev.Open(ctx, c)
	}, func(s Stream) error {
		return s.Close()
	})
	if err != nil {
		return nil, err
	}
	h.log.Info(ctx, "camera started",
		logger.String("device", h.dev.Name()),
		logger.String("resolution", l.Value().Resolution().String()),
		logger.String("facing", string(facing)))
	return l, nil
}

// Stop releases the stream. Safe from any state, including while Start is
// still opening the device.
func (h *Handle) Stop() {
	h.slot.Release()
}

// Active reports whether a stream is open.
func (h *Handle) Active() bool {
	return h.slot.Current() != nil
}

// Stats returns open/close counters for the camera slot.
func (h *Handle) Stats() lease.Stats {
	return h.slot.Stats()
}

// CaptureFrame snapshots the latest stream frame, scales it to the profile
// size and encodes it as JPEG.
func (h *Handle) CaptureFrame(ctx context.Context, profile CaptureProfile) (model.CapturedFrame, error) {
	if err := ctx.Err(); err != nil {
		return model.CapturedFrame{}, err
	}
	l := h.slot.Current()
	if l == nil {
		return model.CapturedFrame{}, ErrNoStream
	}
	img, err := l.Value().Latest()
	if err != nil {
		if errors.Is(err, ErrNotReady) || errors.Is(err, lease.ErrUnavailable) {
			return model.CapturedFrame{}, err
		}
		return model.CapturedFrame{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if img == nil || img.Bounds().Empty() {
		return model.CapturedFrame{}, ErrNotReady
	}

	data, w, ht, err := encode(img, profile)
	if err != nil {
		return model.CapturedFrame{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	h.log.Debug(ctx, "frame captured", logger.Int("width", w), logger.Int("height", ht), logger.Int("bytes", len(data)))
	return model.CapturedFrame{
		Data:       data,
		MimeType:   "image/jpeg",
		Width:      w,
		Height:     ht,
		CapturedAt: h.now(),
	}, nil
}

// DefaultReadyPoll is how often CaptureWhenReady re-checks a warming stream.
const DefaultReadyPoll = 100 * time.Millisecond

// CaptureWhenReady retries CaptureFrame every poll while the stream reports
// ErrNotReady, for at most ready. Any other result returns at once.
func (h *Handle) CaptureWhenReady(ctx context.Context, profile CaptureProfile, ready, poll time.Duration) (model.CapturedFrame, error) {
	if poll <= 0 {
		poll = DefaultReadyPoll
	}
	deadline := time.Now().Add(ready)
	for {
		frame, err := h.CaptureFrame(ctx, profile)
		if !errors.Is(err, ErrNotReady) || !time.Now().Before(deadline) {
			return frame, err
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.CapturedFrame{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func encode(src image.Image, p CaptureProfile) ([]byte, int, int, error) {
	b := src.Bounds()
	w, ht := p.Width, p.Height
	if w <= 0 || ht <= 0 {
		w, ht = b.Dx(), b.Dy()
	}
	q := p.Quality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}

	var out image.Image = src
	if w != b.Dx() || ht != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, ht))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: q}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), w, ht, nil
}
