package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/okian/presence/internal/domain/lease"
)

// TestPattern is a synthetic camera producing a moving gradient. The first
// frame becomes available FirstFrame after the stream opens.
type TestPattern struct {
	Size       Resolution
	FirstFrame time.Duration
	// OpenDelay simulates a slow permission prompt.
	OpenDelay time.Duration
	Now       func() time.Time
}

// Name implements Device.
func (t *TestPattern) Name() string { return "test-pattern" }

// Open implements Device.
func (t *TestPattern) Open(ctx context.Context, c Constraints) (Stream, error) {
	if t.OpenDelay > 0 {
		timer := time.NewTimer(t.OpenDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	size := t.Size
	if c.Preferred.Valid() {
		size = c.Preferred
	}
	if !size.Valid() {
		size = Resolution{Width: 1280, Height: 720}
	}
	now := t.Now
	if now == nil {
		now = time.Now
	}
	return &patternStream{size: size, readyAt: now().Add(t.FirstFrame), now: now}, nil
}

type patternStream struct {
	size    Resolution
	readyAt time.Time
	now     func() time.Time

	mu     sync.Mutex
	frame  uint64
	closed bool
}

func (s *patternStream) Resolution() Resolution { return s.size }

func (s *patternStream) Latest() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("test pattern stream closed: %w", lease.ErrUnavailable)
	}
	if s.now().Before(s.readyAt) {
		return nil, ErrNotReady
	}
	s.frame++
	img := image.NewRGBA(image.Rect(0, 0, s.size.Width, s.size.Height))
	shift := uint8(s.frame)
	for y := 0; y < s.size.Height; y++ {
		for x := 0; x < s.size.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/s.size.Width) + shift,
				G: uint8(y * 255 / s.size.Height),
				B: shift,
				A: 0xff,
			})
		}
	}
	return img, nil
}

func (s *patternStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
