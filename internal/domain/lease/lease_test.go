package lease_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type handle struct {
	id     int
	closed atomic.Int32
}

func openHandle(n *atomic.Int32) func(context.Context) (*handle, error) {
	return func(context.Context) (*handle, error) {
		return &handle{id: int(n.Add(1))}, nil
	}
}

func closeHandle(h *handle) error {
	h.closed.Add(1)
	return nil
}

func TestSlotAcquireRelease(t *testing.T) {
	Convey("Given an empty camera slot", t, func() {
		slot := lease.NewSlot[*handle](lease.KindCamera, lease.WithLogger(logger.Nop()))
		var opened atomic.Int32
		ctx := context.Background()

		Convey("When acquiring a lease", func() {
			l, err := slot.Acquire(ctx, openHandle(&opened), closeHandle)

			Convey("Then it is live and owned by the slot", func() {
				So(err, ShouldBeNil)
				So(l.ID(), ShouldEqual, 1)
				So(l.Kind(), ShouldEqual, lease.KindCamera)
				So(l.Released(), ShouldBeFalse)
				So(slot.Current(), ShouldEqual, l)
				So(slot.Stats().Live, ShouldBeTrue)
			})

			Convey("Then a second acquire fails fast without opening a handle", func() {
				_, err := slot.Acquire(ctx, openHandle(&opened), closeHandle)
				So(errors.Is(err, lease.ErrAlreadyHeld), ShouldBeTrue)
				So(opened.Load(), ShouldEqual, 1)
			})

			Convey("Then release is idempotent and closes exactly once", func() {
				l.Release()
				l.Release()
				slot.Release()
				So(l.Value().closed.Load(), ShouldEqual, 1)
				So(l.Released(), ShouldBeTrue)
				So(slot.Current(), ShouldBeNil)
				st := slot.Stats()
				So(st.Opened, ShouldEqual, 1)
				So(st.Closed, ShouldEqual, 1)
				So(st.Live, ShouldBeFalse)
			})

			Convey("Then a new acquire after release yields a new lease", func() {
				slot.Release()
				l2, err := slot.Acquire(ctx, openHandle(&opened), closeHandle)
				So(err, ShouldBeNil)
				So(l2, ShouldNotEqual, l)
				So(l2.ID(), ShouldEqual, 2)
				So(l2.Value().id, ShouldEqual, 2)
			})
		})

		Convey("When the opener fails with a permission error", func() {
			_, err := slot.Acquire(ctx, func(context.Context) (*handle, error) {
				return nil, lease.ErrPermissionDenied
			}, closeHandle)

			Convey("Then the error is classified and the slot stays free", func() {
				var ae *lease.AcquireError
				So(errors.As(err, &ae), ShouldBeTrue)
				So(ae.Kind, ShouldEqual, lease.KindCamera)
				So(errors.Is(err, lease.ErrPermissionDenied), ShouldBeTrue)
				So(slot.Stats().Opened, ShouldEqual, 0)

				_, err = slot.Acquire(ctx, openHandle(&opened), closeHandle)
				So(err, ShouldBeNil)
			})
		})

		Convey("When release happens while the opener is still running", func() {
			entered := make(chan struct{})
			proceed := make(chan struct{})
			var h *handle
			var wg sync.WaitGroup
			var acquireErr error
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, acquireErr = slot.Acquire(ctx, func(context.Context) (*handle, error) {
					close(entered)
					<-proceed
					h = &handle{id: 99}
					return h, nil
				}, closeHandle)
			}()
			<-entered

			_, busyErr := slot.Acquire(ctx, openHandle(&opened), closeHandle)
			slot.Release()
			close(proceed)
			wg.Wait()

			Convey("Then the pending acquire blocks others and is abandoned", func() {
				So(errors.Is(busyErr, lease.ErrAlreadyHeld), ShouldBeTrue)
				So(errors.Is(acquireErr, lease.ErrAbandoned), ShouldBeTrue)
				So(h.closed.Load(), ShouldEqual, 1)
				st := slot.Stats()
				So(st.Opened, ShouldEqual, st.Closed)
				So(st.Abandoned, ShouldEqual, 1)
				So(slot.Current(), ShouldBeNil)
			})
		})

		Convey("When closing the resource panics", func() {
			l, err := slot.Acquire(ctx, openHandle(&opened), func(*handle) error { panic("driver bug") })
			So(err, ShouldBeNil)

			Convey("Then release still completes", func() {
				So(func() { l.Release() }, ShouldNotPanic)
				So(l.Released(), ShouldBeTrue)
				So(slot.Current(), ShouldBeNil)
			})
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given raw device errors", t, func() {
		So(lease.Classify(lease.KindGeolocation, nil), ShouldBeNil)

		err := lease.Classify(lease.KindGeolocation, context.DeadlineExceeded)
		So(errors.Is(err, lease.ErrTimeout), ShouldBeTrue)
		So(lease.ReasonName(err), ShouldEqual, "timeout")

		err = lease.Classify(lease.KindCamera, errors.New("no such device"))
		So(errors.Is(err, lease.ErrUnavailable), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "camera: resource unavailable: no such device")

		err = lease.Classify(lease.KindCamera, lease.ErrPermissionDenied)
		So(err.Error(), ShouldEqual, "camera: permission denied")

		again := lease.Classify(lease.KindGeolocation, err)
		So(again, ShouldEqual, err)
		So(lease.ReasonName(errors.New("other")), ShouldEqual, "unknown")
	})
}
