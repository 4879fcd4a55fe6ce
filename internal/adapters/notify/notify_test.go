package notify_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/presence/internal/adapters/mq/queue"
	"github.com/okian/presence/internal/adapters/notify"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBoard(t *testing.T) {
	Convey("Given an empty board", t, func() {
		b := notify.NewBoard()
		ctx := context.Background()

		_, _, ok := b.Current()
		So(ok, ShouldBeFalse)

		Convey("When two outcomes are shown", func() {
			b.Show(ctx, model.Failed(model.FailureNetworkError, ""))
			b.Show(ctx, model.Rejected("no face"))

			Convey("Then only the latest is displayed", func() {
				o, version, ok := b.Current()
				So(ok, ShouldBeTrue)
				So(o.Kind, ShouldEqual, model.OutcomeRejected)
				So(version, ShouldEqual, 2)
			})

			Convey("Then clearing dismisses it", func() {
				b.Clear()
				_, _, ok := b.Current()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When a new attempt starts over a shown outcome", func() {
			b.Show(ctx, model.Recognized(model.Recognition{UserID: "u1", Name: "Ada"}))
			b.Show(ctx, model.InProgress(2, time.Now()))

			Convey("Then the placeholder replaces the old result", func() {
				o, version, ok := b.Current()
				So(ok, ShouldBeTrue)
				So(o.Kind, ShouldEqual, model.OutcomeInProgress)
				So(o.AttemptID, ShouldEqual, model.AttemptID(2))
				So(version, ShouldEqual, 2)
			})

			Convey("Then the zero outcome clears the board", func() {
				b.Show(ctx, model.Outcome{})
				_, version, ok := b.Current()
				So(ok, ShouldBeFalse)
				So(version, ShouldEqual, 3)
			})
		})
	})
}

func TestQueueSink(t *testing.T) {
	Convey("Given a queue sink over a one-slot queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		sink := notify.NewQueueSink(q, "kiosk-7", logger.Nop())
		ctx := context.Background()

		Convey("When only placeholders are shown", func() {
			sink.Show(ctx, model.InProgress(1, time.Now()))
			sink.Show(ctx, model.Outcome{})

			Convey("Then nothing is published", func() {
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When outcomes outnumber the queue", func() {
			sink.Show(ctx, model.NotRecognized())
			sink.Show(ctx, model.NotRecognized())

			Convey("Then the overflow is dropped without blocking", func() {
				So(q.Len(ctx), ShouldEqual, 1)
				e := <-q.Dequeue(ctx)
				So(e.SessionID, ShouldEqual, "kiosk-7")
				So(e.EventID, ShouldNotBeEmpty)
				So(e.Outcome.Kind, ShouldEqual, model.OutcomeNotRecognized)
			})
		})
	})
}

func TestLogSinkAndMulti(t *testing.T) {
	Convey("Given a multi sink over a board and a log sink", t, func() {
		var buf bytes.Buffer
		So(logger.Init(), ShouldBeNil)
		logger.SetOutput(&buf)
		Reset(func() { logger.SetOutput(os.Stderr) })

		b := notify.NewBoard()
		m := notify.Multi{b, notify.NewLogSink(nil), nil}

		Convey("When a recognition with an unverified location is shown", func() {
			verified := false
			m.Show(context.Background(), model.Recognized(model.Recognition{
				UserID: "u1", Name: "Ada", Similarity: 0.9, LocationVerified: &verified, LocationMessage: "outside HQ",
			}))

			Convey("Then both sinks see it and the log carries the warning", func() {
				o, _, ok := b.Current()
				So(ok, ShouldBeTrue)
				So(o.Recognition.Name, ShouldEqual, "Ada")
				So(buf.String(), ShouldContainSubstring, "outside HQ")
			})
		})
	})
}
