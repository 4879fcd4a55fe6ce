package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/presence/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAttemptID(t *testing.T) {
	Convey("Given attempt ids", t, func() {
		So(model.AttemptID(0).String(), ShouldEqual, "none")
		So(model.AttemptID(7).String(), ShouldEqual, "attempt-7")
	})
}

func TestSessionState(t *testing.T) {
	Convey("Given session states", t, func() {
		So(model.StateCameraReady.String(), ShouldEqual, "camera_ready")
		So(model.SessionState(99).String(), ShouldEqual, "unknown")
		So(model.StateSubmitting.InAttempt(), ShouldBeTrue)
		So(model.StateCameraReady.InAttempt(), ShouldBeFalse)
		So(model.StateNames(), ShouldHaveLength, 7)

		b, err := json.Marshal(map[string]model.SessionState{"state": model.StateSettled})
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"state":"settled"}`)
	})
}

func TestOutcome(t *testing.T) {
	Convey("Given outcome constructors", t, func() {
		Convey("When building a failed outcome without a message", func() {
			o := model.Failed(model.FailureNetworkError, "")
			So(o.Kind, ShouldEqual, model.OutcomeFailed)
			So(o.Message, ShouldEqual, model.FailureNetworkError.Message())
			So(o.Text(), ShouldEqual, o.Message)
			So(o.Terminal(), ShouldBeTrue)
		})

		Convey("When the location was not verified", func() {
			f := false
			o := model.Recognized(model.Recognition{UserID: "u1", Name: "Ada", Similarity: 0.9, LocationVerified: &f, LocationMessage: "outside the office"})
			So(o.Warning(), ShouldEqual, "outside the office")
			So(o.Text(), ShouldContainSubstring, "Ada")
			So(o.Text(), ShouldContainSubstring, "outside the office")
		})

		Convey("When the server did not evaluate location", func() {
			o := model.Recognized(model.Recognition{UserID: "u1", Similarity: 0.5})
			So(o.Warning(), ShouldBeEmpty)
			So(o.Recognition.LocationVerified, ShouldBeNil)
		})

		Convey("When the attempt is in progress", func() {
			o := model.InProgress(3, time.Now())
			So(o.Terminal(), ShouldBeFalse)
			So(o.AttemptID, ShouldEqual, model.AttemptID(3))
		})

		Convey("When building rejected and not recognized outcomes", func() {
			So(model.Rejected("no face").Text(), ShouldEqual, "Rejected: no face")
			So(model.NotRecognized().Warning(), ShouldBeEmpty)
		})
	})
}

func TestFailure(t *testing.T) {
	Convey("Given a wrapped session busy failure", t, func() {
		err := fmt.Errorf("attempt: %w", model.NewFailure(model.FailureSessionBusy))

		So(errors.Is(err, model.NewFailure(model.FailureSessionBusy)), ShouldBeTrue)
		So(errors.Is(err, model.NewFailure(model.FailureCaptureFailed)), ShouldBeFalse)

		var f *model.Failure
		So(errors.As(err, &f), ShouldBeTrue)
		So(f.Kind, ShouldEqual, model.FailureSessionBusy)
		So(f.Error(), ShouldContainSubstring, "session_busy")
		So(model.FailureKind("x").Message(), ShouldEqual, "x")
	})
}

func TestLocation(t *testing.T) {
	Convey("Given location inputs", t, func() {
		loc := model.Fixed(model.LocationFix{Latitude: 1, Longitude: 2})
		So(loc.Skipped, ShouldBeFalse)
		So(loc.Fix.Longitude, ShouldEqual, 2)

		skip := model.Skipped(model.FailureLocationTimeout)
		So(skip.Fix, ShouldBeNil)
		So(skip.SkipReason, ShouldEqual, model.FailureLocationTimeout)
	})
}
