package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/adapters/device/camera"
	"github.com/okian/presence/internal/adapters/device/geo"
	"github.com/okian/presence/internal/adapters/http/api"
	"github.com/okian/presence/internal/adapters/notify"
	repository "github.com/okian/presence/internal/adapters/repository"
	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/internal/session"
	"github.com/okian/presence/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubSubmitter struct{}

func (stubSubmitter) Submit(context.Context, model.CapturedFrame, *model.LocationFix, string) (backend.Verdict, error) {
	return backend.Verdict{
		Success:        true,
		RecognizedUser: &backend.RecognizedUser{UserID: "u-1", Name: "Ana", Similarity: 0.91},
		Message:        "Attendance marked",
	}, nil
}

type deniedDevice struct{}

func (deniedDevice) Name() string { return "denied" }

func (deniedDevice) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	return nil, lease.ErrPermissionDenied
}

// kioskDeps adapts a real session to the handler dependencies.
type kioskDeps struct {
	sess  *session.Session
	board *notify.Board
	snaps map[string]repository.Snapshot
}

func (d *kioskDeps) StartCamera(ctx context.Context) error { return d.sess.StartCamera(ctx) }

func (d *kioskDeps) StopCamera(context.Context) error {
	d.sess.StopCamera()
	return nil
}

func (d *kioskDeps) Attempt(ctx context.Context) (*session.Ticket, error) { return d.sess.Attempt(ctx) }

func (d *kioskDeps) State(context.Context) (model.SessionState, error) { return d.sess.State(), nil }

func (d *kioskDeps) Outcome(context.Context) (model.Outcome, uint64, bool) { return d.board.Current() }

func (d *kioskDeps) Records(_ context.Context, userID string) (repository.Snapshot, error) {
	if userID == "" {
		userID = "u-1"
	}
	snap, ok := d.snaps[userID]
	if !ok {
		return repository.Snapshot{}, fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	return snap, nil
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "queueLength": 0}
}

func newRouter(dev camera.Device) (http.Handler, *kioskDeps) {
	board := notify.NewBoard()
	sess := session.New(
		camera.New(dev, camera.WithLogger(logger.Nop())),
		geo.NewProbe(geo.Disabled{}, geo.WithLogger(logger.Nop())),
		stubSubmitter{},
		board,
		session.WithLogger(logger.Nop()),
	)
	deps := &kioskDeps{sess: sess, board: board, snaps: map[string]repository.Snapshot{}}
	r := chi.NewRouter()
	api.NewServer(deps, stubStats{}).Register(context.Background(), r)
	return r, deps
}

func do(h http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given the control API over an idle session", t, func() {
		h, deps := newRouter(&camera.TestPattern{Size: camera.Resolution{Width: 320, Height: 240}})
		defer deps.sess.Teardown()

		Convey("When reading the session", func() {
			w := do(h, http.MethodGet, "/session")

			Convey("Then it reports idle with no outcome", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["state"], ShouldEqual, "idle")
				So(body["outcome"], ShouldBeNil)
			})
		})

		Convey("When attempting before the camera is open", func() {
			w := do(h, http.MethodPost, "/session/attempts")

			Convey("Then it is refused as busy", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decode(w)["code"], ShouldEqual, "session_busy")
			})
		})

		Convey("When no outcome has been shown", func() {
			w := do(h, http.MethodGet, "/session/outcome")

			Convey("Then the outcome route answers no content", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
			})
		})

		Convey("When the camera is started", func() {
			w := do(h, http.MethodPost, "/session/camera/start")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["state"], ShouldEqual, "camera_ready")

			Convey("And an attempt is awaited", func() {
				w := do(h, http.MethodPost, "/session/attempts?wait=true")

				Convey("Then the settled outcome is returned", func() {
					So(w.Code, ShouldEqual, http.StatusOK)
					body := decode(w)
					So(body["attempt_id"], ShouldEqual, float64(1))
					So(body["status"], ShouldEqual, "settled")
					So(body["outcome"].(map[string]any)["kind"], ShouldEqual, "recognized")
					So(body["text"], ShouldContainSubstring, "Ana")
				})

				Convey("Then the outcome route serves it with a version tag", func() {
					w := do(h, http.MethodGet, "/session/outcome")
					So(w.Code, ShouldEqual, http.StatusOK)
					So(w.Header().Get("ETag"), ShouldNotBeEmpty)
					So(decode(w)["outcome"].(map[string]any)["kind"], ShouldEqual, "recognized")
				})
			})

			Convey("And an attempt is posted without waiting", func() {
				w := do(h, http.MethodPost, "/session/attempts")

				Convey("Then it is accepted with its id", func() {
					So(w.Code, ShouldEqual, http.StatusAccepted)
					So(decode(w)["attempt_id"], ShouldEqual, float64(1))
				})
			})

			Convey("And the wait flag is malformed", func() {
				w := do(h, http.MethodPost, "/session/attempts?wait=maybe")

				Convey("Then it is a bad request", func() {
					So(w.Code, ShouldEqual, http.StatusBadRequest)
				})
			})

			Convey("And the camera is stopped", func() {
				w := do(h, http.MethodPost, "/session/camera/stop")

				Convey("Then the session reports the camera off", func() {
					So(w.Code, ShouldEqual, http.StatusOK)
					So(decode(w)["state"], ShouldEqual, "camera_off")
				})
			})
		})

		Convey("When the session has been torn down", func() {
			deps.sess.Teardown()
			w := do(h, http.MethodPost, "/session/camera/start")

			Convey("Then starting the camera is unavailable", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})

	Convey("Given a camera the user refused", t, func() {
		h, deps := newRouter(deniedDevice{})
		defer deps.sess.Teardown()

		Convey("When starting the camera", func() {
			w := do(h, http.MethodPost, "/session/camera/start")

			Convey("Then it is forbidden and the failure is on display", func() {
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(decode(w)["code"], ShouldEqual, "camera_permission_denied")

				o := decode(do(h, http.MethodGet, "/session/outcome"))
				So(o["outcome"].(map[string]any)["failure_kind"], ShouldEqual, "camera_permission_denied")
			})
		})
	})
}

func TestRecordsRoutes(t *testing.T) {
	Convey("Given the control API with cached records", t, func() {
		h, deps := newRouter(&camera.TestPattern{})
		defer deps.sess.Teardown()
		deps.snaps["u-2"] = repository.Snapshot{
			UserID:  "u-2",
			Records: []model.AttendanceRecord{{UserID: "u-2", Name: "Bo", Status: "present"}},
		}

		Convey("When reading a cached user by path", func() {
			w := do(h, http.MethodGet, "/records/u-2")

			Convey("Then the snapshot is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["user_id"], ShouldEqual, "u-2")
				So(len(body["records"].([]any)), ShouldEqual, 1)
			})
		})

		Convey("When reading a cached user by query", func() {
			w := do(h, http.MethodGet, "/records?user_id=u-2")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When nothing is cached for the user", func() {
			w := do(h, http.MethodGet, "/records")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode(w)["code"], ShouldEqual, "not_found")
			})
		})
	})
}

func TestOperationalRoutes(t *testing.T) {
	Convey("Given the control API", t, func() {
		h, deps := newRouter(&camera.TestPattern{})
		defer deps.sess.Teardown()

		Convey("Then /stats serves the provider's map", func() {
			w := do(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then /healthz serves metrics including request counts", func() {
			_ = do(h, http.MethodGet, "/session")
			w := do(h, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "presence_kiosk_http_requests_total")
		})

		Convey("Then / serves the kiosk page", func() {
			w := do(h, http.MethodGet, "/")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(strings.Contains(w.Body.String(), "Attendance Kiosk"), ShouldBeTrue)
		})

		Convey("Then unknown methods are rejected", func() {
			w := do(h, http.MethodDelete, "/session")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}
