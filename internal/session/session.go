// Package session implements the attendance capture session: the state
// machine that owns the camera and geolocation leases, runs one attempt at
// a time and reconciles the backend verdict into the outcome shown to the
// user.
//
// All session state lives under one mutex. The attempt pipeline runs on its
// own goroutine and suspends (location, capture, submit) without the mutex
// held; every result is checked against the current attempt id before it is
// applied, so results of superseded attempts are dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/adapters/device/camera"
	"github.com/okian/presence/internal/domain/lease"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/logger"
	"github.com/okian/presence/pkg/metrics"
)

// Camera is the camera capability the session drives.
type Camera interface {
	Start(ctx context.Context, preferred camera.Resolution, facing camera.Facing) (*lease.Lease[camera.Stream], error)
	Stop()
	CaptureWhenReady(ctx context.Context, profile camera.CaptureProfile, ready, poll time.Duration) (model.CapturedFrame, error)
	Stats() lease.Stats
}

// Locator acquires one bounded location fix.
type Locator interface {
	Acquire(ctx context.Context, timeout time.Duration, highAccuracy bool) (model.LocationFix, error)
	Stop()
	Stats() lease.Stats
}

// Submitter sends a captured frame to the recognition backend.
type Submitter interface {
	Submit(ctx context.Context, frame model.CapturedFrame, loc *model.LocationFix, token string) (backend.Verdict, error)
}

// Sink renders the current outcome. Show replaces whatever was shown
// before: an InProgress outcome marks an attempt that has not settled yet
// and the zero Outcome clears the display. It is called with the session
// lock held and must not call back into the session.
type Sink interface {
	Show(ctx context.Context, o model.Outcome)
}

// TokenSource supplies the bearer token for submissions. The session never
// refreshes or stores tokens.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) string { return string(t) }

// Config holds the session's tunables.
type Config struct {
	Preferred           camera.Resolution
	Facing              camera.Facing
	Capture             camera.CaptureProfile
	LocationTimeout     time.Duration
	HighAccuracy        bool
	CaptureReadyTimeout time.Duration
	CapturePoll         time.Duration
}

// DefaultConfig returns the kiosk defaults.
func DefaultConfig() Config {
	return Config{
		Preferred:           camera.Resolution{Width: 1280, Height: 720},
		Facing:              camera.FacingUser,
		Capture:             camera.AttendanceProfile,
		LocationTimeout:     10 * time.Second,
		HighAccuracy:        true,
		CaptureReadyTimeout: 5 * time.Second,
		CapturePoll:         100 * time.Millisecond,
	}
}

// Stats is a snapshot of session counters.
type Stats struct {
	SessionID       string                       `json:"session_id"`
	State           model.SessionState           `json:"state"`
	CurrentAttempt  model.AttemptID              `json:"current_attempt"`
	Attempts        uint64                       `json:"attempts"`
	Busy            uint64                       `json:"busy"`
	Stale           uint64                       `json:"stale"`
	LocationSkipped uint64                       `json:"location_skipped"`
	Outcomes        map[model.OutcomeKind]uint64 `json:"outcomes"`
	Camera          lease.Stats                  `json:"camera"`
	Location        lease.Stats                  `json:"location"`
}

// Session coordinates one kiosk's camera, location and backend.
type Session struct {
	id     string
	cam    Camera
	loc    Locator
	sub    Submitter
	sink   Sink
	tokens TokenSource
	cfg    Config
	log    logger.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    model.SessionState
	current  model.AttemptID
	live     model.Outcome
	starting bool
	closed   bool
	stats    Stats
}

// Option configures a Session.
type Option func(*Session)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithLogger sets the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenSource sets where submission tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Session) {
		if ts != nil {
			s.tokens = ts
		}
	}
}

// WithID sets the session id. A random id is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New returns an Idle session. Call Teardown when done.
func New(cam Camera, loc Locator, sub Submitter, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		cam:    cam,
		loc:    loc,
		sub:    sub,
		sink:   sink,
		tokens: StaticToken(""),
		cfg:    DefaultConfig(),
		now:    time.Now,
		state:  model.StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("session")
	}
	if s.cfg.CapturePoll <= 0 {
		s.cfg.CapturePoll = DefaultConfig().CapturePoll
	}
	s.log = s.log.With(logger.String("session_id", s.id))
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.stats.Outcomes = make(map[model.OutcomeKind]uint64)
	metrics.UpdateSessionState(s.state.String(), model.StateNames())
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// StartCamera opens the camera stream and moves to CameraReady. A camera
// that cannot be opened leaves the session in CameraOff and shows a Failed
// outcome. Calling it while CameraReady is a no-op.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.starting || s.state.InAttempt():
		s.mu.Unlock()
		return ErrSessionBusy
	case s.state == model.StateCameraReady:
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.setState(model.StateCameraOff)
	gen := s.current
	s.mu.Unlock()

	_, err := s.cam.Start(ctx, s.cfg.Preferred, s.cfg.Facing)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err == nil && gen != s.current {
		// Stopped while the device was opening.
		s.cam.Stop()
		err = fmt.Errorf("camera start: %w", lease.ErrAbandoned)
	}
	if err != nil {
		if errors.Is(err, lease.ErrAbandoned) {
			s.log.Info(ctx, "camera start abandoned")
			return err
		}
		kind := cameraStartFailure(err)
		s.log.Warn(ctx, "camera start failed", logger.String("failure", string(kind)), logger.Error(err))
		o := model.Failed(kind, "")
		o.AttemptID = s.current
		s.show(ctx, o)
		return err
	}
	s.setState(model.StateCameraReady)
	return nil
}

// Attempt starts an attendance attempt and returns immediately. It is only
// accepted in CameraReady; otherwise a *model.Failure of kind
// FailureSessionBusy is returned and nothing changes.
func (s *Session) Attempt(ctx context.Context) (*Ticket, error) {
	s.mu.Lock()
	if s.state != model.StateCameraReady || s.starting {
		state := s.state
		s.stats.Busy++
		s.mu.Unlock()
		metrics.RecordAttemptBusy()
		s.log.Debug(ctx, "attempt refused", logger.String("state", state.String()))
		return nil, model.NewFailure(model.FailureSessionBusy)
	}
	s.current++
	id := s.current
	s.stats.Attempts++
	s.display(ctx, model.InProgress(id, s.now()))
	s.setState(model.StateLocationAcquiring)
	t := newTicket(id)
	s.mu.Unlock()

	// A superseded attempt may still hold the location watch.
	s.loc.Stop()
	s.log.Info(ctx, "attempt started", logger.String("attempt", id.String()))
	go s.run(s.ctx, id, t)
	return t, nil
}

func (s *Session) run(ctx context.Context, id model.AttemptID, t *Ticket) {
	log := s.log.With(logger.String("attempt", id.String()))
	if !s.isCurrent(id) {
		s.discard(ctx, t, "start")
		return
	}

	start := time.Now()
	var loc model.Location
	fix, err := s.loc.Acquire(ctx, s.cfg.LocationTimeout, s.cfg.HighAccuracy)
	metrics.RecordStageLatency("location", msSince(start))
	if !s.isCurrent(id) {
		s.discard(ctx, t, "location")
		return
	}
	if err != nil {
		reason := locationFailure(err)
		loc = model.Skipped(reason)
		metrics.RecordLocationSkipped(string(reason))
		log.Warn(ctx, "continuing without location", logger.String("reason", string(reason)), logger.Error(err))
		s.mu.Lock()
		s.stats.LocationSkipped++
		s.mu.Unlock()
	} else {
		loc = model.Fixed(fix)
	}
	if !s.advance(id, model.StateCapturing) {
		s.discard(ctx, t, "location")
		return
	}

	start = time.Now()
	frame, err := s.capture(ctx, id)
	metrics.RecordStageLatency("capture", msSince(start))
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			s.discard(ctx, t, "capture")
			return
		}
		kind, lost := captureFailure(err)
		log.Warn(ctx, "capture failed", logger.String("failure", string(kind)), logger.Bool("camera_lost", lost), logger.Error(err))
		s.settle(ctx, id, t, model.Failed(kind, ""), lost)
		return
	}
	if !s.advance(id, model.StateSubmitting) {
		s.discard(ctx, t, "capture")
		return
	}

	start = time.Now()
	verdict, err := s.sub.Submit(ctx, frame, loc.Fix, s.tokens.Token(ctx))
	metrics.RecordStageLatency("submit", msSince(start))
	var o model.Outcome
	if err != nil {
		log.Warn(ctx, "submission failed", logger.Error(err))
		o = OutcomeFromError(err)
	} else {
		o = OutcomeFromVerdict(verdict)
	}
	s.settle(ctx, id, t, o, false)
}

// capture waits for a frame from the camera. A result for an attempt that
// is no longer current is reported as ErrSuperseded.
func (s *Session) capture(ctx context.Context, id model.AttemptID) (model.CapturedFrame, error) {
	frame, err := s.cam.CaptureWhenReady(ctx, s.cfg.Capture, s.cfg.CaptureReadyTimeout, s.cfg.CapturePoll)
	if err != nil && (ctx.Err() != nil || !s.isCurrent(id)) {
		return model.CapturedFrame{}, ErrSuperseded
	}
	return frame, err
}

func (s *Session) isCurrent(id model.AttemptID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == id
}

func (s *Session) advance(id model.AttemptID, next model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != id {
		return false
	}
	s.setState(next)
	return true
}

func (s *Session) discard(ctx context.Context, t *Ticket, stage string) {
	s.mu.Lock()
	s.stats.Stale++
	s.mu.Unlock()
	metrics.RecordStaleResult(stage)
	s.log.Debug(ctx, "stale result discarded", logger.String("attempt", t.ID().String()), logger.String("stage", stage))
	t.resolve(model.Outcome{}, true)
}

// settle shows the attempt's final outcome and returns the session to
// CameraReady, or to CameraOff when the camera was lost.
func (s *Session) settle(ctx context.Context, id model.AttemptID, t *Ticket, o model.Outcome, cameraLost bool) {
	s.mu.Lock()
	if s.current != id {
		s.mu.Unlock()
		s.discard(ctx, t, "settle")
		return
	}
	o.AttemptID = id
	s.setState(model.StateSettled)
	s.show(ctx, o)
	s.stats.Outcomes[o.Kind]++
	if cameraLost {
		s.cam.Stop()
		s.setState(model.StateCameraOff)
	} else {
		s.setState(model.StateCameraReady)
	}
	s.mu.Unlock()

	metrics.RecordAttempt(string(o.Kind))
	s.log.Info(ctx, "attempt settled",
		logger.String("attempt", id.String()),
		logger.String("outcome", string(o.Kind)),
		logger.String("failure", string(o.FailureKind)))
	t.resolve(o, false)
}

// show replaces the live outcome with a terminal one. Caller holds mu.
func (s *Session) show(ctx context.Context, o model.Outcome) {
	if o.At.IsZero() {
		o.At = s.now()
	}
	s.display(ctx, o)
	metrics.RecordOutcomeShown(string(o.Kind))
}

// display replaces the live outcome and hands it to the sink. Caller holds mu.
func (s *Session) display(ctx context.Context, o model.Outcome) {
	s.live = o
	if s.sink != nil {
		s.sink.Show(ctx, o)
	}
}

// StopCamera releases the camera and any location watch from any state and
// moves to CameraOff. In-flight work is not interrupted; its result is
// discarded and an in-progress display is cleared.
func (s *Session) StopCamera() {
	ctx := context.Background()
	s.mu.Lock()
	s.current++
	if s.live.Kind == model.OutcomeInProgress {
		s.display(ctx, model.Outcome{})
	}
	s.setState(model.StateCameraOff)
	s.mu.Unlock()
	s.cam.Stop()
	s.loc.Stop()
	s.log.Info(ctx, "camera stopped")
}

// Teardown stops the camera, releases every other lease and cancels
// in-flight work. Safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.StopCamera()
	s.cancel()
	s.log.Info(context.Background(), "session torn down")
}

// State returns the current state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Live returns the outcome slot. ok is false when nothing has been shown.
func (s *Session) Live() (model.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live, s.live.Kind != ""
}

// CurrentAttempt returns the id results must carry to be applied.
func (s *Session) CurrentAttempt() model.AttemptID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	st.Outcomes = make(map[model.OutcomeKind]uint64, len(s.stats.Outcomes))
	for k, v := range s.stats.Outcomes {
		st.Outcomes[k] = v
	}
	st.SessionID = s.id
	st.State = s.state
	st.CurrentAttempt = s.current
	s.mu.Unlock()

	st.Camera = s.cam.Stats()
	st.Location = s.loc.Stats()
	return st
}

func (s *Session) setState(st model.SessionState) {
	if s.state == st {
		return
	}
	s.state = st
	metrics.UpdateSessionState(st.String(), model.StateNames())
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
