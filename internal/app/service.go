// Package service wires the kiosk components together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/presence/internal/adapters/backend"
	"github.com/okian/presence/internal/adapters/device/camera"
	"github.com/okian/presence/internal/adapters/device/geo"
	eventqueue "github.com/okian/presence/internal/adapters/mq/queue"
	workerpool "github.com/okian/presence/internal/adapters/mq/worker"
	"github.com/okian/presence/internal/adapters/notify"
	repository "github.com/okian/presence/internal/adapters/repository"
	"github.com/okian/presence/internal/config"
	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/internal/session"
	"github.com/okian/presence/pkg/logger"
	"github.com/okian/presence/pkg/metrics"
)

// ErrNotStarted is returned by operations that need a running service. It
// matches session.ErrClosed.
var ErrNotStarted = fmt.Errorf("service not started: %w", session.ErrClosed)

// Service owns one kiosk session and its supporting components.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Overrides used instead of the configured sources.
	device camera.Device
	sensor geo.Sensor

	// Core components
	client  *backend.Client
	camera  *camera.Handle
	probe   *geo.Probe
	queue   *eventqueue.InMemoryQueue
	store   *repository.MemoryStore
	pool    *workerpool.Pool
	board   *notify.Board
	session *session.Session

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCameraDevice replaces the configured camera source.
func WithCameraDevice(dev camera.Device) Option {
	return func(s *Service) {
		s.device = dev
	}
}

// WithSensor replaces the configured location source.
func WithSensor(sensor geo.Sensor) Option {
	return func(s *Service) {
		s.sensor = sensor
	}
}

// New constructs a Service from cfg. Components are built by Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the components and starts the records worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting kiosk service...")

	client, err := backend.New(cfg.BackendURL,
		backend.WithTimeout(cfg.BackendTimeout()),
		backend.WithLogger(s.logger.Named("backend")))
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	facing, err := camera.ParseFacing(cfg.CameraFacing)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	s.client = client
	s.camera = camera.New(s.cameraDevice(), camera.WithLogger(s.logger.Named("camera")))
	s.probe = geo.NewProbe(s.locationSensor(),
		geo.WithLogger(s.logger.Named("geo")),
		geo.WithMaxAge(cfg.LocationMaxAge()))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.OutcomeQueueSize))
	s.store = repository.NewMemoryStore(repository.WithLimit(cfg.RecordsLimit))
	s.board = notify.NewBoard()

	tokens := session.StaticToken(cfg.AuthToken)
	s.pool = workerpool.NewPool(1, s.queue, s.client, s.store,
		workerpool.WithLogger(s.logger.Named("worker")),
		workerpool.WithTokenSource(tokens))

	sessCfg := session.Config{
		Preferred: camera.Resolution{Width: cfg.CameraWidth, Height: cfg.CameraHeight},
		Facing:    facing,
		Capture: camera.CaptureProfile{
			Width:   cfg.CaptureWidth,
			Height:  cfg.CaptureHeight,
			Quality: cfg.CaptureQuality,
		},
		LocationTimeout:     cfg.LocationTimeout(),
		HighAccuracy:        cfg.LocationHighAccuracy,
		CaptureReadyTimeout: cfg.CaptureReadyTimeout(),
		CapturePoll:         session.DefaultConfig().CapturePoll,
	}
	// The queue sink and the session share one id so events can be traced
	// back to the session that produced them.
	sessionID := uuid.NewString()
	sink := notify.Multi{
		s.board,
		notify.NewLogSink(s.logger.Named("outcome")),
		notify.NewQueueSink(s.queue, sessionID, s.logger.Named("notify")),
	}
	s.session = session.New(s.camera, s.probe, s.client, sink,
		session.WithID(sessionID),
		session.WithConfig(sessCfg),
		session.WithTokenSource(tokens),
		session.WithLogger(s.logger.Named("session")))

	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "kiosk service started",
		logger.String("session_id", sessionID),
		logger.String("backend", cfg.BackendURL),
		logger.String("camera", s.cameraDevice().Name()),
		logger.String("location", s.locationSensor().Name()),
	)
	return nil
}

func (s *Service) cameraDevice() camera.Device {
	if s.device == nil {
		s.device = NewCameraDevice(s.cfg)
	}
	return s.device
}

func (s *Service) locationSensor() geo.Sensor {
	if s.sensor == nil {
		s.sensor = NewSensor(s.cfg)
	}
	return s.sensor
}

// NewCameraDevice returns the camera source selected by cfg.
func NewCameraDevice(cfg *config.Config) camera.Device {
	if cfg.CameraSource == "dir" {
		return &camera.Directory{Path: cfg.CameraDir}
	}
	return &camera.TestPattern{
		Size:       camera.Resolution{Width: cfg.CameraWidth, Height: cfg.CameraHeight},
		FirstFrame: cfg.CameraFirstFrame(),
	}
}

// NewSensor returns the location source selected by cfg.
func NewSensor(cfg *config.Config) geo.Sensor {
	switch cfg.LocationSource {
	case "static":
		return &geo.Static{
			Latitude:  cfg.LocationLatitude,
			Longitude: cfg.LocationLongitude,
			Accuracy:  cfg.LocationAccuracyM,
		}
	case "denied":
		return geo.Denied{}
	default:
		return geo.Disabled{}
	}
}

// Stop tears the session down and drains the records worker.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping kiosk service...")

	s.session.Teardown()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "kiosk service stopped")
}

func (s *Service) running() (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.session, nil
}

// StartCamera opens the kiosk camera.
func (s *Service) StartCamera(ctx context.Context) error {
	sess, err := s.running()
	if err != nil {
		return err
	}
	return sess.StartCamera(ctx)
}

// StopCamera releases the kiosk camera.
func (s *Service) StopCamera(_ context.Context) error {
	sess, err := s.running()
	if err != nil {
		return err
	}
	sess.StopCamera()
	return nil
}

// Attempt starts one attendance attempt.
func (s *Service) Attempt(ctx context.Context) (*session.Ticket, error) {
	sess, err := s.running()
	if err != nil {
		return nil, err
	}
	return sess.Attempt(ctx)
}

// State returns the session state.
func (s *Service) State(_ context.Context) (model.SessionState, error) {
	sess, err := s.running()
	if err != nil {
		return model.StateIdle, err
	}
	return sess.State(), nil
}

// Outcome returns the outcome currently on display and its version.
func (s *Service) Outcome(_ context.Context) (model.Outcome, uint64, bool) {
	s.mu.RLock()
	board := s.board
	s.mu.RUnlock()
	if board == nil {
		return model.Outcome{}, 0, false
	}
	return board.Current()
}

// Records returns cached attendance history. An empty userID returns the
// most recently refreshed user.
func (s *Service) Records(ctx context.Context, userID string) (repository.Snapshot, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return repository.Snapshot{}, ErrNotStarted
	}
	if userID == "" {
		return store.Latest(ctx)
	}
	return store.ForUser(ctx, userID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":         s.started,
		"camera_source":   s.cfg.CameraSource,
		"location_source": s.cfg.LocationSource,
		"backend_url":     s.cfg.BackendURL,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		stats["session"] = s.session.Stats()
		stats["queueLength"] = queueLen
		stats["usersCached"] = s.store.Count(ctx)
		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// settleTimeout bounds how long callers wait on a ticket by default.
const settleTimeout = 2 * time.Minute

// AttemptAndWait runs one attempt and blocks for its outcome.
func (s *Service) AttemptAndWait(ctx context.Context) (model.Outcome, error) {
	t, err := s.Attempt(ctx)
	if err != nil {
		return model.Outcome{}, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settleTimeout)
		defer cancel()
	}
	return t.Wait(ctx)
}
