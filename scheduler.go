package camnotify

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// State is the scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// SchedulerOptions wire a Scheduler. Catalog, Capture and Upload are required.
type SchedulerOptions struct {
	Catalog  DeviceCatalog
	Capture  CaptureClient
	Upload   UploadClient
	Settings SettingsStore
	// Title heads every posted message; empty uses DefaultTitle.
	Title string
	// OnResult, when set, is called after every cycle on the goroutine that
	// ran it. The loop waits for it to return. It may read Status, Stats and
	// Config, but calling Stop from it deadlocks; use go s.Stop() instead.
	OnResult func(CycleResult)
	Clock    func() time.Time
}

// Scheduler runs the capture-then-upload loop. At most one loop exists per
// Scheduler; Start and Stop are serialized.
type Scheduler struct {
	catalog  DeviceCatalog
	capture  CaptureClient
	upload   UploadClient
	settings SettingsStore
	title    string
	onResult func(CycleResult)
	clock    func() time.Time

	lifecycle sync.Mutex
	state     atomic.Int32
	cancel    context.CancelFunc
	group     *errgroup.Group

	mu      sync.RWMutex
	running *Config
	stats   Stats
}

// NewScheduler validates opts and returns an idle scheduler.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Catalog == nil {
		return nil, errors.New("device catalog cannot be nil")
	}
	if opts.Capture == nil {
		return nil, errors.New("capture client cannot be nil")
	}
	if opts.Upload == nil {
		return nil, errors.New("upload client cannot be nil")
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = DefaultTitle
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		catalog:  opts.Catalog,
		capture:  opts.Capture,
		upload:   opts.Upload,
		settings: opts.Settings,
		title:    title,
		onResult: opts.OnResult,
		clock:    clock,
	}, nil
}

// Status returns the current lifecycle state without blocking.
func (s *Scheduler) Status() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the cycle counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.clone()
}

// Config returns the snapshot the running loop uses. ok is false while idle.
func (s *Scheduler) Config() (cfg Config, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running == nil {
		return Config{}, false
	}
	return *s.running, true
}

// Start validates cfg, persists it and launches the loop. It returns as soon
// as the loop is running. Only ErrNotIdle and ErrInvalidConfig are returned;
// a failed save is logged and does not block the start.
func (s *Scheduler) Start(ctx context.Context, cfg Config) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if state := s.Status(); state != StateIdle {
		return errors.Wrapf(ErrNotIdle, "scheduler is %s", state)
	}
	if err := cfg.Validate(ctx, s.catalog); err != nil {
		if !errors.Is(err, ErrInvalidConfig) {
			err = errors.Wrapf(ErrInvalidConfig, "%v", err)
		}
		log.Warn().Err(err).
			Str("error_kind", ErrorKind(err)).
			Int("device_index", cfg.DeviceIndex).
			Int("interval_seconds", cfg.IntervalSeconds).
			Msg("start rejected")
		return err
	}

	if s.settings != nil {
		if err := s.settings.Save(ctx, cfg); err != nil {
			if !errors.Is(err, ErrPersistence) {
				err = errors.Wrapf(ErrPersistence, "%v", err)
			}
			log.Warn().Err(err).Str("error_kind", ErrorKind(err)).Msg("save settings failed, starting anyway")
		}
	}

	snapshot := cfg
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group := new(errgroup.Group)

	s.mu.Lock()
	s.running = &snapshot
	s.mu.Unlock()
	s.cancel = cancel
	s.group = group
	s.state.Store(int32(StateRunning))

	GroupGoSafe(runCtx, group, "capture loop", func(ctx context.Context) error {
		return s.loop(ctx, snapshot)
	})

	redacted := snapshot.Redacted()
	log.Info().
		Int("device_index", redacted.DeviceIndex).
		Int("interval_seconds", redacted.IntervalSeconds).
		Str("destination_id", redacted.DestinationID).
		Str("credential", redacted.Credential).
		Msg("scheduler started")
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle, if any, to finish.
// It is a no-op while idle.
func (s *Scheduler) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.Status() != StateRunning {
		return
	}
	startAt := time.Now()
	s.state.Store(int32(StateStopping))
	s.cancel()
	if err := s.group.Wait(); err != nil {
		log.Error().Err(err).Msg("capture loop exited with error")
	}

	s.cancel = nil
	s.group = nil
	s.mu.Lock()
	s.running = nil
	s.mu.Unlock()
	s.state.Store(int32(StateIdle))
	log.Info().Dur("elapsed", time.Since(startAt)).Msg("scheduler stopped")
}

// RunOnce performs a single cycle with cfg outside the loop. It does not touch
// the lifecycle state; counters and OnResult still see the result.
func (s *Scheduler) RunOnce(ctx context.Context, cfg Config) CycleResult {
	return s.runCycle(ctx, cfg)
}

// loop waits one interval before every cycle. A cycle, once begun, runs to
// completion on a context that ignores cancellation.
func (s *Scheduler) loop(ctx context.Context, cfg Config) error {
	interval := cfg.Interval()
	for {
		if !sleepContext(ctx, interval) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		s.runCycle(context.WithoutCancel(ctx), cfg)
	}
}

func (s *Scheduler) runCycle(ctx context.Context, cfg Config) CycleResult {
	res := CycleResult{
		ID:          uuid.NewString(),
		DeviceIndex: cfg.DeviceIndex,
		StartedAt:   s.clock(),
	}
	startAt := time.Now()

	artifact, err := s.capture.Capture(ctx, cfg.DeviceIndex)
	if err != nil {
		res.Outcome = OutcomeCaptureFailed
		res.Err = err
	} else {
		conf, uerr := s.upload.Upload(ctx, artifact, cfg.DestinationID, cfg.Credential, s.title)
		artifact.Discard()
		res.Confirmation = conf
		if uerr != nil {
			res.Outcome = OutcomeUploadFailed
			res.Err = uerr
		} else {
			res.Outcome = OutcomeSuccess
		}
	}
	res.Duration = time.Since(startAt)

	s.report(res)
	return res
}

func (s *Scheduler) report(res CycleResult) {
	s.mu.Lock()
	s.stats.add(res)
	s.mu.Unlock()

	if res.Err != nil {
		log.Warn().Err(res.Err).
			Str("cycle_id", res.ID).
			Int("device_index", res.DeviceIndex).
			Str("outcome", res.Outcome.String()).
			Str("error_kind", ErrorKind(res.Err)).
			Dur("elapsed", res.Duration).
			Msg("cycle failed")
	} else {
		log.Info().
			Str("cycle_id", res.ID).
			Int("device_index", res.DeviceIndex).
			Str("message_id", res.Confirmation.MessageID).
			Dur("elapsed", res.Duration).
			Msg("cycle uploaded")
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}
