// Package scanner runs the live recognition loop: it samples frames on a fixed
// period, extracts and matches the face, and debounces the per-frame results
// into state transitions for the display.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/memory-anchor/internal/constants"
	"github.com/kozaktomas/memory-anchor/internal/facematch"
	"github.com/kozaktomas/memory-anchor/internal/logger"
	"github.com/kozaktomas/memory-anchor/internal/metrics"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var (
	// ErrAlreadyScanning is returned by Start while a scan runs.
	ErrAlreadyScanning = errors.New("scan already running")
	// ErrNotScanning is returned by Stop when no scan runs.
	ErrNotScanning = errors.New("scan not running")
	// ErrExtractionFailed wraps a frame or extractor error of a single tick.
	ErrExtractionFailed = errors.New("face extraction failed")
)

// FrameSource is the camera. It is owned by the controller while scanning.
type FrameSource interface {
	CurrentFrame(ctx context.Context) ([]byte, error)
	Release() error
}

// FrameSourceFactory opens the camera when a scan starts.
type FrameSourceFactory func(ctx context.Context) (FrameSource, error)

// Display receives transitions. Show is called with the controller lock held,
// so it must return quickly and must not call back into the controller.
type Display interface {
	Show(t Transition)
}

// DegradedNotifier is optionally implemented by a Display that wants to know
// when the extractor keeps failing.
type DegradedNotifier interface {
	SetDegraded(degraded bool, consecutiveFailures int)
}

// FaceSource provides registry snapshots.
type FaceSource interface {
	All() []registry.EnrolledFace
}

// Config tunes the controller. Zero values fall back to the defaults.
type Config struct {
	Interval      time.Duration
	TickTimeout   time.Duration
	Threshold     float64
	DegradedAfter int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = constants.DefaultScanInterval
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = constants.DefaultTickTimeout
	}
	if c.Threshold <= 0 {
		c.Threshold = constants.MatchThreshold
	}
	if c.DegradedAfter <= 0 {
		c.DegradedAfter = constants.DegradedAfterFailures
	}
	return c
}

// Controller owns the recognition state.
type Controller struct {
	cfg          Config
	extractor    facematch.Extractor
	faces        FaceSource
	openSource   FrameSourceFactory
	display      Display
	newScheduler func() Scheduler
	log          *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	busy atomic.Bool

	mu        sync.Mutex
	running   bool
	gen       uint64
	source    FrameSource
	scheduler Scheduler
	state     State
	current   identity
	profile   *registry.Profile
	since     time.Time
	failures  int
	degraded  bool
	ticks     uint64
	skipped   uint64
	failed    uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the gocron scheduler.
func WithScheduler(fn func() Scheduler) Option {
	return func(c *Controller) { c.newScheduler = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.log = logger.OrNop(l) }
}

// WithMetrics records tick and transition metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates an idle controller.
func NewController(cfg Config, extractor facematch.Extractor, faces FaceSource, open FrameSourceFactory, display Display, opts ...Option) *Controller {
	c := &Controller{
		cfg:          cfg.withDefaults(),
		extractor:    extractor,
		faces:        faces,
		openSource:   open,
		display:      display,
		newScheduler: NewCronScheduler,
		log:          logger.Nop(),
		now:          time.Now,
		state:        Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the frame source and begins ticking. The display first receives
// "nobody" in the Scanning state.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyScanning
	}

	src, err := c.openSource(ctx)
	if err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}

	c.gen++
	gen := c.gen
	sched := c.newScheduler()
	if err := sched.Start(c.cfg.Interval, func() { c.runTick(gen) }); err != nil {
		if rerr := src.Release(); rerr != nil {
			c.log.Warn("failed to release frame source", "error", rerr)
		}
		return err
	}

	c.running = true
	c.source = src
	c.scheduler = sched
	c.failures = 0
	c.setDegradedLocked(false)
	c.current = identity{}
	c.transitionLocked(Scanning, "", nil, 0)
	c.log.Info("scan started", "interval", c.cfg.Interval, "threshold", c.cfg.Threshold)
	return nil
}

// Stop cancels ticking, releases the frame source and emits "nobody" in the
// Idle state. A tick still running when Stop returns has its result discarded.
func (c *Controller) Stop(_ context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotScanning
	}
	c.running = false
	c.gen++
	sched, src := c.scheduler, c.source
	c.scheduler, c.source = nil, nil
	c.current = identity{}
	c.failures = 0
	c.setDegradedLocked(false)
	c.transitionLocked(Idle, "", nil, 0)
	c.mu.Unlock()

	sched.Stop()
	c.log.Info("scan stopped")
	if err := src.Release(); err != nil {
		return fmt.Errorf("release frame source: %w", err)
	}
	return nil
}

// Close stops a running scan and ignores ErrNotScanning.
func (c *Controller) Close() error {
	if err := c.Stop(context.Background()); err != nil && !errors.Is(err, ErrNotScanning) {
		return err
	}
	return nil
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:               c.state,
		Running:             c.running,
		Degraded:            c.degraded,
		ConsecutiveFailures: c.failures,
		Ticks:               c.ticks,
		SkippedTicks:        c.skipped,
		FailedTicks:         c.failed,
		Since:               c.since,
	}
	if c.profile != nil {
		p := c.profile.Clone()
		s.Profile = &p
		s.FaceID = p.ID
	}
	return s
}

// runTick is the scheduler callback. A tick that is due while the previous
// one still runs is skipped.
func (c *Controller) runTick(gen uint64) {
	if !c.busy.CompareAndSwap(false, true) {
		c.mu.Lock()
		c.skipped++
		c.mu.Unlock()
		c.metrics.RecordTick("skipped", 0)
		return
	}
	defer c.busy.Store(false)
	c.tick(gen)
}

type observation struct {
	kind     identityKind
	face     *registry.EnrolledFace
	distance float64
	err      error
}

func (c *Controller) tick(gen uint64) {
	c.mu.Lock()
	if !c.running || c.gen != gen {
		c.mu.Unlock()
		return
	}
	src := c.source
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.TickTimeout)
	defer cancel()

	started := c.now()
	obs := c.observe(ctx, src)
	took := c.now().Sub(started)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.gen != gen {
		c.metrics.RecordTick("discarded", took)
		return
	}
	c.ticks++
	c.apply(obs, took)
}

// observe grabs a frame and classifies it. It runs without the lock.
func (c *Controller) observe(ctx context.Context, src FrameSource) observation {
	frame, err := src.CurrentFrame(ctx)
	if err != nil {
		return observation{err: fmt.Errorf("%w: frame: %w", ErrExtractionFailed, err)}
	}
	emb, err := c.extractor.Extract(ctx, frame)
	if err != nil {
		return observation{err: fmt.Errorf("%w: %w", ErrExtractionFailed, err)}
	}
	if len(emb) == 0 {
		return observation{kind: nobody}
	}

	faces := c.faces.All()
	match, distance := registry.Match(emb, faces, c.cfg.Threshold)
	if !math.IsInf(distance, 1) {
		c.metrics.ObserveMatchDistance(distance)
	}
	if match == nil {
		return observation{kind: unknownFace, distance: distance}
	}
	return observation{kind: knownFace, face: match, distance: distance}
}

func (c *Controller) apply(obs observation, took time.Duration) {
	if obs.err != nil {
		c.failed++
		c.failures++
		c.metrics.RecordTick("failed", took)
		c.log.Warn("scan tick failed, treating as no face", "error", obs.err, "consecutive_failures", c.failures)
		if c.failures >= c.cfg.DegradedAfter && !c.degraded {
			c.log.Error("face extraction keeps failing, scanner degraded", "consecutive_failures", c.failures)
			c.setDegradedLocked(true)
		}
		obs = observation{kind: nobody}
	} else {
		c.failures = 0
		if c.degraded {
			c.log.Info("face extraction recovered")
			c.setDegradedLocked(false)
		}
		c.metrics.RecordTick(outcomeName(obs.kind), took)
	}

	switch obs.kind {
	case nobody:
		if c.current.kind != nobody {
			c.current = identity{}
			c.transitionLocked(Scanning, "", nil, 0)
		}
	case unknownFace:
		if c.current.kind != unknownFace {
			c.current = identity{kind: unknownFace}
			visitor := UnknownVisitor()
			c.transitionLocked(Unknown, UnknownFaceID, &visitor, obs.distance)
		}
	case knownFace:
		id := obs.face.ID()
		if c.current.kind != knownFace || c.current.id != id {
			c.current = identity{kind: knownFace, id: id}
			profile := obs.face.Profile.Clone()
			c.transitionLocked(Recognized, id, &profile, obs.distance)
		}
	}
}

func (c *Controller) transitionLocked(state State, faceID string, profile *registry.Profile, distance float64) {
	c.state = state
	c.profile = profile
	c.since = c.now()
	c.metrics.RecordTransition(state.String())

	t := Transition{State: state, FaceID: faceID, Profile: profile, At: c.since}
	if !math.IsInf(distance, 0) {
		t.Distance = distance
	}
	if profile != nil {
		c.log.Info("recognition changed", "state", state.String(), "face_id", faceID, "name", profile.Name)
	} else {
		c.log.Debug("recognition changed", "state", state.String())
	}
	if c.display != nil {
		c.display.Show(t)
	}
}

func (c *Controller) setDegradedLocked(degraded bool) {
	if c.degraded == degraded {
		return
	}
	c.degraded = degraded
	c.metrics.SetDegraded(degraded)
	if n, ok := c.display.(DegradedNotifier); ok {
		n.SetDegraded(degraded, c.failures)
	}
}

func outcomeName(k identityKind) string {
	switch k {
	case knownFace:
		return "match"
	case unknownFace:
		return "unknown"
	default:
		return "no_face"
	}
}
