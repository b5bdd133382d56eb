package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"membergate/internal/shared/biztime"
	"membergate/internal/shared/logger"
)

// Scheduler drives the engine on two cadences. The slow sweep runs on a
// fixed gocron interval for the whole lifetime of the process. The fast
// sweep is a ticker loop that exists only while checkouts are pending: it is
// spawned on the first Track call and stops itself once the tracker drains.
type Scheduler struct {
	engine       *Engine
	scheduler    gocron.Scheduler
	slowInterval time.Duration
	fastInterval time.Duration
	logger       logger.Interface

	started   bool
	startedMu sync.Mutex

	fastMu      sync.Mutex
	fastRunning bool
	fastStop    chan struct{}
	fastWG      sync.WaitGroup
}

// NewScheduler creates a scheduler around the engine and registers the slow
// sweep job. Start must be called before any sweeping happens.
func NewScheduler(
	engine *Engine,
	slowInterval, fastInterval time.Duration,
	log logger.Interface,
) (*Scheduler, error) {
	gs, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		engine:       engine,
		scheduler:    gs,
		slowInterval: slowInterval,
		fastInterval: fastInterval,
		logger:       log,
	}

	_, err = gs.NewJob(
		gocron.DurationJob(slowInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), slowInterval)
			defer cancel()
			s.runSlowSweep(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("reconcile", "slow-sweep"),
		gocron.WithName("entitlement-slow-sweep"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Engine returns the underlying reconciliation engine.
func (s *Scheduler) Engine() *Engine {
	return s.engine
}

// Start begins the slow sweep cadence. Calling Start on a started scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()

	if s.started {
		s.logger.Warnw("scheduler already started")
		return
	}

	s.scheduler.Start()
	s.started = true
	s.logger.Infow("reconcile scheduler started",
		"slow_interval", s.slowInterval,
		"fast_interval", s.fastInterval)
}

// Stop shuts down both cadences and drops any pending checkouts. It waits
// for in-flight sweeps to finish.
func (s *Scheduler) Stop() error {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()

	// The fast loop may be running even before Start, since Track spawns it
	// independently of the slow cadence.
	s.stopFastLoop()

	if !s.started {
		s.engine.Tracker().Clear()
		return nil
	}

	s.logger.Infow("stopping reconcile scheduler")
	err := s.scheduler.Shutdown()
	s.engine.Tracker().Clear()
	s.started = false

	if err != nil {
		s.logger.Errorw("scheduler shutdown with error", "error", err)
		return err
	}

	s.logger.Infow("reconcile scheduler stopped")
	return nil
}

// IsStarted reports whether the slow cadence is running.
func (s *Scheduler) IsStarted() bool {
	s.startedMu.Lock()
	defer s.startedMu.Unlock()
	return s.started
}

// Track registers a pending checkout and ensures the fast loop is running.
func (s *Scheduler) Track(identity, sessionToken string) {
	s.engine.Tracker().Track(identity, sessionToken)
	s.startFastLoop()
	s.logger.Infow("checkout tracked",
		"identity", identity,
		"pending", s.engine.Tracker().Len())
}

// Has reports whether the identity already has an in-flight checkout.
func (s *Scheduler) Has(identity string) bool {
	return s.engine.Tracker().Has(identity)
}

// FastLoopRunning reports whether the fast cadence is currently active.
func (s *Scheduler) FastLoopRunning() bool {
	s.fastMu.Lock()
	defer s.fastMu.Unlock()
	return s.fastRunning
}

func (s *Scheduler) runSlowSweep(ctx context.Context) {
	startTime := biztime.NowUTC()

	if _, err := s.engine.ReconcileAll(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Errorw("slow sweep failed",
			"error", err,
			"duration", time.Since(startTime))
		return
	}

	expired, err := s.engine.ReconcileLegacyExpiry(ctx)
	if err != nil {
		s.logger.Errorw("legacy expiry sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.logger.Infow("legacy grants expired", "count", expired)
	}

	s.logger.Debugw("slow sweep finished", "duration", time.Since(startTime))
}

func (s *Scheduler) startFastLoop() {
	s.fastMu.Lock()
	defer s.fastMu.Unlock()

	if s.fastRunning {
		return
	}
	s.fastRunning = true
	s.fastStop = make(chan struct{})
	stop := s.fastStop

	s.logger.Infow("starting fast checkout loop", "interval", s.fastInterval)
	s.fastWG.Add(1)
	go func() {
		defer s.fastWG.Done()
		s.runFastLoop(stop)
	}()
}

func (s *Scheduler) stopFastLoop() {
	s.fastMu.Lock()
	if s.fastRunning {
		close(s.fastStop)
		s.fastRunning = false
	}
	s.fastMu.Unlock()
	// Wait outside the mutex so a self-stopping loop can flip the flag.
	s.fastWG.Wait()
}

func (s *Scheduler) runFastLoop(stop chan struct{}) {
	s.sweepPendingCheckouts()
	if s.tryStopFastLoop(stop) {
		return
	}

	ticker := time.NewTicker(s.fastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweepPendingCheckouts()
			if s.tryStopFastLoop(stop) {
				return
			}
		}
	}
}

func (s *Scheduler) sweepPendingCheckouts() {
	ctx, cancel := context.WithTimeout(context.Background(), s.fastInterval*4)
	defer cancel()

	confirmed, err := s.engine.ReconcilePendingCheckouts(ctx)
	if err != nil {
		s.logger.Errorw("fast checkout sweep failed", "error", err)
		return
	}
	if confirmed > 0 {
		s.logger.Infow("checkouts confirmed", "count", confirmed)
	}
}

// tryStopFastLoop retires the loop when the tracker has drained. The check
// and the flag flip happen under the same lock that Track uses, so a
// concurrent Track either lands before the emptiness check or observes the
// loop as stopped and spawns a fresh one.
func (s *Scheduler) tryStopFastLoop(stop chan struct{}) bool {
	s.fastMu.Lock()
	defer s.fastMu.Unlock()

	select {
	case <-stop:
		return true
	default:
	}

	if s.engine.Tracker().Len() > 0 {
		return false
	}

	s.fastRunning = false
	s.logger.Infow("fast checkout loop idle, stopping")
	return true
}
