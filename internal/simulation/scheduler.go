package simulation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flight-status-sim/internal/buffer"
	"flight-status-sim/internal/metrics"
	"flight-status-sim/pkg/logger"
	"flight-status-sim/pkg/utils"
)

const (
	DefaultSyncInterval = 60 * time.Second
	DefaultHistorySize  = 50
)

// Runner is the work a Scheduler coalesces. *Simulator implements it.
type Runner interface {
	EnsureDaily(ctx context.Context, date time.Time) (GenerateResult, error)
	UpdateStatuses(ctx context.Context, date, now time.Time) (UpdateResult, error)
}

// Cycle kinds recorded in a Report.
const (
	KindToday  = "today"
	KindFuture = "future"
)

// Report records one executed cycle.
type Report struct {
	Date       string         `json:"date"`
	Kind       string         `json:"kind"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Generate   GenerateResult `json:"generate"`
	Update     UpdateResult   `json:"update"`
	Error      string         `json:"error,omitempty"`
}

type SchedulerOptions struct {
	Interval time.Duration
	Location *time.Location
	// CycleTimeout bounds one detached cycle; zero means no bound.
	CycleTimeout time.Duration
	HistorySize  int
	// Now replaces the wall clock, mainly in tests.
	Now func() time.Time
}

// Scheduler throttles and coalesces sync requests. For today it runs a full
// generate-and-update cycle at most once per interval, and concurrent
// callers share the cycle in flight. Future dates are generated only, one
// run per date at a time. Past dates are left alone.
type Scheduler struct {
	runner       Runner
	interval     time.Duration
	loc          *time.Location
	cycleTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	dayKey  string
	lastRun time.Time

	history *buffer.RingBuffer[Report]
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewScheduler(r Runner, opts SchedulerOptions, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSyncInterval
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HistorySize < 1 {
		opts.HistorySize = DefaultHistorySize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Scheduler{
		runner:       r,
		interval:     opts.Interval,
		loc:          opts.Location,
		cycleTimeout: opts.CycleTimeout,
		now:          opts.Now,
		history:      buffer.NewRingBuffer[Report](opts.HistorySize),
		logger:       log,
		metrics:      m,
	}
}

// Sync brings date up to date. It returns once the shared work finishes or
// ctx is done; a caller giving up does not stop the work. A throttled call
// returns nil immediately.
func (s *Scheduler) Sync(ctx context.Context, date time.Time) error {
	now := s.now()
	today := utils.StartOfDay(now, s.loc)
	day := utils.StartOfDay(date, s.loc)

	switch utils.CompareDays(day, today) {
	case -1:
		return nil
	case 1:
		return s.wait(ctx, "future:"+utils.DateKey(day), func(runCtx context.Context) error {
			return s.runFuture(runCtx, day)
		})
	}

	key := utils.DateKey(today)
	if !s.due(key, now) {
		s.metrics.IncrementSyncThrottled()
		return nil
	}
	return s.wait(ctx, "today:"+key, func(runCtx context.Context) error {
		// A caller may arrive after the previous flight for this day has
		// already finished; it must not start a second cycle.
		if !s.due(key, s.now()) {
			s.metrics.IncrementSyncThrottled()
			return nil
		}
		return s.runToday(runCtx, today)
	})
}

// due resets the throttle when the day changes and reports whether a cycle
// for key may start at now.
func (s *Scheduler) due(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != s.dayKey {
		s.dayKey = key
		s.lastRun = time.Time{}
	}
	return s.lastRun.IsZero() || now.Sub(s.lastRun) >= s.interval
}

func (s *Scheduler) stamp(key string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == s.dayKey {
		s.lastRun = at
	}
}

// LastRun returns when the current day's last cycle finished.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) wait(ctx context.Context, key string, fn func(context.Context) error) error {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		runCtx := context.WithoutCancel(ctx)
		if s.cycleTimeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, s.cycleTimeout)
			defer cancel()
		}
		return nil, fn(runCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.IncrementSyncJoined()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runToday(ctx context.Context, today time.Time) error {
	key := utils.DateKey(today)
	rep := Report{Date: key, Kind: KindToday, StartedAt: s.now()}

	err := s.cycle(ctx, today, &rep)

	rep.FinishedAt = s.now()
	s.stamp(key, rep.FinishedAt)
	s.record(rep, err)
	return err
}

func (s *Scheduler) cycle(ctx context.Context, today time.Time, rep *Report) error {
	gen, err := s.runner.EnsureDaily(ctx, today)
	rep.Generate = gen
	if err != nil {
		return err
	}
	upd, err := s.runner.UpdateStatuses(ctx, today, s.now())
	rep.Update = upd
	return err
}

func (s *Scheduler) runFuture(ctx context.Context, day time.Time) error {
	rep := Report{Date: utils.DateKey(day), Kind: KindFuture, StartedAt: s.now()}
	gen, err := s.runner.EnsureDaily(ctx, day)
	rep.Generate = gen
	rep.FinishedAt = s.now()
	s.record(rep, err)
	return err
}

func (s *Scheduler) record(rep Report, err error) {
	s.metrics.IncrementSyncCycles()
	s.metrics.RecordCycleDuration(rep.FinishedAt.Sub(rep.StartedAt))
	if err != nil {
		rep.Error = err.Error()
		s.metrics.IncrementSyncFailures()
		s.logger.Error("Sync %s cycle for %s failed: %v", rep.Kind, rep.Date, err)
	} else {
		s.logger.Debug("Sync %s cycle for %s: generated %d, updated %d", rep.Kind, rep.Date, rep.Generate.Generated, rep.Update.Updated)
	}
	s.history.Push(rep)
}

// History returns up to n recent cycle reports, newest first. n <= 0 returns
// all retained reports.
func (s *Scheduler) History(n int) []Report {
	return s.history.Latest(n)
}

// Run syncs today every interval until ctx is done, and keeps the next
// pregenerateDays dates materialized ahead of time.
func (s *Scheduler) Run(ctx context.Context, pregenerateDays int) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting background sync every %v", s.interval)
	s.tick(ctx, pregenerateDays)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping background sync")
			return
		case <-ticker.C:
			s.tick(ctx, pregenerateDays)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, pregenerateDays int) {
	now := s.now()
	if err := s.Sync(ctx, now); err != nil && ctx.Err() == nil {
		s.logger.Warn("Background sync failed: %v", err)
	}
	today := utils.StartOfDay(now, s.loc)
	for i := 1; i <= pregenerateDays; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := s.Sync(ctx, today.AddDate(0, 0, i)); err != nil && ctx.Err() == nil {
			s.logger.Warn("Pre-generation for %s failed: %v", utils.DateKey(today.AddDate(0, 0, i)), err)
		}
	}
}
