package simulation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-status-sim/internal/metrics"
	"flight-status-sim/pkg/rand"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type schedulerFixture struct {
	store *countingStore
	clock *fakeClock
	sched *Scheduler
	m     *metrics.Metrics
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	st := newCountingStore()
	clock := &fakeClock{t: monday.Add(10 * time.Hour)}
	m := metrics.NewMetrics()
	sim := NewSimulator(st, fixtureTimetable(), rand.New(7), Options{Location: hkt, Probabilities: quiet()}, nil, m)
	sched := NewScheduler(sim, SchedulerOptions{
		Interval: time.Minute,
		Location: hkt,
		Now:      clock.Now,
	}, nil, m)
	return &schedulerFixture{store: st, clock: clock, sched: sched, m: m}
}

// A full cycle for today reads three times: the date and the day before to
// generate, then the date again to advance statuses.
const readsPerCycle = 3

func TestConcurrentSyncsRunOneCycle(t *testing.T) {
	f := newSchedulerFixture(t)
	f.store.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.sched.Sync(context.Background(), f.clock.Now()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.store.gate)
	wg.Wait()

	assert.EqualValues(t, readsPerCycle, f.store.reads.Load())
	assert.EqualValues(t, 1, f.m.GetSyncCycles())
	assert.Len(t, f.sched.History(0), 1)
}

func TestSyncThrottlesWithinInterval(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)

	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))
	assert.EqualValues(t, readsPerCycle, f.store.reads.Load())
	first := f.sched.LastRun()
	assert.False(t, first.IsZero())

	f.clock.Advance(30 * time.Second)
	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))
	assert.EqualValues(t, readsPerCycle, f.store.reads.Load())
	assert.Equal(t, first, f.sched.LastRun())
	assert.EqualValues(t, 1, f.m.GetSyncThrottled())

	f.clock.Advance(31 * time.Second)
	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))
	assert.EqualValues(t, 2*readsPerCycle, f.store.reads.Load())
}

func TestSyncResetsOnDayChange(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.clock.t = monday.Add(23*time.Hour + 59*time.Minute + 50*time.Second)

	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))
	f.clock.Advance(20 * time.Second)
	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))

	assert.EqualValues(t, 2*readsPerCycle, f.store.reads.Load())
	hist := f.sched.History(0)
	require.Len(t, hist, 2)
	assert.Equal(t, "2026-10-20", hist[0].Date)
	assert.Equal(t, "2026-10-19", hist[1].Date)
}

func TestSyncPastDateIsNoop(t *testing.T) {
	f := newSchedulerFixture(t)

	require.NoError(t, f.sched.Sync(context.Background(), monday.AddDate(0, 0, -1)))
	assert.Zero(t, f.store.reads.Load())
	assert.Empty(t, f.sched.History(0))
}

func TestSyncFutureDateGeneratesOnly(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	wednesday := monday.AddDate(0, 0, 2).Add(12 * time.Hour)

	require.NoError(t, f.sched.Sync(ctx, wednesday))
	require.NoError(t, f.sched.Sync(ctx, wednesday))

	// Not throttled: both calls ran generation (two reads each), neither ran
	// a status pass.
	assert.EqualValues(t, 4, f.store.reads.Load())
	assert.Zero(t, f.store.updates.Load())
	assert.True(t, f.sched.LastRun().IsZero())

	occs, err := f.store.Memory.OccurrencesForDate(ctx, wednesday)
	require.NoError(t, err)
	assert.Len(t, occs, 3)

	hist := f.sched.History(1)
	require.Len(t, hist, 1)
	assert.Equal(t, KindFuture, hist[0].Kind)
	assert.Zero(t, hist[0].Generate.Generated)
}

func TestSyncFailureStillStampsLastRun(t *testing.T) {
	ctx := context.Background()
	f := newSchedulerFixture(t)
	f.store.fail.Store(true)

	err := f.sched.Sync(ctx, f.clock.Now())
	assert.ErrorIs(t, err, errStorage)
	assert.False(t, f.sched.LastRun().IsZero())
	assert.EqualValues(t, 1, f.m.GetSyncFailures())

	hist := f.sched.History(0)
	require.Len(t, hist, 1)
	assert.Contains(t, hist[0].Error, "storage unavailable")

	// The failed cycle still counts against the interval.
	f.store.fail.Store(false)
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.sched.Sync(ctx, f.clock.Now()))
	assert.EqualValues(t, 1, f.store.reads.Load())
}

func TestCallerCancellationDoesNotStopCycle(t *testing.T) {
	f := newSchedulerFixture(t)
	f.store.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.sched.Sync(ctx, f.clock.Now()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Sync did not return after its context was cancelled")
	}

	close(f.store.gate)
	require.Eventually(t, func() bool {
		return len(f.sched.History(0)) == 1
	}, time.Second, 10*time.Millisecond)

	rep := f.sched.History(1)[0]
	assert.Empty(t, rep.Error)
	assert.Equal(t, 4, rep.Generate.Generated)
}

func TestRunPregeneratesAhead(t *testing.T) {
	st := newCountingStore()
	loc := time.UTC
	sim := NewSimulator(st, fixtureTimetable(), rand.New(3), Options{Location: loc, Probabilities: quiet()}, nil, nil)
	sched := NewScheduler(sim, SchedulerOptions{Interval: 20 * time.Millisecond, Location: loc}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	sched.Run(ctx, 2)

	kinds := map[string]bool{}
	dates := map[string]bool{}
	for _, r := range sched.History(0) {
		kinds[r.Kind] = true
		dates[r.Date] = true
	}
	assert.True(t, kinds[KindToday])
	assert.True(t, kinds[KindFuture])
	assert.GreaterOrEqual(t, len(dates), 3)
}
