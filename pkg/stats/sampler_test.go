package stats

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChatDash/pkg/health"
	"ChatDash/pkg/logger"
)

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (p *recordingPublisher) Publish(ctx context.Context, snap Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func seeded(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func contains(pool []string, name string) bool {
	for _, p := range pool {
		if p == name {
			return true
		}
	}
	return false
}

func assertNamesFromPool(t *testing.T, names, pool []string, want int) {
	t.Helper()
	assert.Len(t, names, want)
	seen := make(map[string]bool)
	for _, n := range names {
		assert.True(t, contains(pool, n), "%q not in pool", n)
		assert.False(t, seen[n], "duplicate name %q", n)
		seen[n] = true
	}
}

func TestTick_OfflineThenOnline(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(false, true), seeded(1))

	require.NoError(t, s.Tick(ctx))
	snap := s.Snapshot()
	assert.Equal(t, Offline, snap.Status)
	assert.Zero(t, snap.ActiveClientCount)
	assert.Zero(t, snap.MessagesPerMinute)
	assert.Empty(t, snap.ConnectedClientNames)

	require.NoError(t, s.Tick(ctx))
	snap = s.Snapshot()
	assert.Equal(t, Online, snap.Status)
	assert.GreaterOrEqual(t, snap.ActiveClientCount, 1)
	assert.LessOrEqual(t, snap.ActiveClientCount, MaxActiveClients)
	assertNamesFromPool(t, snap.RoomNames, DefaultRoomPool, snap.RoomCount)
}

func TestTick_OnlineBounds(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewSampler(health.NewScriptedProber(true), seeded(7), WithClock(clock.Now))

	for i := 0; i < 500; i++ {
		require.NoError(t, s.Tick(ctx))
		clock.Advance(DefaultInterval)

		snap := s.Snapshot()
		require.Equal(t, Online, snap.Status)
		assert.GreaterOrEqual(t, snap.ActiveClientCount, 1)
		assert.LessOrEqual(t, snap.ActiveClientCount, MaxActiveClients)
		assert.GreaterOrEqual(t, snap.RoomCount, 1)
		assert.LessOrEqual(t, snap.RoomCount, MaxRooms)

		wantClients := snap.ActiveClientCount
		if wantClients > len(DefaultClientPool) {
			wantClients = len(DefaultClientPool)
		}
		assertNamesFromPool(t, snap.ConnectedClientNames, DefaultClientPool, wantClients)
		assertNamesFromPool(t, snap.RoomNames, DefaultRoomPool, snap.RoomCount)
	}
}

func TestTick_OfflineZeroesLiveCounters(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(true, true, false), seeded(3), WithMessageChance(1))

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.Tick(ctx))
	online := s.Snapshot()
	require.Equal(t, Online, online.Status)
	require.Equal(t, 2, online.MessagesPerMinute)

	require.NoError(t, s.Tick(ctx))
	snap := s.Snapshot()
	assert.Equal(t, Offline, snap.Status)
	assert.Zero(t, snap.ActiveClientCount)
	assert.Zero(t, snap.MessagesPerMinute)
	assert.Empty(t, snap.ConnectedClientNames)
	assert.Equal(t, "0:00:00", snap.Uptime)
	assert.Equal(t, 2, snap.MessageCount)
}

func TestTick_RoomsRetainedWhenOffline(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(true, false), seeded(5))

	require.NoError(t, s.Tick(ctx))
	online := s.Snapshot()

	require.NoError(t, s.Tick(ctx))
	offline := s.Snapshot()
	assert.Equal(t, online.RoomCount, offline.RoomCount)
	assert.Equal(t, online.RoomNames, offline.RoomNames)
}

func TestTick_ResetRoomsOffline(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(true, false), seeded(5), WithResetRoomsOffline(true))

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.Tick(ctx))

	snap := s.Snapshot()
	assert.Zero(t, snap.RoomCount)
	assert.Empty(t, snap.RoomNames)
}

func TestTick_MessagesPerMinuteTracksWindow(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewSampler(health.NewScriptedProber(true), seeded(1),
		WithClock(clock.Now), WithMessageChance(1))

	// 30 ticks at 2s: every tick adds one message, all within 60s.
	for i := 0; i < 30; i++ {
		require.NoError(t, s.Tick(ctx))
		clock.Advance(2 * time.Second)
	}
	assert.Equal(t, 30, s.Snapshot().MessagesPerMinute)

	// The window now holds stamps at t=0..58s; the clock is at t=60s.
	// The stamp at t=0 ages out and one new stamp arrives.
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 30, s.Snapshot().MessagesPerMinute)
	assert.Equal(t, 31, s.Snapshot().MessageCount)

	// Two minutes later every earlier stamp has aged out.
	clock.Advance(2 * time.Minute)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, 1, s.Snapshot().MessagesPerMinute)
}

func TestTick_NoMessagesWhenChanceZero(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(true), seeded(1), WithMessageChance(0))
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Tick(ctx))
	}
	assert.Zero(t, s.Snapshot().MessagesPerMinute)
	assert.Zero(t, s.Snapshot().MessageCount)
}

func TestTick_UptimeGrowsWhileOnline(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewSampler(health.NewScriptedProber(true, true, true, false, true), seeded(1), WithClock(clock.Now))

	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, "0:00:00", s.Snapshot().Uptime)

	clock.Advance(2 * time.Second)
	require.NoError(t, s.Tick(ctx))
	clock.Advance(63 * time.Second)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, "0:01:05", s.Snapshot().Uptime)

	clock.Advance(2 * time.Second)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, "0:00:00", s.Snapshot().Uptime)

	clock.Advance(2 * time.Second)
	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, "0:00:00", s.Snapshot().Uptime, "uptime restarts after going offline")
}

func TestTick_SmallPoolCapsNames(t *testing.T) {
	ctx := context.Background()
	s := NewSampler(health.NewScriptedProber(true), seeded(9),
		WithPools([]string{"a", "b"}, []string{"r"}))

	for i := 0; i < 50; i++ {
		require.NoError(t, s.Tick(ctx))
		snap := s.Snapshot()
		want := snap.ActiveClientCount
		if want > 2 {
			want = 2
		}
		assertNamesFromPool(t, snap.ConnectedClientNames, []string{"a", "b"}, want)
		assertNamesFromPool(t, snap.RoomNames, []string{"r"}, 1)
	}
}

func TestTick_RecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	log := logger.NewBufferLogger()
	var panics int
	calls := 0
	prober := health.ProberFunc(func(context.Context) bool {
		calls++
		if calls == 2 {
			panic("probe exploded")
		}
		return true
	})
	s := NewSampler(prober, seeded(1), WithLogger(log), WithPanicHook(func(interface{}) { panics++ }))

	require.NoError(t, s.Tick(ctx))
	before := s.Snapshot()

	err := s.Tick(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe exploded")
	assert.Equal(t, 1, panics)
	assert.True(t, log.HasLevel("error"))
	assert.Equal(t, before, s.Snapshot(), "snapshot kept on panic")

	require.NoError(t, s.Tick(ctx))
	assert.Equal(t, Online, s.Snapshot().Status)
}

func TestTick_CancelledDuringProbeLeavesSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := health.ProberFunc(func(context.Context) bool {
		cancel()
		return false
	})
	s := NewSampler(prober)

	err := s.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.Snapshot().SampledAt.IsZero())
}

func TestTick_Publishers(t *testing.T) {
	ctx := context.Background()
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("redis down")}
	log := logger.NewBufferLogger()
	s := NewSampler(health.NewScriptedProber(true), seeded(1),
		WithPublishers(ok, failing), WithLogger(log))

	require.NoError(t, s.Tick(ctx))
	require.NoError(t, s.Tick(ctx))

	assert.Equal(t, 2, ok.count())
	assert.Equal(t, 2, failing.count())
	assert.True(t, log.HasLevel("warn"))
	assert.Equal(t, s.Snapshot(), ok.snaps[1])
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	s := NewSampler(health.NewScriptedProber(true), seeded(1))
	require.NoError(t, s.Tick(context.Background()))

	snap := s.Snapshot()
	require.NotEmpty(t, snap.RoomNames)
	snap.RoomNames[0] = "tampered"

	assert.NotEqual(t, "tampered", s.Snapshot().RoomNames[0])
}

func TestLatest(t *testing.T) {
	s := NewSampler(health.NewScriptedProber(false))
	snap, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, InitialSnapshot(), snap)
}

func TestStartStop(t *testing.T) {
	prober := health.NewScriptedProber(true)
	s := NewSampler(prober, seeded(1), WithInterval(10*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.Eventually(t, func() bool { return prober.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Stop())
	assert.Less(t, time.Since(start), time.Second)

	stopped := s.Snapshot()
	calls := prober.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, s.Snapshot(), "no mutation after Stop")
	assert.Equal(t, calls, prober.Calls())

	assert.NoError(t, s.Stop(), "second Stop is a no-op")
	require.NoError(t, s.Start(context.Background()), "restart after Stop")
	require.NoError(t, s.Stop())
}

func TestStart_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := health.NewScriptedProber(true)
	s := NewSampler(prober, WithInterval(10*time.Millisecond))

	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return prober.Calls() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, s.Stop())
}

func TestStart_LoopSurvivesPanics(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	prober := health.ProberFunc(func(context.Context) bool {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls%2 == 1 {
			panic("flaky")
		}
		return true
	})
	s := NewSampler(prober, seeded(1), WithInterval(5*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 4
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, Online, s.Snapshot().Status)
}

func TestStop_Timeout(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	prober := health.ProberFunc(func(context.Context) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return true
	})
	s := NewSampler(prober, WithInterval(time.Hour), WithJoinTimeout(20*time.Millisecond))

	require.NoError(t, s.Start(context.Background()))
	<-entered
	assert.ErrorIs(t, s.Stop(), ErrStopTimeout)
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning,
		"the old loop is still inside its tick")
	assert.ErrorIs(t, s.Stop(), ErrStopTimeout, "a second Stop waits on the same loop")

	close(release)
	require.Eventually(t, func() bool {
		return s.Start(context.Background()) == nil
	}, 2*time.Second, 5*time.Millisecond)
	<-entered
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	require.NoError(t, s.Stop())
}

func TestStart_AfterParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	prober := health.NewScriptedProber(true)
	s := NewSampler(prober, WithInterval(10*time.Millisecond))

	require.NoError(t, s.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return s.Start(context.Background()) == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}
