package stats

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ChatDash/pkg/health"
	"ChatDash/pkg/logger"
)

// DefaultInterval is the period between ticks.
const DefaultInterval = 2 * time.Second

// MessageSpan is the trailing window behind messages_per_minute.
const MessageSpan = time.Minute

var (
	// ErrAlreadyRunning is returned by Start when the loop is active.
	ErrAlreadyRunning = errors.New("sampler: already running")
	// ErrStopTimeout is returned by Stop when the loop did not exit in time.
	ErrStopTimeout = errors.New("sampler: loop did not stop in time")
)

// Publisher receives every snapshot the sampler produces.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithJoinTimeout bounds how long Stop waits for the loop to exit.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.joinTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRand sets the random source. Tests use a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sampler) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMessageChance sets the per-tick probability of a synthetic message.
func WithMessageChance(p float64) Option {
	return func(s *Sampler) {
		s.messageChance = p
	}
}

// WithPools replaces the client and room name pools.
func WithPools(clients, rooms []string) Option {
	return func(s *Sampler) {
		if len(clients) > 0 {
			s.clientPool = clients
		}
		if len(rooms) > 0 {
			s.roomPool = rooms
		}
	}
}

// WithResetRoomsOffline clears room_count and room_names when the server is
// unreachable. Off by default: rooms are kept across Offline ticks.
func WithResetRoomsOffline(reset bool) Option {
	return func(s *Sampler) {
		s.resetRoomsOffline = reset
	}
}

// WithPublishers adds publishers notified after every tick.
func WithPublishers(p ...Publisher) Option {
	return func(s *Sampler) {
		s.publishers = append(s.publishers, p...)
	}
}

// WithPanicHook is called with the recovered value when a tick panics.
func WithPanicHook(fn func(recovered interface{})) Option {
	return func(s *Sampler) {
		s.onPanic = fn
	}
}

// Sampler probes the chat server on a fixed interval and publishes a
// synthesized Snapshot. The probe result only chooses between Online and
// Offline; every other field is random.
type Sampler struct {
	prober            health.Prober
	interval          time.Duration
	joinTimeout       time.Duration
	messageChance     float64
	clientPool        []string
	roomPool          []string
	resetRoomsOffline bool
	publishers        []Publisher
	onPanic           func(interface{})
	log               logger.Logger
	now               func() time.Time

	// guarded by tickMu
	tickMu      sync.Mutex
	rng         *rand.Rand
	window      *MessageWindow
	onlineSince time.Time
	messages    int

	mu   sync.RWMutex
	snap Snapshot

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler creates a sampler around prober.
func NewSampler(prober health.Prober, opts ...Option) *Sampler {
	s := &Sampler{
		prober:        prober,
		interval:      DefaultInterval,
		messageChance: DefaultMessageChance,
		clientPool:    DefaultClientPool,
		roomPool:      DefaultRoomPool,
		log:           logger.Noop(),
		now:           time.Now,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		window:        NewMessageWindow(MessageSpan),
		snap:          InitialSnapshot(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.joinTimeout == 0 {
		s.joinTimeout = s.interval + health.DefaultTimeout
	}
	return s
}

// Interval returns the tick period.
func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Snapshot returns a copy of the latest snapshot.
func (s *Sampler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Latest returns the latest snapshot. It never fails for an in-process sampler.
func (s *Sampler) Latest(ctx context.Context) (Snapshot, error) {
	return s.Snapshot(), nil
}

// Tick runs one probe-and-synthesize iteration. A panic inside the tick is
// recovered, logged and returned as an error; the previous snapshot is kept.
// If ctx is cancelled while probing, the snapshot is left untouched.
func (s *Sampler) Tick(ctx context.Context) (err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("tick panicked: %v", r)
			if s.onPanic != nil {
				s.onPanic(r)
			}
			err = fmt.Errorf("sampler: tick panicked: %v", r)
		}
	}()

	reachable := s.prober.Probe(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	next := s.next(reachable, s.now())

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	for _, p := range s.publishers {
		if err := p.Publish(ctx, next.Clone()); err != nil {
			s.log.Warn("publish failed: %v", err)
		}
	}
	return nil
}

// next builds the snapshot that follows the current one.
func (s *Sampler) next(reachable bool, now time.Time) Snapshot {
	s.mu.RLock()
	next := s.snap.Clone()
	s.mu.RUnlock()
	next.SampledAt = now

	if !reachable {
		next.Status = Offline
		next.ActiveClientCount = 0
		next.MessagesPerMinute = 0
		next.ConnectedClientNames = []string{}
		next.Uptime = FormatUptime(0)
		s.onlineSince = time.Time{}
		if s.resetRoomsOffline {
			next.RoomCount = 0
			next.RoomNames = []string{}
		}
		next.MessageCount = s.messages
		return next
	}

	if next.Status != Online || s.onlineSince.IsZero() {
		s.onlineSince = now
	}
	next.Status = Online
	next.ActiveClientCount = 1 + s.rng.Intn(MaxActiveClients)
	next.RoomCount = 1 + s.rng.Intn(MaxRooms)

	s.window.Prune(now)
	if s.rng.Float64() < s.messageChance {
		s.window.Add(now)
		s.messages++
	}
	next.MessagesPerMinute = s.window.Len()
	next.MessageCount = s.messages

	next.ConnectedClientNames = sampleNames(s.rng, s.clientPool, next.ActiveClientCount)
	next.RoomNames = sampleNames(s.rng, s.roomPool, next.RoomCount)
	next.Uptime = FormatUptime(now.Sub(s.onlineSince))
	return next
}

// Start runs the sampling loop in its own goroutine until ctx is cancelled
// or Stop is called. The first tick runs immediately.
func (s *Sampler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.done != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	return nil
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.runMu.Lock()
		if s.done == done {
			s.cancel()
			s.cancel, s.done = nil, nil
		}
		s.runMu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("sampling started (interval %s)", s.interval)

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("tick skipped: %v", err)
		}
		select {
		case <-ctx.Done():
			s.log.Info("sampling stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the loop and waits for it to exit, bounded by the join timeout.
// Stopping an idle sampler is a no-op. After ErrStopTimeout the sampler stays
// running from Start's point of view until the loop has actually exited.
func (s *Sampler) Stop() error {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()

	if done == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(s.joinTimeout):
		return ErrStopTimeout
	}
}
