package health

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedProber reports the server reachable with a fixed probability.
// It lets the dashboard run without any chat server listening.
type SimulatedProber struct {
	mu          sync.Mutex
	rng         *rand.Rand
	Probability float64
}

// NewSimulatedProber creates a prober that is reachable with probability p.
// p is clamped to [0,1]. A zero seed uses the current time.
func NewSimulatedProber(p float64, seed int64) *SimulatedProber {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimulatedProber{
		rng:         rand.New(rand.NewSource(seed)),
		Probability: p,
	}
}

// Probe implements Prober by rolling against Probability.
func (s *SimulatedProber) Probe(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.Probability
}

// ScriptedProber replays a fixed sequence of outcomes, then repeats the last.
// An empty script is always unreachable.
type ScriptedProber struct {
	mu     sync.Mutex
	script []bool
	calls  int
}

// NewScriptedProber creates a prober returning outcomes in order.
func NewScriptedProber(outcomes ...bool) *ScriptedProber {
	return &ScriptedProber{script: outcomes}
}

// Probe implements Prober.
func (s *ScriptedProber) Probe(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		s.calls++
		return false
	}
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	return s.script[i]
}

// Calls returns how many times Probe has been invoked.
func (s *ScriptedProber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
