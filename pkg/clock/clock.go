package clock

import (
	"sync"
	"time"
)

// Clock abstracts the time source so that timed measurement and transport
// sequences can be driven by virtual time in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Wall is the real wall-clock time source used on hardware.
type Wall struct{}

func (Wall) Now() time.Time        { return time.Now() }
func (Wall) Sleep(d time.Duration) { time.Sleep(d) }

// Sim is a simulated clock. Sleep advances virtual time immediately, so a
// 60 second monitoring window completes in microseconds while every
// elapsed-time computation sees the same instants it would on hardware.
type Sim struct {
	mu  sync.Mutex
	now time.Time
}

// NewSim creates a simulated clock starting at the given instant.
func NewSim(start time.Time) *Sim {
	return &Sim{now: start}
}

func (s *Sim) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Sim) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

// Advance moves virtual time forward without a Sleep call.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}
