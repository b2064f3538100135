package rand

import "sync"

// Scripted replays queued values and falls back to fixed defaults when a
// queue runs dry. It pins simulated outcomes in tests.
type Scripted struct {
	mu sync.Mutex

	Ints   []int
	Floats []float64

	// DefaultInt is clamped into [0, n) on each Intn call.
	DefaultInt   int
	DefaultFloat float64
}

func (s *Scripted) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.DefaultInt
	if len(s.Ints) > 0 {
		v, s.Ints = s.Ints[0], s.Ints[1:]
	}
	if v < 0 {
		v = 0
	}
	if v >= n {
		v = n - 1
	}
	return v
}

func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.Floats) > 0 {
		var f float64
		f, s.Floats = s.Floats[0], s.Floats[1:]
		return f
	}
	return s.DefaultFloat
}
