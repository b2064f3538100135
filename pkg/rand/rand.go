package rand

import (
	"sync"
	"time"

	"github.com/MichaelTJones/pcg"
)

// Source is the random source every simulated decision draws from.
// Production code uses *PCG; tests substitute scripted sources.
type Source interface {
	// Intn returns a value in [0, n).
	Intn(n int) int
	// Float64 returns a value in [0, 1).
	Float64() float64
}

const pcgSequence = 0xda3e39cb94b95bdb

// PCG is a goroutine-safe Source backed by a PCG32 generator.
type PCG struct {
	mu sync.Mutex
	r  *pcg.PCG32
}

// New returns a PCG seeded with seed, or from the wall clock when seed is 0.
func New(seed int64) *PCG {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &PCG{r: pcg.NewPCG32()}
	p.r.Seed(uint64(seed), pcgSequence)
	return p
}

func (p *PCG) Intn(n int) int {
	if n <= 0 {
		panic("rand: invalid argument to Intn")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.r.Bounded(uint32(n)))
}

func (p *PCG) Float64() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.r.Random()) / (1 << 32)
}
