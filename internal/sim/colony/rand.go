package colony

import "math/rand/v2"

// Rand is the randomness the engine consumes. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a PCG stream. Two streams built from the same (seed, stream) pair
// produce identical draws.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream^0x9e3779b97f4a7c15))
}

// picker draws agents from a pool without replacement using a lazy Fisher-Yates shuffle.
type picker struct {
	pool []int
	next int
	rng  Rand
}

func newPicker(pool []int, rng Rand) *picker {
	return &picker{pool: pool, rng: rng}
}

func (p *picker) remaining() int { return len(p.pool) - p.next }

// take removes one random agent other than exclude. The excluded agent stays available
// for later draws.
func (p *picker) take(exclude int) (int, bool) {
	end := len(p.pool)
	for i := p.next; i < end; i++ {
		if p.pool[i] == exclude {
			end--
			p.pool[i], p.pool[end] = p.pool[end], p.pool[i]
			break
		}
	}
	if p.next >= end {
		return -1, false
	}
	j := p.next + p.rng.IntN(end-p.next)
	p.pool[p.next], p.pool[j] = p.pool[j], p.pool[p.next]
	got := p.pool[p.next]
	p.next++
	return got, true
}
