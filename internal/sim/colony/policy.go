package colony

import "antventure.ai/internal/sim/calib"

// Resolver settles saturation overflow after a social-bucket event. recipients lists the
// distinct agents fed by the event; shares are drawn without replacement.
type Resolver func(e *Engine, recipients []int)

func ResolverFor(p calib.Policy) Resolver {
	if p == calib.Complex {
		return resolveComplex
	}
	return resolveSimple
}

// resolveSimple treats any recipient above the full threshold as exactly full.
func resolveSimple(e *Engine, recipients []int) {
	agents := e.col.Agents
	for _, r := range recipients {
		if agents[r].Saturation > e.tu.FullThreshold {
			agents[r].Saturation = 1
		}
	}
}

// resolveComplex rounds near-full recipients up, then hands the colony-wide overflow to
// randomly chosen hungry nestmates in a single pass. Residual overflow is clamped, not
// redistributed again.
func resolveComplex(e *Engine, recipients []int) {
	agents := e.col.Agents
	for _, r := range recipients {
		s := agents[r].Saturation
		if s > e.tu.FullThreshold && s < 1 {
			agents[r].Saturation = 1
		}
	}

	var (
		excess float64
		over   int
	)
	for i := range agents {
		if agents[i].Saturation > 1 {
			excess += agents[i].Saturation - 1
			agents[i].Saturation = 1
			over++
		}
	}
	if over == 0 {
		return
	}
	pool := e.emptyPool()
	if len(pool) == 0 {
		return
	}

	// One pick per overfed agent, with replacement; the overflow is split evenly
	// across the distinct agents drawn.
	chosen := make(map[int]struct{}, over)
	order := make([]int, 0, over)
	for j := 0; j < over; j++ {
		r := pool[e.rng.IntN(len(pool))]
		if _, dup := chosen[r]; dup {
			continue
		}
		chosen[r] = struct{}{}
		order = append(order, r)
	}
	share := excess / float64(len(order))
	for _, r := range order {
		agents[r].Saturation += share
		if agents[r].Saturation > 1 {
			agents[r].Saturation = 1
		}
	}
}
