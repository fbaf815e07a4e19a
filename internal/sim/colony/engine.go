package colony

import (
	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/tuning"
)

// Protocol identifies which feeding algorithm produced a FeedEvent.
type Protocol uint8

const (
	Pairwise Protocol = iota + 1 // trophallaxis
	Group                        // social bucket
)

func (p Protocol) String() string {
	if p == Group {
		return "social_bucket"
	}
	return "trophallaxis"
}

// FeedEvent describes one donor passing liquid during phase 2.
type FeedEvent struct {
	Tick         int
	Protocol     Protocol
	Donor        int
	DonorPayload float64 // payload held when the feeding sub-phase started
	Passed       float64
	Recipients   []int
}

// Engine advances a Colony. Phases run strictly in order; each phase selects its
// eligible agents once on entry and only then applies updates.
type Engine struct {
	col     *Colony
	k       calib.Constants
	tu      tuning.Tuning
	resolve Resolver
	rng     Rand
	n       float64
	tick    int

	// OnFeed, if set, observes every feeding event.
	OnFeed func(FeedEvent)

	sel    []int
	pool   []int
	bucket []int
	pair   []int
}

func NewEngine(col *Colony, k calib.Constants, tu tuning.Tuning, policy calib.Policy, rng Rand) *Engine {
	return &Engine{
		col:     col,
		k:       k,
		tu:      tu,
		resolve: ResolverFor(policy),
		rng:     rng,
		n:       float64(col.Size()),
	}
}

func (e *Engine) Colony() *Colony { return e.col }

// Tick is the number of completed steps.
func (e *Engine) Tick() int { return e.tick }

// Step executes one time unit.
func (e *Engine) Step() {
	e.tick++
	e.nestExit()
	e.feed()
	e.outsideNaive()
	e.outsideInformed()
	e.atSource()
	e.returning()
}

// selectForagers fills e.sel with the foragers matching keep.
func (e *Engine) selectForagers(keep func(*Agent) bool) []int {
	e.sel = e.sel[:0]
	agents := e.col.Agents[:e.col.Foragers]
	for i := range agents {
		if keep(&agents[i]) {
			e.sel = append(e.sel, i)
		}
	}
	return e.sel
}

// emptyPool lists every agent in the nest that is not yet full.
func (e *Engine) emptyPool() []int {
	e.pool = e.pool[:0]
	for i := range e.col.Agents {
		a := &e.col.Agents[i]
		if a.Location == Nest && a.Saturation < 1 {
			e.pool = append(e.pool, i)
		}
	}
	return e.pool
}

// nestExit: naive foragers start exploring with probability p_out; informed foragers
// that emptied their crop head straight back out.
func (e *Engine) nestExit() {
	agents := e.col.Agents
	sel := e.selectForagers(func(a *Agent) bool {
		return a.Location == Nest && (!a.Informed || a.Payload == 0)
	})
	for _, i := range sel {
		a := &agents[i]
		if !a.Informed {
			if e.rng.Float64()-e.tu.POut < 0 {
				a.Location = Outside
			}
			continue
		}
		// -1 so the outside phase increment lands on 0 this tick.
		a.Location = Outside
		a.Clock = -1
	}
}

func (e *Engine) outsideNaive() {
	agents := e.col.Agents
	sel := e.selectForagers(func(a *Agent) bool {
		return a.Location == Outside && !a.Informed
	})
	for _, i := range sel {
		a := &agents[i]
		if e.rng.Float64()-e.tu.PNest < 0 {
			a.Location = Nest
			continue
		}
		if e.rng.Float64()-e.tu.PSource < 0 {
			a.Location = Source
			a.Informed = true
			a.Saturation = 1
			a.Clock = 0
			a.Deadline = e.k.Grab(a.Strategy)
		}
	}
}

func (e *Engine) outsideInformed() {
	agents := e.col.Agents
	sel := e.selectForagers(func(a *Agent) bool {
		return a.Location == Outside && a.Informed
	})
	for _, i := range sel {
		a := &agents[i]
		if a.Clock == a.Deadline {
			a.Location = Source
			a.Clock = 0
			a.Deadline = e.k.Grab(a.Strategy)
			continue
		}
		a.Clock++
	}
}

func (e *Engine) atSource() {
	agents := e.col.Agents
	sel := e.selectForagers(func(a *Agent) bool { return a.Location == Source })
	for _, i := range sel {
		a := &agents[i]
		if a.Clock == a.Deadline {
			a.Location = Returning
			a.Clock = 0
			a.Deadline = e.k.Transit(a.Strategy)
			a.Payload = e.k.Volume(a.Strategy)
			continue
		}
		a.Clock++
	}
}

func (e *Engine) returning() {
	agents := e.col.Agents
	sel := e.selectForagers(func(a *Agent) bool { return a.Location == Returning })
	for _, i := range sel {
		a := &agents[i]
		if a.Clock != a.Deadline {
			a.Clock++
			continue
		}
		a.Location = Nest
		a.Clock = 0
		switch a.Strategy {
		case calib.SocialBucket:
			if e.rng.Float64() < e.k.DropProb*float64(e.k.DistBucket) {
				a.Payload = 0
			}
		case calib.Both:
			if e.rng.Float64() < e.k.DropProb*float64(e.k.DistBoth) {
				a.Payload -= e.k.BucketVolume
				if a.Payload < 0 {
					a.Payload = 0
				}
			}
		}
	}
}
