// Package colony holds the per-agent population table of one simulation repetition
// and the phase engine that advances it one time unit at a time.
package colony

import (
	"fmt"

	"antventure.ai/internal/sim/calib"
)

type Role uint8

const (
	Forager Role = iota
	Nurse
)

func (r Role) String() string {
	if r == Nurse {
		return "nurse"
	}
	return "forager"
}

type Location uint8

const (
	Nest Location = iota
	Outside
	Source
	Returning
)

func (l Location) String() string {
	switch l {
	case Nest:
		return "nest"
	case Outside:
		return "outside"
	case Source:
		return "source"
	case Returning:
		return "returning"
	}
	return fmt.Sprintf("location(%d)", uint8(l))
}

// Agent is one colony member. Nurses never leave the nest and never carry liquid.
type Agent struct {
	Role     Role
	Strategy calib.Strategy
	Location Location

	// Informed foragers have reached the source once and travel in fixed time.
	Informed bool

	Saturation float64
	Payload    float64

	Clock    int
	Deadline int
}

// Colony is the population table of one repetition. It is not safe for concurrent use;
// every repetition owns its own Colony.
type Colony struct {
	Agents   []Agent
	Foragers int
	strategy calib.Strategy
}

// New allocates n agents; the first nf are foragers.
func New(n, nf int, strategy calib.Strategy) *Colony {
	if nf > n {
		nf = n
	}
	if nf < 0 {
		nf = 0
	}
	c := &Colony{
		Agents:   make([]Agent, n),
		Foragers: nf,
		strategy: strategy,
	}
	c.Reset()
	return c
}

// Reset returns every agent to its initial state: all in the nest, naive, hungry and empty.
func (c *Colony) Reset() {
	for i := range c.Agents {
		role := Nurse
		if i < c.Foragers {
			role = Forager
		}
		c.Agents[i] = Agent{Role: role, Strategy: c.strategy, Location: Nest}
	}
}

func (c *Colony) Size() int { return len(c.Agents) }

// Sample is one row of the run record.
type Sample struct {
	Fed        float64 `json:"fed"`
	Inside     int     `json:"inside"`
	Outside    int     `json:"outside"`
	Source     int     `json:"source"`
	Informed   int     `json:"informed"`
	Time       int     `json:"time"`
	Repetition int     `json:"repetition"`
}

// Sample aggregates the current state. Fed is the raw sum of saturations.
func (c *Colony) Sample(t, repetition int) Sample {
	s := Sample{Time: t, Repetition: repetition}
	for i := range c.Agents {
		a := &c.Agents[i]
		s.Fed += a.Saturation
		switch a.Location {
		case Nest:
			s.Inside++
		case Outside, Returning:
			s.Outside++
		case Source:
			s.Source++
		}
		if a.Informed {
			s.Informed++
		}
	}
	return s
}

// CheckInvariants reports the first agent that violates the table invariants.
func (c *Colony) CheckInvariants() error {
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.Role == Nurse {
			if a.Location != Nest {
				return fmt.Errorf("agent %d: nurse at %s", i, a.Location)
			}
			if a.Payload != 0 {
				return fmt.Errorf("agent %d: nurse carries %v", i, a.Payload)
			}
			if a.Informed {
				return fmt.Errorf("agent %d: nurse marked informed", i)
			}
		}
		if a.Payload < 0 {
			return fmt.Errorf("agent %d: negative payload %v", i, a.Payload)
		}
		if a.Saturation < 0 {
			return fmt.Errorf("agent %d: negative saturation %v", i, a.Saturation)
		}
	}
	return nil
}
