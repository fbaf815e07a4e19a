package colony

import (
	"math"
	"testing"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/tuning"
)

// scriptRand replays fixed draws. Once a queue runs dry Float64 returns 0.999 (never
// triggers anything) and IntN returns 0.
type scriptRand struct {
	floats []float64
	ints   []int
}

func (r *scriptRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.999
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

func constants(t *testing.T, strategy calib.Strategy) calib.Constants {
	t.Helper()
	sugar := 0.1
	k, err := calib.Calibrate(calib.Params{
		N: 20, Nf: 5, Distance: 20, TimeSim: 50,
		Sugar: &sugar, Strategy: strategy, Policy: calib.Simple, NSims: 1,
	}, tuning.Defaults())
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	return k
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNew_RolesAndReset(t *testing.T) {
	c := New(10, 3, calib.Both)
	for i, a := range c.Agents {
		wantRole := Nurse
		if i < 3 {
			wantRole = Forager
		}
		if a.Role != wantRole || a.Strategy != calib.Both || a.Location != Nest {
			t.Fatalf("agent %d initial state: %+v", i, a)
		}
	}

	c.Agents[0] = Agent{Role: Forager, Strategy: calib.Both, Location: Source, Informed: true, Saturation: 1, Payload: 4, Clock: 3, Deadline: 9}
	c.Agents[7].Saturation = 0.5
	c.Reset()
	for i, a := range c.Agents {
		if a.Location != Nest || a.Informed || a.Saturation != 0 || a.Payload != 0 || a.Clock != 0 || a.Deadline != 0 {
			t.Fatalf("agent %d not reset: %+v", i, a)
		}
	}
	if c.Agents[0].Role != Forager || c.Agents[9].Role != Nurse {
		t.Fatalf("roles lost on reset")
	}
}

func TestSample_Initial(t *testing.T) {
	c := New(20, 5, calib.Trophallaxis)
	s := c.Sample(0, 2)
	if s.Fed != 0 || s.Inside != 20 || s.Outside != 0 || s.Source != 0 || s.Informed != 0 || s.Repetition != 2 {
		t.Fatalf("initial sample: %+v", s)
	}
}

func TestNestExit_InformedEmptyLeavesPrimed(t *testing.T) {
	c := New(4, 2, calib.Trophallaxis)
	c.Agents[0].Informed = true
	c.Agents[0].Deadline = 20
	c.Agents[1].Informed = true
	c.Agents[1].Payload = 5
	e := NewEngine(c, constants(t, calib.Trophallaxis), tuning.Defaults(), calib.Simple, &scriptRand{})

	e.nestExit()
	if c.Agents[0].Location != Outside || c.Agents[0].Clock != -1 {
		t.Fatalf("empty informed forager should leave primed: %+v", c.Agents[0])
	}
	if c.Agents[1].Location != Nest {
		t.Fatalf("loaded forager must stay to feed: %+v", c.Agents[1])
	}
	e.outsideInformed()
	if c.Agents[0].Clock != 0 {
		t.Fatalf("clock after first outside tick = %d want 0", c.Agents[0].Clock)
	}
}

func TestNestExit_NaiveDraw(t *testing.T) {
	c := New(4, 2, calib.Trophallaxis)
	e := NewEngine(c, constants(t, calib.Trophallaxis), tuning.Defaults(), calib.Simple, &scriptRand{floats: []float64{0.05, 0.5}})
	e.nestExit()
	if c.Agents[0].Location != Outside || c.Agents[1].Location != Nest {
		t.Fatalf("draw 0.05 leaves, 0.5 stays: %v %v", c.Agents[0].Location, c.Agents[1].Location)
	}
}

func TestOutsideNaive_Discovery(t *testing.T) {
	k := constants(t, calib.Both)
	c := New(4, 2, calib.Both)
	c.Agents[0].Location = Outside
	c.Agents[1].Location = Outside
	// agent0: no return (0.5), discovers (0.1). agent1: returns (0.05).
	e := NewEngine(c, k, tuning.Defaults(), calib.Simple, &scriptRand{floats: []float64{0.5, 0.1, 0.05}})
	e.outsideNaive()
	a := c.Agents[0]
	if a.Location != Source || !a.Informed || a.Saturation != 1 || a.Deadline != k.BothGrab || a.Clock != 0 {
		t.Fatalf("discovery: %+v", a)
	}
	if c.Agents[1].Location != Nest || c.Agents[1].Informed {
		t.Fatalf("returned naive: %+v", c.Agents[1])
	}
}

func TestSourceAndReturnCycle(t *testing.T) {
	k := constants(t, calib.Trophallaxis)
	c := New(3, 1, calib.Trophallaxis)
	a := &c.Agents[0]
	a.Informed = true
	a.Location = Source
	a.Deadline = 2
	e := NewEngine(c, k, tuning.Defaults(), calib.Simple, &scriptRand{})

	e.atSource()
	e.atSource()
	if a.Location != Source || a.Clock != 2 {
		t.Fatalf("still grabbing: %+v", *a)
	}
	e.atSource()
	if a.Location != Returning || a.Clock != 0 || a.Deadline != k.DistTropha || a.Payload != k.TrophaVolume {
		t.Fatalf("leaving source: %+v", *a)
	}
	for i := 0; i < k.DistTropha; i++ {
		e.returning()
	}
	if a.Location != Returning {
		t.Fatalf("arrived too early: %+v", *a)
	}
	e.returning()
	if a.Location != Nest || a.Clock != 0 || a.Payload != k.TrophaVolume {
		t.Fatalf("trophallaxis forager must arrive with full load: %+v", *a)
	}
}

func TestReturning_PayloadLoss(t *testing.T) {
	k := constants(t, calib.Both)

	c := New(3, 2, calib.SocialBucket)
	c.Agents[0] = Agent{Role: Forager, Strategy: calib.SocialBucket, Location: Returning, Informed: true, Payload: k.BucketVolume, Deadline: 5, Clock: 5}
	c.Agents[1] = Agent{Role: Forager, Strategy: calib.Both, Location: Returning, Informed: true, Payload: k.BothVolume, Deadline: 5, Clock: 5}
	e := NewEngine(c, k, tuning.Defaults(), calib.Simple, &scriptRand{floats: []float64{0, 0}})
	e.returning()
	if c.Agents[0].Location != Nest || c.Agents[0].Payload != 0 {
		t.Fatalf("bucket forager should lose everything: %+v", c.Agents[0])
	}
	if !approx(c.Agents[1].Payload, k.TrophaVolume) {
		t.Fatalf("combined forager should keep v_t, got %v", c.Agents[1].Payload)
	}
}

func TestTrophallaxis_FullAndPartialFeeds(t *testing.T) {
	k := constants(t, calib.Trophallaxis)
	cases := []struct {
		payload     float64
		wantSat     float64
		wantPayload float64
	}{
		{25, 1, 15},
		{9.5, 1, 0},
		{5, 0.5, 0},
	}
	for _, tc := range cases {
		c := New(4, 1, calib.Trophallaxis)
		c.Agents[0].Informed = true
		c.Agents[0].Saturation = 1
		c.Agents[0].Payload = tc.payload
		e := NewEngine(c, k, tuning.Defaults(), calib.Simple, &scriptRand{floats: []float64{0}})
		var events []FeedEvent
		e.OnFeed = func(ev FeedEvent) { events = append(events, ev) }

		e.feed()
		if len(events) != 1 || events[0].Protocol != Pairwise || len(events[0].Recipients) != 1 {
			t.Fatalf("payload %v: events=%+v", tc.payload, events)
		}
		r := events[0].Recipients[0]
		if r == 0 {
			t.Fatalf("donor fed itself")
		}
		if !approx(c.Agents[r].Saturation, tc.wantSat) {
			t.Fatalf("payload %v: recipient saturation %v want %v", tc.payload, c.Agents[r].Saturation, tc.wantSat)
		}
		if !approx(c.Agents[0].Payload, tc.wantPayload) {
			t.Fatalf("payload %v: donor left with %v want %v", tc.payload, c.Agents[0].Payload, tc.wantPayload)
		}
	}
}

func bucketColony() *Colony {
	c := New(6, 1, calib.SocialBucket)
	c.Agents[0].Informed = true
	c.Agents[0].Saturation = 1
	c.Agents[0].Payload = 10
	for i := 1; i <= 3; i++ {
		c.Agents[i].Saturation = 0.8
	}
	return c
}

func TestSocialBucket_SimplePolicyClamps(t *testing.T) {
	c := bucketColony()
	// k=3, trigger, pass everything, recipients 1,2,3.
	rng := &scriptRand{ints: []int{2, 0, 0, 0}, floats: []float64{0, 0.95}}
	e := NewEngine(c, constants(t, calib.SocialBucket), tuning.Defaults(), calib.Simple, rng)
	e.feed()

	for i := 1; i <= 3; i++ {
		if c.Agents[i].Saturation != 1 {
			t.Fatalf("agent %d saturation %v want 1", i, c.Agents[i].Saturation)
		}
	}
	if c.Agents[4].Saturation != 0 || c.Agents[5].Saturation != 0 {
		t.Fatalf("non-recipients changed")
	}
	if c.Agents[0].Payload != 0 {
		t.Fatalf("donor should be empty, has %v", c.Agents[0].Payload)
	}
}

func TestSocialBucket_ComplexPolicyRedistributes(t *testing.T) {
	c := bucketColony()
	// k=3, recipients 1,2,3; overflow picks 4, 5, 4.
	rng := &scriptRand{ints: []int{2, 0, 0, 0, 0, 1, 0}, floats: []float64{0, 0.95}}
	e := NewEngine(c, constants(t, calib.SocialBucket), tuning.Defaults(), calib.Complex, rng)
	e.feed()

	for i := 1; i <= 3; i++ {
		if c.Agents[i].Saturation != 1 {
			t.Fatalf("agent %d saturation %v want 1", i, c.Agents[i].Saturation)
		}
	}
	// Overflow is 3 * (0.8 + 10/3/10 - 1) = 0.4, split over two agents.
	for i := 4; i <= 5; i++ {
		if !approx(c.Agents[i].Saturation, 0.2) {
			t.Fatalf("agent %d saturation %v want 0.2", i, c.Agents[i].Saturation)
		}
	}
}

func TestSocialBucket_ExhaustedPoolDropsShares(t *testing.T) {
	c := New(3, 1, calib.SocialBucket)
	c.Agents[0].Informed = true
	c.Agents[0].Saturation = 1
	c.Agents[0].Payload = 30
	rng := &scriptRand{ints: []int{2}, floats: []float64{0, 0.95}}
	e := NewEngine(c, constants(t, calib.SocialBucket), tuning.Defaults(), calib.Simple, rng)
	var ev FeedEvent
	e.OnFeed = func(x FeedEvent) { ev = x }
	e.feed()

	if len(ev.Recipients) != 2 {
		t.Fatalf("only two nestmates available, got recipients %v", ev.Recipients)
	}
	if c.Agents[0].Payload != 0 {
		t.Fatalf("donor keeps undelivered liquid: %v", c.Agents[0].Payload)
	}
}

func TestBothStrategy_PartitionsByPayload(t *testing.T) {
	k := constants(t, calib.Both)
	c := New(400, 20, calib.Both)
	e := NewEngine(c, k, tuning.Defaults(), calib.Complex, NewRand(7, 1))

	var group, pair int
	kindAt := map[int]Protocol{}
	tick := -1
	e.OnFeed = func(ev FeedEvent) {
		if ev.Tick != tick {
			tick = ev.Tick
			kindAt = map[int]Protocol{}
		}
		if prev, ok := kindAt[ev.Donor]; ok && prev != ev.Protocol {
			t.Fatalf("tick %d: donor %d fed with both protocols", ev.Tick, ev.Donor)
		}
		kindAt[ev.Donor] = ev.Protocol
		switch ev.Protocol {
		case Group:
			group++
			if ev.DonorPayload <= k.TrophaVolume {
				t.Fatalf("tick %d: group feed with payload %v <= v_t %v", ev.Tick, ev.DonorPayload, k.TrophaVolume)
			}
		case Pairwise:
			pair++
			if ev.DonorPayload > k.TrophaVolume {
				t.Fatalf("tick %d: pairwise feed with payload %v > v_t %v", ev.Tick, ev.DonorPayload, k.TrophaVolume)
			}
		}
	}
	for i := 0; i < 3000; i++ {
		e.Step()
	}
	if group == 0 || pair == 0 {
		t.Fatalf("expected both protocols to run: group=%d pairwise=%d", group, pair)
	}
}

func TestStep_InvariantsHold(t *testing.T) {
	for _, s := range []calib.Strategy{calib.Trophallaxis, calib.SocialBucket, calib.Both} {
		for _, p := range []calib.Policy{calib.Simple, calib.Complex} {
			k := constants(t, s)
			c := New(60, 15, s)
			e := NewEngine(c, k, tuning.Defaults(), p, NewRand(42, uint64(s)))
			prevInformed := 0
			for step := 0; step < 1500; step++ {
				e.Step()
				if err := c.CheckInvariants(); err != nil {
					t.Fatalf("%s/%s step %d: %v", s, p, step, err)
				}
				informed := 0
				for _, a := range c.Agents {
					if a.Saturation > 1+1e-12 {
						t.Fatalf("%s/%s step %d: saturation %v above 1", s, p, step, a.Saturation)
					}
					if a.Informed {
						informed++
					}
				}
				if informed < prevInformed {
					t.Fatalf("%s/%s step %d: informed dropped %d -> %d", s, p, step, prevInformed, informed)
				}
				prevInformed = informed
			}
		}
	}
}

func TestPicker_NeverReturnsExcludedOrDuplicates(t *testing.T) {
	pool := []int{0, 1, 2, 3, 4}
	p := newPicker(pool, NewRand(1, 1))
	seen := map[int]bool{}
	for {
		got, ok := p.take(2)
		if !ok {
			break
		}
		if got == 2 {
			t.Fatalf("picked excluded agent")
		}
		if seen[got] {
			t.Fatalf("picked %d twice", got)
		}
		seen[got] = true
	}
	if len(seen) != 4 {
		t.Fatalf("picked %d agents want 4", len(seen))
	}
	if p.remaining() != 1 {
		t.Fatalf("excluded agent should remain in pool")
	}
}

func TestSocialBucket_RecipientsDistinctPerEvent(t *testing.T) {
	c := New(60, 30, calib.SocialBucket)
	e := NewEngine(c, constants(t, calib.SocialBucket), tuning.Defaults(), calib.Complex, NewRand(11, 1))

	tick := -1
	seen := map[int]bool{}
	events := 0
	e.OnFeed = func(ev FeedEvent) {
		if ev.Protocol != Group {
			return
		}
		if ev.Tick != tick {
			tick = ev.Tick
			seen = map[int]bool{}
		}
		events++
		for _, r := range ev.Recipients {
			if seen[r] {
				t.Fatalf("tick %d: agent %d fed twice by one bucket event", ev.Tick, r)
			}
			seen[r] = true
		}
	}
	for i := 0; i < 2000; i++ {
		e.Step()
	}
	if events == 0 {
		t.Fatalf("no social bucket feeds happened")
	}
}
