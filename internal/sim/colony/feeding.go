package colony

import "antventure.ai/internal/sim/calib"

// feed runs phase 2. Donors are informed foragers in the nest still carrying liquid.
// Under the combined strategy a forager holding more than one trophallaxis load
// recruits a group, otherwise it feeds pairwise; both groups are served this tick.
func (e *Engine) feed() {
	e.bucket = e.bucket[:0]
	e.pair = e.pair[:0]
	agents := e.col.Agents[:e.col.Foragers]
	for i := range agents {
		a := &agents[i]
		if a.Location != Nest || !a.Informed || a.Payload <= 0 {
			continue
		}
		switch a.Strategy {
		case calib.Trophallaxis:
			e.pair = append(e.pair, i)
		case calib.SocialBucket:
			e.bucket = append(e.bucket, i)
		case calib.Both:
			if a.Payload > e.k.TrophaVolume {
				e.bucket = append(e.bucket, i)
			} else {
				e.pair = append(e.pair, i)
			}
		}
	}
	if len(e.bucket) > 0 {
		e.socialBucket(e.bucket)
	}
	if len(e.pair) > 0 {
		e.trophallaxis(e.pair)
	}
}

// trophallaxis: each donor that meets an empty nestmate feeds exactly one of them.
func (e *Engine) trophallaxis(donors []int) {
	agents := e.col.Agents
	pool := e.emptyPool()
	if len(pool) == 0 {
		return
	}
	pFeed := e.tu.PFeedT * float64(len(pool)) / e.n
	fedVol := e.tu.FedVolume

	triggered := make([]int, 0, len(donors))
	for _, d := range donors {
		if e.rng.Float64()-pFeed < 0 {
			triggered = append(triggered, d)
		}
	}

	pick := newPicker(pool, e.rng)
	for _, d := range triggered {
		r, ok := pick.take(d)
		if !ok {
			break
		}
		donor := &agents[d]
		before := donor.Payload
		var passed float64
		if donor.Payload >= fedVol {
			agents[r].Saturation = 1
			donor.Payload -= fedVol
			passed = fedVol
		} else {
			s := donor.Payload / fedVol
			if s > e.tu.FullThreshold {
				s = 1
			}
			agents[r].Saturation = s
			passed = donor.Payload
			donor.Payload = 0
		}
		if e.OnFeed != nil {
			e.OnFeed(FeedEvent{
				Tick:         e.tick,
				Protocol:     Pairwise,
				Donor:        d,
				DonorPayload: before,
				Passed:       passed,
				Recipients:   []int{r},
			})
		}
	}
	e.floorPayload(donors)
}

type bucketShare struct {
	donor int
	share float64
}

// socialBucket: a triggered donor spills a random fraction of its crop across a group of
// one to three empty nestmates. Shares that find no recipient are lost.
func (e *Engine) socialBucket(donors []int) {
	agents := e.col.Agents
	pool := e.emptyPool()
	if len(pool) == 0 {
		return
	}
	emptyFrac := float64(len(pool)) / e.n
	fedVol := e.tu.FedVolume

	var (
		shares []bucketShare
		before = make(map[int]float64, len(donors))
		passed = make(map[int]float64, len(donors))
	)
	for _, d := range donors {
		donor := &agents[d]
		k := 1 + e.rng.IntN(e.tu.SBMaxGroup)
		trigger := e.rng.Float64() - 1/(e.tu.SBEmptyWeight/emptyFrac+e.tu.SBGroupWeight*float64(k))
		frac := e.rng.Float64()
		if frac > e.tu.FullThreshold {
			frac = 1
		}
		if trigger >= 0 {
			continue
		}
		amount := frac * donor.Payload
		before[d] = donor.Payload
		passed[d] = amount
		donor.Payload -= amount
		for j := 0; j < k; j++ {
			shares = append(shares, bucketShare{donor: d, share: amount / float64(k)})
		}
	}
	if len(shares) == 0 {
		e.floorPayload(donors)
		return
	}

	pick := newPicker(pool, e.rng)
	recipients := make([]int, 0, len(shares))
	byDonor := make(map[int][]int, len(before))
	for _, s := range shares {
		r, ok := pick.take(s.donor)
		if !ok {
			break
		}
		agents[r].Saturation += s.share / fedVol
		recipients = append(recipients, r)
		byDonor[s.donor] = append(byDonor[s.donor], r)
	}

	if e.OnFeed != nil {
		for _, d := range donors {
			if _, ok := before[d]; !ok {
				continue
			}
			e.OnFeed(FeedEvent{
				Tick:         e.tick,
				Protocol:     Group,
				Donor:        d,
				DonorPayload: before[d],
				Passed:       passed[d],
				Recipients:   byDonor[d],
			})
		}
	}

	e.resolve(e, recipients)
	e.floorPayload(donors)
}

// floorPayload zeroes crops too small to matter.
func (e *Engine) floorPayload(donors []int) {
	for _, d := range donors {
		a := &e.col.Agents[d]
		if a.Payload < e.tu.EmptyThreshold {
			a.Payload = 0
		}
	}
}
