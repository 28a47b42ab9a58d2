package mip

import (
	"math"
	"math/rand"
)

// Neighbourhood operators used by the LNS workers.
const (
	opRandom  = iota // relax uniformly chosen decision variables
	opRelated        // relax variables linked through shared rows
	numOps
)

const (
	firstDiveNodes  = 20000
	lnsDiveNodes    = 4000
	roundIterations = 8
)

type lnsStats struct {
	iterations   int64
	improvements int64
	selects      [numOps]int64
	weights      [numOps]float64
	frac         float64 // share of decision variables relaxed
	idle         bool    // a complete dive found nothing feasible
}

func newLNSStats() lnsStats {
	return lnsStats{weights: [numOps]float64{1, 1}, frac: 0.2}
}

// lnsRound runs a fixed number of neighbourhood iterations around base,
// adapting operator weights and neighbourhood size as it goes. Without a
// base it runs one randomised dive instead. It returns the best assignment
// found that improves on baseObj, or nil.
func (w *worker) lnsRound(st *lnsStats, base []int64, baseObj float64) ([]int64, float64) {
	w.randomTies = true
	if base == nil {
		w.own, w.ownVals = math.Inf(1), nil
		w.dive(0, firstDiveNodes)
		if w.ownVals != nil {
			return w.ownVals, w.own
		}
		if !w.exhausted && !w.halted {
			st.idle = true
		}
		return nil, baseObj
	}

	decision := w.p.decision
	best, bestObj := base, baseObj
	for it := 0; it < roundIterations && !w.halted; it++ {
		st.iterations++
		op := selectOp(st.weights[:], w.rng)
		st.selects[op]++
		k := int(math.Ceil(st.frac * float64(len(decision))))
		if k < 2 {
			k = 2
		}
		var relax []bool
		switch op {
		case opRandom:
			relax = w.randomNeighbourhood(k)
		case opRelated:
			relax = w.relatedNeighbourhood(k)
		}

		mark := len(w.trail)
		ok := true
		for _, v := range decision {
			if relax[v] {
				continue
			}
			if !w.setBounds(int32(v), best[v], best[v]) {
				ok = false
				break
			}
		}
		w.own, w.ownVals = bestObj, nil
		if ok && w.propagate() {
			w.diveNodes = 0
			w.exhausted = false
			w.nodeLimit = lnsDiveNodes
			w.dfs(0)
		} else {
			w.clearQueue()
		}
		w.undo(mark)

		if w.ownVals != nil && w.own < bestObj-eps {
			st.improvements++
			st.weights[op] += 0.1
			best, bestObj = w.ownVals, w.own
		} else {
			st.weights[op] = math.Max(0.01, st.weights[op]*0.999)
		}
		// grow the neighbourhood while dives finish, shrink it when they run out of nodes
		if w.exhausted {
			st.frac = math.Max(0.05, st.frac*0.9)
		} else {
			st.frac = math.Min(0.9, st.frac*1.1)
		}
	}
	if bestObj < baseObj-eps {
		return best, bestObj
	}
	return nil, baseObj
}

// dive runs a randomised node-limited search from the root domains.
func (w *worker) dive(root int, limit int64) {
	w.undo(root)
	w.diveNodes = 0
	w.exhausted = false
	w.nodeLimit = limit
	w.dfs(0)
	w.undo(root)
}

func (w *worker) randomNeighbourhood(k int) []bool {
	relax := make([]bool, w.p.n)
	d := w.p.decision
	for _, i := range w.rng.Perm(len(d))[:min(k, len(d))] {
		relax[d[i]] = true
	}
	return relax
}

func (w *worker) relatedNeighbourhood(k int) []bool {
	relax := make([]bool, w.p.n)
	d := w.p.decision
	count := 0
	seed := d[w.rng.Intn(len(d))]
	relax[seed] = true
	count++
	frontier := []Var{seed}
	for count < k && len(frontier) > 0 {
		v := frontier[0]
		frontier = frontier[1:]
		occ := w.p.occurs[v]
		if len(occ) == 0 {
			continue
		}
		c := w.p.cons[occ[w.rng.Intn(len(occ))]]
		for _, t := range c.Terms {
			if count >= k {
				break
			}
			if w.p.isDecision[t.Var] && !relax[t.Var] {
				relax[t.Var] = true
				count++
				frontier = append(frontier, t.Var)
			}
		}
	}
	for count < k && count < len(d) {
		v := d[w.rng.Intn(len(d))]
		if !relax[v] {
			relax[v] = true
			count++
		}
	}
	return relax
}

// selectOp picks an operator by roulette wheel over weights.
func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
