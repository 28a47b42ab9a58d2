package mip

import (
	"context"
	"math"
	"math/rand"
)

const eps = 1e-7

type trailEntry struct {
	v      int32
	lo, hi int64
}

// worker owns mutable domains over a shared problem.
type worker struct {
	p   *problem
	id  int
	ctx context.Context
	inc *incumbent
	rng *rand.Rand

	lo, hi  []int64
	trail   []trailEntry
	queue   []int32
	inQueue []bool

	nodes     int64
	nodeLimit int64 // per dive; 0 means none
	diveNodes int64
	halted    bool
	exhausted bool // node limit hit in the current dive

	// strict=true: foreign incumbents only prune strictly worse subtrees,
	// so a complete run returns the first optimum in branching order.
	strict     bool
	randomTies bool

	own     float64
	ownVals []int64

	// set on the exact worker, which runs on its own goroutine in slices
	quota, slice int64
	grant        chan int64
	yield        chan struct{}
}

func newWorker(ctx context.Context, p *problem, id int, seed int64, inc *incumbent) *worker {
	w := &worker{
		p:       p,
		id:      id,
		ctx:     ctx,
		inc:     inc,
		rng:     rand.New(rand.NewSource(seed + int64(id))),
		lo:      append([]int64(nil), p.lo...),
		hi:      append([]int64(nil), p.hi...),
		inQueue: make([]bool, len(p.cons)),
		own:     math.Inf(1),
	}
	return w
}

// rootPropagate enqueues every constraint and runs to a fixpoint. The trail
// is discarded so the resulting domains become the new root.
func (w *worker) rootPropagate() bool {
	for ci := range w.p.cons {
		w.enqueue(int32(ci))
	}
	ok := w.propagate()
	w.trail = w.trail[:0]
	return ok
}

func (w *worker) enqueue(c int32) {
	if !w.inQueue[c] {
		w.inQueue[c] = true
		w.queue = append(w.queue, c)
	}
}

func (w *worker) setBounds(v int32, lo, hi int64) bool {
	curLo, curHi := w.lo[v], w.hi[v]
	if lo <= curLo && hi >= curHi {
		return true
	}
	if lo < curLo {
		lo = curLo
	}
	if hi > curHi {
		hi = curHi
	}
	w.trail = append(w.trail, trailEntry{v: v, lo: curLo, hi: curHi})
	w.lo[v], w.hi[v] = lo, hi
	if lo > hi {
		return false
	}
	for _, c := range w.p.occurs[v] {
		w.enqueue(c)
	}
	return true
}

func (w *worker) undo(mark int) {
	for i := len(w.trail) - 1; i >= mark; i-- {
		e := w.trail[i]
		w.lo[e.v], w.hi[e.v] = e.lo, e.hi
	}
	w.trail = w.trail[:mark]
}

func (w *worker) clearQueue() {
	for _, c := range w.queue {
		w.inQueue[c] = false
	}
	w.queue = w.queue[:0]
}

func (w *worker) propagate() bool {
	for len(w.queue) > 0 {
		c := w.queue[0]
		w.queue = w.queue[1:]
		w.inQueue[c] = false
		if !w.propagateOne(c) {
			w.clearQueue()
			return false
		}
	}
	w.queue = w.queue[:0]
	return true
}

// propagateOne tightens variable bounds from the activity range of one row.
func (w *worker) propagateOne(ci int32) bool {
	c := &w.p.cons[ci]
	var minAct, maxAct int64
	for _, t := range c.Terms {
		l, h := w.lo[t.Var], w.hi[t.Var]
		if t.Coef > 0 {
			minAct += t.Coef * l
			maxAct += t.Coef * h
		} else {
			minAct += t.Coef * h
			maxAct += t.Coef * l
		}
	}
	if minAct > c.Hi || maxAct < c.Lo {
		return false
	}
	hiActive := c.Hi < Inf && maxAct > c.Hi
	loActive := c.Lo > -Inf && minAct < c.Lo
	if !hiActive && !loActive {
		return true
	}
	for _, t := range c.Terms {
		a := t.Coef
		l, h := w.lo[t.Var], w.hi[t.Var]
		if l == h {
			continue
		}
		var cmin, cmax int64
		if a > 0 {
			cmin, cmax = a*l, a*h
		} else {
			cmin, cmax = a*h, a*l
		}
		newLo, newHi := l, h
		if hiActive {
			u := c.Hi - (minAct - cmin)
			if a > 0 {
				newHi = min(newHi, floorDiv(u, a))
			} else {
				newLo = max(newLo, ceilDiv(u, a))
			}
		}
		if loActive {
			lb := c.Lo - (maxAct - cmax)
			if a > 0 {
				newLo = max(newLo, ceilDiv(lb, a))
			} else {
				newHi = min(newHi, floorDiv(lb, a))
			}
		}
		if newLo > l || newHi < h {
			if !w.setBounds(int32(t.Var), newLo, newHi) {
				return false
			}
		}
	}
	return true
}

// lowerBound is a valid bound on the objective under the current domains.
func (w *worker) lowerBound() float64 {
	p := w.p
	lb := p.objConst
	for _, g := range p.groups {
		best := 0.0
		if g.exact {
			best = math.Inf(1)
		}
		fixed := false
		for _, v := range g.vars {
			if w.lo[v] == 1 {
				best = p.obj[v]
				fixed = true
				break
			}
		}
		if !fixed {
			for _, v := range g.vars {
				if w.hi[v] == 1 && p.obj[v] < best {
					best = p.obj[v]
				}
			}
			if math.IsInf(best, 1) {
				best = 0
			}
		}
		lb += best
	}
	for i, c := range p.obj {
		if c == 0 || p.varGroup[i] >= 0 {
			continue
		}
		if c > 0 {
			lb += c * float64(w.lo[i])
		} else {
			lb += c * float64(w.hi[i])
		}
	}
	return lb
}

func (w *worker) shouldPrune() bool {
	lb := w.lowerBound()
	if lb >= w.own-eps {
		return true
	}
	shared := w.inc.bestObjective()
	if w.strict {
		return lb > shared+eps
	}
	return lb >= shared-eps
}

func (w *worker) stopped() bool {
	if w.halted {
		return true
	}
	if w.nodes&255 == 0 {
		select {
		case <-w.ctx.Done():
			w.halted = true
		default:
		}
	}
	return w.halted
}

// preferred picks the value tried first when branching on v.
func (w *worker) preferred(v int32) int64 {
	l, h := w.lo[v], w.hi[v]
	if w.p.hasHint[v] {
		hv := w.p.hint[v]
		if hv >= l && hv <= h {
			return hv
		}
	}
	c := w.p.obj[v]
	switch {
	case c < 0:
		return h
	case c > 0:
		return l
	case w.randomTies && w.rng.Intn(2) == 0:
		return h
	default:
		return l
	}
}

// dfs explores the subtree below the current domains. cursor indexes the
// first variable of the branching order that may still be free.
func (w *worker) dfs(cursor int) {
	w.nodes++
	w.diveNodes++
	if w.yield != nil {
		if w.slice >= w.quota && !w.pause() {
			return
		}
		w.slice++
	}
	if w.stopped() {
		return
	}
	if w.nodeLimit > 0 && w.diveNodes > w.nodeLimit {
		w.exhausted = true
		return
	}
	if w.shouldPrune() {
		return
	}
	order := w.p.order
	for cursor < len(order) && w.lo[order[cursor]] == w.hi[order[cursor]] {
		cursor++
	}
	if cursor == len(order) {
		w.leaf()
		return
	}
	v := int32(order[cursor])
	pv := w.preferred(v)
	ranges := make([][2]int64, 1, 3)
	ranges[0] = [2]int64{pv, pv}
	if pv < w.hi[v] {
		ranges = append(ranges, [2]int64{pv + 1, w.hi[v]})
	}
	if pv > w.lo[v] {
		ranges = append(ranges, [2]int64{w.lo[v], pv - 1})
	}
	for _, r := range ranges {
		mark := len(w.trail)
		if w.setBounds(v, r[0], r[1]) && w.propagate() {
			w.dfs(cursor)
		}
		w.undo(mark)
		if w.halted || w.exhausted {
			return
		}
	}
}

func (w *worker) leaf() {
	obj := w.p.objConst
	for i, c := range w.p.obj {
		if c != 0 {
			obj += c * float64(w.lo[i])
		}
	}
	if obj >= w.own-eps {
		return
	}
	w.own = obj
	w.ownVals = make([]int64, len(w.lo))
	copy(w.ownVals, w.lo)
}

// start runs the branch and bound on its own goroutine. It only advances
// while the driver has granted it nodes through step.
func (w *worker) start() {
	w.grant = make(chan int64)
	w.yield = make(chan struct{})
	go func() {
		defer close(w.yield)
		q, ok := <-w.grant
		if !ok {
			w.halted = true
			return
		}
		w.quota, w.slice = q, 0
		w.dfs(0)
	}()
}

// step grants n more nodes and waits until they are used. It reports
// whether the search has ended; the caller must not step again after that.
func (w *worker) step(n int64) bool {
	w.grant <- n
	_, paused := <-w.yield
	return !paused
}

// stop ends the search if it is still parked and waits for its goroutine.
func (w *worker) stop() {
	close(w.grant)
	for range w.yield {
	}
}

func (w *worker) pause() bool {
	w.yield <- struct{}{}
	q, ok := <-w.grant
	if !ok {
		w.halted = true
		return false
	}
	w.quota, w.slice = q, 0
	return true
}
