package mip

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// incumbent is the best solution found by any worker.
type incumbent struct {
	mu      sync.Mutex
	obj     float64
	vals    []int64
	worker  int
	found   int
	start   time.Time
	notify  func(Progress)
	objBits atomic.Uint64
}

func newIncumbent(notify func(Progress)) *incumbent {
	in := &incumbent{obj: math.Inf(1), worker: -1, start: time.Now(), notify: notify}
	in.objBits.Store(math.Float64bits(math.Inf(1)))
	return in
}

// bestObjective is lock free; workers call it at every node.
func (in *incumbent) bestObjective() float64 {
	return math.Float64frombits(in.objBits.Load())
}

// offer records vals when it improves on the incumbent. Equal objectives
// keep the solution of the lower worker index.
func (in *incumbent) offer(worker int, obj float64, vals []int64, nodes int64) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	better := in.worker < 0 || obj < in.obj-eps || (obj <= in.obj+eps && worker < in.worker)
	if !better {
		return false
	}
	improved := obj < in.obj-eps
	in.obj = obj
	in.vals = append(in.vals[:0], vals...)
	in.worker = worker
	in.found++
	in.objBits.Store(math.Float64bits(obj))
	if improved && in.notify != nil {
		in.notify(Progress{Worker: worker, Objective: obj, Elapsed: time.Since(in.start), Nodes: nodes})
	}
	return true
}

// snapshot copies the incumbent values, or returns nil if none exists yet.
func (in *incumbent) snapshot() ([]int64, float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.worker < 0 {
		return nil, in.obj
	}
	out := make([]int64, len(in.vals))
	copy(out, in.vals)
	return out, in.obj
}
