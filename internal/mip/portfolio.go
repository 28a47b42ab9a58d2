package mip

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// nodesPerSecond converts a time limit into a node budget per worker.
	nodesPerSecond = 100_000
	// roundNodes is the slice of nodes the exact worker gets per round.
	roundNodes = 1 << 15
)

// Search is the built-in Solver. Worker 0 runs a complete depth-first
// branch and bound; further workers run large neighbourhood search around
// the shared incumbent.
//
// Workers advance in synchronous rounds. Within a round each worker sees
// the incumbent as it was when the round started; afterwards their
// improvements are merged in worker order. The search stops when worker 0
// finishes or the node budget is spent, so the result depends only on the
// model, its hints and Params, never on machine speed or scheduling.
type Search struct{}

func NewSearch() *Search { return &Search{} }

// budget is the total node budget for a run, or 0 for none.
func (p Params) budget(workers int) int64 {
	if p.NodeBudget > 0 {
		return p.NodeBudget
	}
	if p.TimeLimit <= 0 {
		return 0
	}
	return int64(p.TimeLimit.Seconds()*nodesPerSecond) * int64(workers)
}

type roundResult struct {
	vals []int64
	obj  float64
}

func (s *Search) Solve(ctx context.Context, m *Model, p Params) (*Solution, error) {
	start := time.Now()
	log := p.Logger.With().Str("model", m.Name()).Logger()
	if c := m.Conflict(); c != "" {
		log.Debug().Str("conflict", c).Msg("model infeasible at build time")
		return &Solution{Status: StatusInfeasible, Stats: Stats{Winner: -1, Elapsed: time.Since(start)}}, nil
	}

	prob := compile(m)
	workers := max(p.Workers, 1)
	if len(prob.decision) < 2 {
		workers = 1
	}
	budget := p.budget(workers)

	progressLog := rate.Sometimes{First: 3, Interval: time.Second}
	inc := newIncumbent(func(pr Progress) {
		progressLog.Do(func() {
			log.Debug().Int("worker", pr.Worker).Float64("objective", pr.Objective).
				Dur("elapsed", pr.Elapsed).Int64("nodes", pr.Nodes).Msg("improved incumbent")
		})
		if p.OnSolution != nil {
			p.OnSolution(pr)
		}
	})

	ws := make([]*worker, workers)
	for i := range ws {
		ws[i] = newWorker(ctx, prob, i, p.Seed, inc)
	}
	if !ws[0].rootPropagate() {
		log.Debug().Msg("root propagation proved infeasibility")
		return &Solution{Status: StatusInfeasible, Stats: Stats{Winner: -1, Workers: workers, Elapsed: time.Since(start)}}, nil
	}
	for _, w := range ws[1:] {
		copy(w.lo, ws[0].lo)
		copy(w.hi, ws[0].hi)
	}
	ws[0].strict = true
	log.Debug().Str("size", m.String()).Int("workers", workers).Int64("nodeBudget", budget).Msg("search started")

	exact := ws[0]
	exact.start()
	defer exact.stop()

	lns := make([]lnsStats, workers)
	for i := range lns {
		lns[i] = newLNSStats()
	}
	spent := func() int64 {
		var n int64
		for _, w := range ws {
			n += w.nodes
		}
		return n
	}

	finished := false
	rounds := 0
	for {
		rounds++
		base, baseObj := inc.snapshot()
		found := make([]roundResult, workers)
		var g errgroup.Group
		g.Go(func() error {
			finished = exact.step(roundNodes)
			return nil
		})
		for i := 1; i < workers; i++ {
			if lns[i].idle {
				continue
			}
			g.Go(func() error {
				found[i].vals, found[i].obj = ws[i].lnsRound(&lns[i], base, baseObj)
				return nil
			})
		}
		_ = g.Wait()

		nodes := spent()
		if exact.ownVals != nil {
			inc.offer(0, exact.own, exact.ownVals, nodes)
		}
		for i := 1; i < workers; i++ {
			if found[i].vals != nil {
				inc.offer(i, found[i].obj, found[i].vals, nodes)
			}
		}
		if finished || ctx.Err() != nil {
			break
		}
		if budget > 0 && nodes >= budget {
			break
		}
	}
	complete := finished && !exact.halted

	stats := Stats{Workers: workers, Winner: -1, Rounds: rounds, Elapsed: time.Since(start)}
	for i, w := range ws {
		stats.Nodes += w.nodes
		stats.LNSIterations += lns[i].iterations
		stats.LNSImprovements += lns[i].improvements
	}
	if workers > 1 {
		stats.OperatorWeights = append([]float64(nil), lns[1].weights[:]...)
	}
	stats.Solutions = inc.found

	sol := &Solution{Stats: stats}
	switch {
	case complete && exact.ownVals == nil:
		sol.Status = StatusInfeasible
	case complete:
		sol.Status = StatusOptimal
		sol.values = exact.ownVals
		sol.Objective = exact.own
		sol.Stats.Winner = 0
	default:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals, obj := inc.snapshot()
		if vals == nil {
			sol.Status = StatusUnknown
			break
		}
		sol.Status = StatusFeasible
		sol.values = vals
		sol.Objective = obj
		sol.Stats.Winner = inc.worker
	}
	if sol.Status.HasSolution() {
		if err := m.Verify(sol.values); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSolution, err)
		}
	}
	log.Debug().Str("status", sol.Status.String()).Float64("objective", sol.Objective).
		Int64("nodes", stats.Nodes).Int("rounds", rounds).Dur("elapsed", stats.Elapsed).Msg("search finished")
	return sol, nil
}
