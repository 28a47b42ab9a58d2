package mip

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusOptimal
	StatusFeasible
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "OPTIMAL"
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	default:
		return "UNKNOWN"
	}
}

// HasSolution reports whether a solution with this status carries values.
func (s Status) HasSolution() bool { return s == StatusOptimal || s == StatusFeasible }

// ErrInvalidSolution is returned when a solver produced an assignment that
// fails Model.Verify.
var ErrInvalidSolution = errors.New("mip: solver returned an invalid assignment")

// Progress describes a newly found incumbent.
type Progress struct {
	Worker    int
	Objective float64
	Elapsed   time.Duration
	Nodes     int64
}

type Params struct {
	// TimeLimit sets the search effort. It is converted to a node budget
	// rather than a deadline, so the same limit always explores the same
	// nodes. Zero means no limit.
	TimeLimit time.Duration
	// NodeBudget overrides the budget derived from TimeLimit.
	NodeBudget int64
	// Workers is the size of the search portfolio. Values below 1 mean 1.
	Workers int
	Seed    int64
	Logger  zerolog.Logger
	// OnSolution is called for every improving incumbent, from the
	// goroutine running Solve.
	OnSolution func(Progress)
}

// Stats are gathered across all workers.
type Stats struct {
	Nodes           int64
	Solutions       int
	LNSIterations   int64
	LNSImprovements int64
	Workers         int
	Winner          int
	Rounds          int
	Elapsed         time.Duration
	OperatorWeights []float64
}

type Solution struct {
	Status    Status
	Objective float64
	Stats     Stats
	values    []int64
}

func (s *Solution) Value(v Var) int64 {
	if s == nil || int(v) >= len(s.values) {
		return 0
	}
	return s.values[v]
}

func (s *Solution) Bool(v Var) bool { return s.Value(v) != 0 }

// Values returns a copy of the full assignment.
func (s *Solution) Values() []int64 {
	return append([]int64(nil), s.values...)
}

// Solver finds a minimum-objective assignment for a model.
type Solver interface {
	Solve(ctx context.Context, m *Model, p Params) (*Solution, error)
}
