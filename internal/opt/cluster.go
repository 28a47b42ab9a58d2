package opt

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"crewplan/internal/mip"
	"crewplan/internal/model"
)

// ClusterInput describes one clustering run. People is optional; when it is
// nil PeopleCount is used and the language filter is skipped.
type ClusterInput struct {
	Balloons    []model.Balloon
	Cars        []model.Car
	People      []model.Person
	PeopleCount int
	Precluster  model.Cluster
}

type ClusterOptions struct {
	TimeLimit time.Duration
	Workers   int
	Seed      int64
}

// ClusterOptionsFrom derives clustering options from solver options.
func ClusterOptionsFrom(o Options) ClusterOptions {
	return ClusterOptions{TimeLimit: o.TimeLimit(), Workers: o.Workers, Seed: o.Seed}
}

type ClusterResult struct {
	RunID   string        `json:"runId"`
	Cluster model.Cluster `json:"vehicleGroups"`
	// UnusedSeats is the number of car passenger seats left outside any group.
	UnusedSeats int        `json:"unusedSeats"`
	Status      mip.Status `json:"-"`
}

func (in ClusterInput) peopleCount() int {
	if in.People != nil {
		return len(in.People)
	}
	return in.PeopleCount
}

// BuildClusters partitions cars among balloons so every balloon group can
// tow its balloon and carry the balloon's passengers home.
func (pl *Planner) BuildClusters(ctx context.Context, in ClusterInput, o ClusterOptions) (res *ClusterResult, err error) {
	ctx, span := pl.startSpan(ctx, "opt.BuildClusters",
		attribute.Int("balloons", len(in.Balloons)), attribute.Int("cars", len(in.Cars)))
	defer func() { endSpan(span, err) }()

	if err := validateCluster(in, o); err != nil {
		return nil, err
	}
	if err := clusterPreconditions(in); err != nil {
		return nil, err
	}

	compat := carBalloonCompat(in)
	m := mip.NewModel("clusters")
	x := make(map[[2]string]mip.Var, len(in.Cars)*len(in.Balloons))
	totalPax := 0
	for _, c := range in.Cars {
		totalPax += c.PassengerSeats()
	}
	for _, b := range in.Balloons {
		for _, c := range in.Cars {
			v := m.NewBool(fmt.Sprintf("x_%s_%s", c.ID, b.ID))
			x[[2]string{c.ID, b.ID}] = v
			m.AddDecisionStrategy(v)
			if !compat[[2]string{c.ID, b.ID}] {
				m.Fix(v, 0)
			}
			m.Minimize(v, -float64(c.PassengerSeats()))
		}
	}
	m.AddObjectiveConstant(float64(totalPax))

	for b, cars := range in.Precluster {
		for _, cid := range cars {
			m.Fix(x[[2]string{cid, b}], 1)
		}
	}
	for _, c := range in.Cars {
		var once mip.Expr
		for _, b := range in.Balloons {
			once = once.Plus(x[[2]string{c.ID, b.ID}], 1)
		}
		m.AddLE("car_once_"+c.ID, once, 1)
	}
	var total mip.Expr
	for _, b := range in.Balloons {
		var trailer, seats mip.Expr
		for _, c := range in.Cars {
			v := x[[2]string{c.ID, b.ID}]
			if c.HasTrailerClutch {
				trailer = trailer.Plus(v, 1)
			}
			if ps := c.PassengerSeats(); ps > 0 {
				seats = seats.Plus(v, int64(ps))
			}
			if c.MaxCapacity > 0 {
				total = total.Plus(v, int64(c.MaxCapacity))
			}
		}
		m.AddGE("trailer_"+b.ID, trailer, 1)
		m.AddGE("seats_"+b.ID, seats, int64(b.MaxCapacity))
	}
	if need := groundSeatsNeeded(in.Balloons, in.peopleCount()); need > 0 {
		m.AddGE("ground_seats", total, int64(need))
	}

	runID := runIDFrom(ctx)
	sol, err := pl.solve(ctx, solveRequest{
		runID:   runID,
		stage:   StageClusters,
		model:   m,
		limit:   o.TimeLimit,
		workers: o.Workers,
		seed:    o.Seed,
	})
	if err != nil {
		return nil, err
	}
	if !sol.Status.HasSolution() {
		return nil, fmt.Errorf("%w: solver status %s", ErrNoFeasibleClustering, sol.Status)
	}

	cluster := make(model.Cluster, len(in.Balloons))
	for _, b := range in.Balloons {
		ids := append([]string{}, in.Precluster[b.ID]...)
		for _, c := range in.Cars {
			if sol.Bool(x[[2]string{c.ID, b.ID}]) && !slices.Contains(ids, c.ID) {
				ids = append(ids, c.ID)
			}
		}
		cluster[b.ID] = ids
	}
	if err := cluster.Validate(in.Cars); err != nil {
		return nil, fmt.Errorf("%w: clustering result: %v", ErrInconsistent, err)
	}
	return &ClusterResult{RunID: runID, Cluster: cluster, UnusedSeats: int(sol.Objective + 0.5), Status: sol.Status}, nil
}

func validateCluster(in ClusterInput, o ClusterOptions) error {
	if o.TimeLimit <= 0 {
		return invalidf("time limit must be > 0")
	}
	if o.Workers < 1 {
		return invalidf("workers must be >= 1")
	}
	if in.People == nil && in.PeopleCount < 0 {
		return invalidf("people count must be >= 0")
	}
	if err := uniqueVehicleIDs(in.Balloons, in.Cars); err != nil {
		return err
	}
	for _, b := range in.Balloons {
		if b.MaxCapacity < 0 {
			return invalidf("balloon %s has negative capacity", b.ID)
		}
	}
	for _, c := range in.Cars {
		if c.MaxCapacity < 0 {
			return invalidf("car %s has negative capacity", c.ID)
		}
	}
	return nil
}

func clusterPreconditions(in ClusterInput) error {
	trailers := 0
	seats := 0
	cars := make(map[string]bool, len(in.Cars))
	for _, c := range in.Cars {
		cars[c.ID] = true
		seats += c.MaxCapacity
		if c.HasTrailerClutch {
			trailers++
		}
	}
	if trailers < len(in.Balloons) {
		return preconditionf("not enough trailer-equipped cars: %d for %d balloons", trailers, len(in.Balloons))
	}
	if need := groundSeatsNeeded(in.Balloons, in.peopleCount()); seats < need {
		return preconditionf("fleet lacks seats for ground crew: %d car seats for %d people", seats, need)
	}

	balloons := make(map[string]bool, len(in.Balloons))
	for _, b := range in.Balloons {
		balloons[b.ID] = true
		if len(b.AllowedOperatorIDs) == 0 {
			return preconditionf("balloon %s has no eligible operators", b.ID)
		}
	}
	for _, c := range in.Cars {
		if len(c.AllowedOperatorIDs) == 0 {
			return preconditionf("car %s has no eligible operators", c.ID)
		}
	}

	pinned := map[string]string{}
	compat := carBalloonCompat(in)
	for _, b := range in.Precluster.BalloonIDs() {
		if !balloons[b] {
			return preconditionf("precluster references unknown balloon %s", b)
		}
		for _, cid := range in.Precluster[b] {
			if !cars[cid] {
				return preconditionf("precluster references unknown car %s", cid)
			}
			if prev, dup := pinned[cid]; dup && prev != b {
				return preconditionf("car %s pinned to both %s and %s", cid, prev, b)
			}
			pinned[cid] = b
			if !compat[[2]string{cid, b}] {
				return preconditionf("vehicle group %s <- %s is impossible: no language-compatible operator pair", b, cid)
			}
		}
	}
	return nil
}

// carBalloonCompat marks (car, balloon) pairs with at least one
// language-compatible pair of operator candidates.
func carBalloonCompat(in ClusterInput) map[[2]string]bool {
	out := make(map[[2]string]bool, len(in.Cars)*len(in.Balloons))
	var people map[string]model.Person
	if in.People != nil {
		people = make(map[string]model.Person, len(in.People))
		for _, p := range in.People {
			people[p.ID] = p
		}
	}
	for _, b := range in.Balloons {
		for _, c := range in.Cars {
			out[[2]string{c.ID, b.ID}] = operatorsCompatible(people, b.AllowedOperatorIDs, c.AllowedOperatorIDs)
		}
	}
	return out
}

func operatorsCompatible(people map[string]model.Person, balloonOps, carOps []string) bool {
	if len(balloonOps) == 0 || len(carOps) == 0 {
		return false
	}
	if people == nil {
		return true
	}
	for _, bp := range balloonOps {
		p := people[bp]
		if p.SpeaksAll() {
			return true
		}
		for _, cq := range carOps {
			if p.SharesLanguage(people[cq]) {
				return true
			}
		}
	}
	return false
}

func groundSeatsNeeded(balloons []model.Balloon, people int) int {
	air := 0
	for _, b := range balloons {
		air += b.MaxCapacity
	}
	return max(people-air, 0)
}

func uniqueVehicleIDs(balloons []model.Balloon, cars []model.Car) error {
	seen := map[string]bool{}
	for _, b := range balloons {
		if b.ID == "" {
			return invalidf("balloon without id")
		}
		if seen[b.ID] {
			return invalidf("duplicate vehicle id %s", b.ID)
		}
		seen[b.ID] = true
	}
	for _, c := range cars {
		if c.ID == "" {
			return invalidf("car without id")
		}
		if seen[c.ID] {
			return invalidf("duplicate vehicle id %s", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
