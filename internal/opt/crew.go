package opt

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"crewplan/internal/mip"
	"crewplan/internal/model"
)

type LegResult struct {
	RunID     string              `json:"runId"`
	Leg       int                 `json:"leg"`
	Manifest  model.Manifest      `json:"manifest"`
	Groups    []model.GroupRecord `json:"vehicleGroups"`
	Cluster   model.Cluster       `json:"cluster"`
	Status    mip.Status          `json:"-"`
	Objective float64             `json:"objective"`
	Absent    []string            `json:"absent,omitempty"`

	// ClusterStatus is the status of the stage that produced Cluster. It
	// stays unknown when the caller supplied the cluster.
	ClusterStatus mip.Status `json:"-"`
}

// SolveLeg assigns every present person to one vehicle and one operator to
// every occupied vehicle.
func (pl *Planner) SolveLeg(ctx context.Context, in LegInput, o Options) (res *LegResult, err error) {
	ctx, span := pl.startSpan(ctx, "opt.SolveLeg",
		attribute.Int("leg", in.Leg), attribute.Int("people", len(in.People)))
	defer func() { endSpan(span, err) }()

	if err := validateLeg(in, o); err != nil {
		return nil, err
	}
	present, absent, err := legPreconditions(in, o)
	if err != nil {
		return nil, err
	}
	runID := runIDFrom(ctx)
	log := pl.Logger.With().Str("runId", runID).Int("leg", in.Leg).Logger()
	if len(absent) > 0 {
		log.Info().Strs("absent", absent).Msg("people excluded from leg")
	}

	// Shuffled copies fix variable order and tiebreak ranks for the seed.
	rng := rand.New(rand.NewSource(o.Seed))
	balloons := slices.Clone(in.Balloons)
	cars := slices.Clone(in.Cars)
	people := slices.Clone(present)
	rng.Shuffle(len(balloons), func(i, j int) { balloons[i], balloons[j] = balloons[j], balloons[i] })
	rng.Shuffle(len(cars), func(i, j int) { cars[i], cars[j] = cars[j], cars[i] })
	rng.Shuffle(len(people), func(i, j int) { people[i], people[j] = people[j], people[i] })

	reserved, err := ReserveSeats(balloons, cars, in.Cluster)
	if err != nil {
		return nil, err
	}
	reserved, idle := groupedCars(reserved, in.Cluster)
	if len(idle) > 0 {
		log.Info().Strs("cars", idle).Msg("cars outside every vehicle group stay empty")
	}

	cm := &crewModel{
		o:        o,
		in:       in,
		people:   people,
		balloons: balloons,
		cars:     reserved,
		log:      log,
	}
	if err := cm.build(); err != nil {
		return nil, err
	}
	sol, err := pl.solve(ctx, solveRequest{
		runID:   runID,
		stage:   StageLeg,
		leg:     in.Leg,
		model:   cm.m,
		limit:   o.TimeLimit(),
		workers: o.Workers,
		seed:    o.Seed,
	})
	if err != nil {
		return nil, err
	}
	if !sol.Status.HasSolution() {
		return nil, fmt.Errorf("%w: solver status %s", ErrNoFeasibleAssignment, sol.Status)
	}

	manifest := cm.extract(sol, present)
	if err := manifest.Check(in.Balloons, reserved, present, o.DefaultPersonWeight); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	order := make([]string, len(in.Balloons))
	for i, b := range in.Balloons {
		order[i] = b.ID
	}
	return &LegResult{
		RunID:     runID,
		Leg:       in.Leg,
		Manifest:  manifest,
		Groups:    model.Groups(order, in.Cluster, manifest),
		Cluster:   in.Cluster.Clone(),
		Status:    sol.Status,
		Objective: sol.Objective,
		Absent:    absent,
	}, nil
}

// groupedCars keeps the cars that belong to a vehicle group. Results are
// reported per group, so a car outside every group must carry nobody.
func groupedCars(cars []model.Car, cluster model.Cluster) ([]model.Car, []string) {
	kept := make([]model.Car, 0, len(cars))
	var idle []string
	for _, c := range cars {
		if _, ok := cluster.BalloonOf(c.ID); ok {
			kept = append(kept, c)
		} else {
			idle = append(idle, c.ID)
		}
	}
	sort.Strings(idle)
	return kept, idle
}

type pv [2]string

// crewModel builds the integer model of one leg.
type crewModel struct {
	o        Options
	in       LegInput
	people   []model.Person
	balloons []model.Balloon
	cars     []model.Car
	log      zerolog.Logger

	vehicles []model.Vehicle
	byID     map[string]model.Person
	weight   map[string]int
	m        *mip.Model
	pax      map[pv]mip.Var
	op       map[pv]mip.Var
	occ      map[string]mip.Var
}

func (cm *crewModel) build() error {
	cm.m = mip.NewModel(fmt.Sprintf("leg%d", cm.in.Leg))
	cm.pax = map[pv]mip.Var{}
	cm.op = map[pv]mip.Var{}
	cm.occ = map[string]mip.Var{}
	cm.byID = make(map[string]model.Person, len(cm.people))
	cm.weight = make(map[string]int, len(cm.people))
	for _, p := range cm.people {
		cm.byID[p.ID] = p
		cm.weight[p.ID] = p.WeightOr(cm.o.DefaultPersonWeight)
	}
	for _, b := range cm.balloons {
		cm.vehicles = append(cm.vehicles, b)
	}
	for _, c := range cm.cars {
		cm.vehicles = append(cm.vehicles, c)
	}

	allowedIn, err := cm.continuityVehicles()
	if err != nil {
		return err
	}

	// Variables exist only where a seat or operator role is possible.
	for _, v := range cm.vehicles {
		for _, p := range cm.people {
			if slices.Contains(v.Operators(), p.ID) && cm.seatable(p, v, allowedIn) {
				cm.op[pv{p.ID, v.VehicleID()}] = cm.m.NewBool(fmt.Sprintf("op_%s_%s", p.ID, v.VehicleID()))
			}
		}
	}
	for _, p := range cm.people {
		for _, v := range cm.vehicles {
			if !cm.seatable(p, v, allowedIn) {
				continue
			}
			if v.Kind() == model.KindBalloon && !cm.languageOK(p, v) {
				continue
			}
			cm.pax[pv{p.ID, v.VehicleID()}] = cm.m.NewBool(fmt.Sprintf("pax_%s_%s", p.ID, v.VehicleID()))
		}
	}
	for _, v := range cm.vehicles {
		cm.occ[v.VehicleID()] = cm.m.NewBool("occ_" + v.VehicleID())
	}
	for _, v := range cm.vehicles {
		for _, p := range cm.people {
			if x, ok := cm.op[pv{p.ID, v.VehicleID()}]; ok {
				cm.m.AddDecisionStrategy(x)
			}
		}
	}
	for _, p := range cm.people {
		for _, v := range cm.vehicles {
			if x, ok := cm.pax[pv{p.ID, v.VehicleID()}]; ok {
				cm.m.AddDecisionStrategy(x)
			}
		}
	}

	if err := cm.hardConstraints(); err != nil {
		return err
	}
	cm.objective()
	cm.log.Debug().Str("model", cm.m.String()).Msg("crew model built")
	return nil
}

// continuityVehicles maps each person of a continuity leg to the vehicles of
// the group they were in on the last leg.
func (cm *crewModel) continuityVehicles() (map[string]map[string]bool, error) {
	if !cm.in.continuity() {
		return nil, nil
	}
	prev := PreviousGroups(cm.in.History)
	out := map[string]map[string]bool{}
	for _, p := range cm.people {
		bid, ok := prev[p.ID]
		if !ok {
			cm.log.Warn().Str("person", p.ID).Msg("person not seated in previous leg, group unconstrained")
			continue
		}
		if _, flying := cm.in.Cluster[bid]; !flying {
			return nil, preconditionf("group %s of %s in the previous leg is not part of this leg", bid, p.ID)
		}
		set := map[string]bool{bid: true}
		for _, cid := range cm.in.Cluster[bid] {
			set[cid] = true
		}
		out[p.ID] = set
	}
	return out, nil
}

func (cm *crewModel) seatable(p model.Person, v model.Vehicle, allowedIn map[string]map[string]bool) bool {
	if v.Capacity() <= 0 {
		return false
	}
	if set, ok := allowedIn[p.ID]; ok && !set[v.VehicleID()] {
		return false
	}
	if b, ok := v.(model.Balloon); ok && b.MaxWeight > 0 && cm.weight[p.ID] > b.MaxWeight {
		return false
	}
	return true
}

// compatibleOperators returns the operator variables of v, other than p's
// own, whose person can talk to p.
func (cm *crewModel) compatibleOperators(p model.Person, v model.Vehicle) []mip.Var {
	var out []mip.Var
	for _, q := range cm.people {
		if q.ID == p.ID {
			continue
		}
		x, ok := cm.op[pv{q.ID, v.VehicleID()}]
		if ok && p.SharesLanguage(q) {
			out = append(out, x)
		}
	}
	return out
}

// languageOK reports whether p can ride in balloon v at all: either someone
// compatible may fly it or p may fly it themself.
func (cm *crewModel) languageOK(p model.Person, v model.Vehicle) bool {
	if p.SpeaksAll() {
		return true
	}
	if _, self := cm.op[pv{p.ID, v.VehicleID()}]; self {
		return true
	}
	return len(cm.compatibleOperators(p, v)) > 0
}

func (cm *crewModel) hardConstraints() error {
	m := cm.m
	for _, p := range cm.people {
		var seat, ops mip.Expr
		for _, v := range cm.vehicles {
			key := pv{p.ID, v.VehicleID()}
			if x, ok := cm.pax[key]; ok {
				seat = seat.Plus(x, 1)
			}
			if x, ok := cm.op[key]; ok {
				ops = ops.Plus(x, 1)
				px, seated := cm.pax[key]
				if !seated {
					m.Fix(x, 0)
					continue
				}
				m.Implies("op_pax_"+p.ID+"_"+v.VehicleID(), x, px)
			}
		}
		if len(seat) == 0 {
			return preconditionf("person %s cannot be seated in any vehicle", p.ID)
		}
		m.AddEq("seat_"+p.ID, seat, 1)
		if len(ops) > 0 {
			m.AddLE("operate_"+p.ID, ops, 1)
		}
	}

	var cover mip.Expr
	for _, v := range cm.vehicles {
		vid := v.VehicleID()
		occ := cm.occ[vid]
		var seated, ops, load mip.Expr
		for _, p := range cm.people {
			if x, ok := cm.pax[pv{p.ID, vid}]; ok {
				seated = seated.Plus(x, 1)
				load = load.Plus(x, int64(cm.weight[p.ID]))
			}
			if x, ok := cm.op[pv{p.ID, vid}]; ok {
				ops = ops.Plus(x, 1)
			}
		}
		capacity := int64(v.Capacity())
		if len(seated) == 0 || len(ops) == 0 || capacity <= 0 {
			for _, t := range seated {
				m.Fix(t.Var, 0)
			}
			for _, t := range ops {
				m.Fix(t.Var, 0)
			}
			m.Fix(occ, 0)
			continue
		}
		// occupied <=> 1..capacity passengers <=> exactly one operator
		m.AddGE("occ_lo_"+vid, seated.Plus(occ, -1), 0)
		m.AddLE("occ_hi_"+vid, seated.Plus(occ, -capacity), 0)
		m.AddEq("one_op_"+vid, ops.Plus(occ, -1), 0)
		if b, ok := v.(model.Balloon); ok && b.MaxWeight > 0 {
			m.AddLE("weight_"+vid, load, int64(b.MaxWeight))
		}
		cover = cover.Plus(occ, capacity)

		if v.Kind() != model.KindBalloon {
			continue
		}
		for _, p := range cm.people {
			px, ok := cm.pax[pv{p.ID, vid}]
			if !ok || p.SpeaksAll() {
				continue
			}
			compat := cm.compatibleOperators(p, v)
			self, canSelf := cm.op[pv{p.ID, vid}]
			if len(compat)+btoi(canSelf) == len(ops) {
				// every possible operator qualifies; implied by occupancy
				continue
			}
			row := mip.Expr{}.Plus(px, -1)
			for _, x := range compat {
				row = row.Plus(x, 1)
			}
			if canSelf {
				row = row.Plus(self, 1)
			}
			m.AddGE("lang_"+p.ID+"_"+vid, row, 0)
		}
	}
	m.AddGE("cover", cover, int64(len(cm.people)))

	for _, f := range cm.in.Frozen {
		if f.Role == model.FrozenAbsent {
			continue
		}
		key := pv{f.PersonID, f.VehicleID}
		px, ok := cm.pax[key]
		if !ok {
			return preconditionf("frozen seat of %s in %s conflicts with group, weight or language rules", f.PersonID, f.VehicleID)
		}
		m.Fix(px, 1)
		x, canOp := cm.op[key]
		switch {
		case f.Role == model.FrozenOperator && !canOp:
			return preconditionf("%s cannot operate %s", f.PersonID, f.VehicleID)
		case f.Role == model.FrozenOperator:
			m.Fix(x, 1)
		case canOp:
			m.Fix(x, 0)
		}
	}
	if c := m.Conflict(); c != "" {
		return preconditionf("frozen assignments contradict each other: %s", c)
	}
	return nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (cm *crewModel) objective() {
	o := cm.o
	m := cm.m
	maxF := 0
	for _, p := range cm.people {
		maxF = max(maxF, p.FlightsSoFar)
	}
	maxF++

	if w := o.WPilotFairness; w > 0 {
		for key, x := range cm.op {
			m.Minimize(x, -float64(w*(maxF-cm.byID[key[0]].FlightsSoFar)))
		}
	}

	if w := o.WPassengerFairness; w > 0 {
		for _, b := range cm.balloons {
			for _, p := range cm.people {
				x, ok := cm.pax[pv{p.ID, b.ID}]
				if !ok {
					continue
				}
				bonus := maxF - p.FlightsSoFar
				if p.FlightsSoFar == 0 && p.FirstTime {
					bonus++
				}
				if !p.IsParticipant() {
					bonus = max(bonus-o.CounselorFlightDiscount, 0)
				}
				m.Minimize(x, -float64(w*bonus))
			}
		}
	}

	if w := o.WNoSoloParticipant; w > 0 {
		for _, c := range cm.cars {
			cm.noSolo(c, w)
		}
	}

	if w := o.WGroupPassengerBalance; w > 0 && !cm.in.continuity() {
		cm.balance(w)
	}

	if w := o.WDiverseNationalities; w > 0 {
		cm.diversity(w)
	}

	if w := o.WVehicleRotation; w > 0 && !cm.in.continuity() && len(cm.in.History) > 0 {
		seen := VisitCounts(cm.in.History)
		for key, x := range cm.pax {
			novelty := 1.0 / (1.0 + float64(seen[key[0]][key[1]]))
			m.Minimize(x, -float64(w)*novelty)
			if y, ok := cm.op[key]; ok {
				m.Minimize(y, float64(w)*novelty)
			}
		}
	}

	if h := o.PlanningHorizonLegs; h >= 1 && len(cm.people) > 0 {
		cm.lookahead(h)
	}

	if w := o.WTiebreakFairness; w > 0 {
		ranked := slices.Clone(cm.people)
		sort.SliceStable(ranked, func(i, j int) bool {
			return priorityKey(ranked[i]) < priorityKey(ranked[j])
		})
		for rank, p := range ranked {
			if rank == 0 {
				continue
			}
			for _, b := range cm.balloons {
				if x, ok := cm.pax[pv{p.ID, b.ID}]; ok {
					m.Minimize(x, float64(w*rank))
				}
			}
		}
	}
}

func priorityKey(p model.Person) int {
	return p.FlightsSoFar - btoi(p.FirstTime)
}

// noSolo penalises a car carrying exactly one participant:
// z1 = (n >= 1), z2 = (n >= 2), solo >= z1 - z2.
func (cm *crewModel) noSolo(c model.Car, w int) {
	var parts mip.Expr
	for _, p := range cm.people {
		if !p.IsParticipant() {
			continue
		}
		if x, ok := cm.pax[pv{p.ID, c.ID}]; ok {
			parts = parts.Plus(x, 1)
		}
	}
	if len(parts) == 0 {
		return
	}
	m := cm.m
	z1 := m.NewBool("any_part_" + c.ID)
	z2 := m.NewBool("two_part_" + c.ID)
	solo := m.NewBool("solo_part_" + c.ID)
	m.AddLE("any_part_"+c.ID, parts.Plus(z1, -int64(len(parts))), 0)
	m.AddGE("two_part_"+c.ID, parts.Plus(z2, -2), 0)
	m.AddGE("solo_"+c.ID, mip.Expr{{Var: solo, Coef: 1}, {Var: z1, Coef: -1}, {Var: z2, Coef: 1}}, 0)
	m.Hint(z2, 1)
	m.Minimize(solo, float64(w))
}

// balance keeps the ground crew of each group near the even split.
func (cm *crewModel) balance(w int) {
	n := len(cm.people)
	air := 0
	for _, b := range cm.balloons {
		air += b.MaxCapacity
	}
	groups := max(len(cm.in.Cluster), 1)
	avg := max(n-air, 0) / groups
	m := cm.m
	for _, bid := range cm.in.Cluster.BalloonIDs() {
		var crew mip.Expr
		for _, cid := range cm.in.Cluster[bid] {
			for _, p := range cm.people {
				if x, ok := cm.pax[pv{p.ID, cid}]; ok {
					crew = crew.Plus(x, 1)
				}
			}
		}
		pos := m.NewInt(0, int64(n), "dev_pos_"+bid)
		neg := m.NewInt(0, int64(n), "dev_neg_"+bid)
		m.AddEq("balance_"+bid, crew.Plus(pos, -1).Plus(neg, 1), int64(avg))
		m.Minimize(pos, float64(w))
		m.Minimize(neg, float64(w))
	}
}

// diversity rewards the non-majority occupants of every vehicle.
func (cm *crewModel) diversity(w int) {
	nats := map[string]bool{}
	for _, p := range cm.people {
		nats[p.NationalityOrUnknown()] = true
	}
	if len(nats) < 2 {
		return
	}
	m := cm.m
	for _, v := range cm.vehicles {
		vid := v.VehicleID()
		byNat := map[string]mip.Expr{}
		var total mip.Expr
		for _, p := range cm.people {
			x, ok := cm.pax[pv{p.ID, vid}]
			if !ok {
				continue
			}
			nat := p.NationalityOrUnknown()
			byNat[nat] = byNat[nat].Plus(x, 1)
			total = total.Plus(x, 1)
		}
		if len(byNat) < 2 {
			continue
		}
		maj := m.NewInt(0, int64(v.Capacity()), "maj_"+vid)
		for _, nat := range sortedKeys(byNat) {
			m.AddGE("maj_"+vid+"_"+nat, mip.Expr{{Var: maj, Coef: 1}}.Add(byNat[nat].Scale(-1)), 0)
		}
		// minimise -(total - maj)
		m.MinimizeExpr(total, -float64(w))
		m.Minimize(maj, float64(w))
	}
}

// lookahead steers low-flight people into ground cars so they can fly in
// the coming legs, and keeps their mass within each balloon's budget.
func (cm *crewModel) lookahead(h int) {
	seatsPerLeg := 0
	for _, b := range cm.balloons {
		seatsPerLeg += b.MaxCapacity
	}
	future := h * seatsPerLeg
	flights := make([]int, len(cm.people))
	for i, p := range cm.people {
		flights[i] = p.FlightsSoFar
	}
	sort.Ints(flights)
	var low func(model.Person) bool
	switch {
	case future <= 0:
		low = func(model.Person) bool { return false }
	case future >= len(flights):
		cutoff := flights[len(flights)-1]
		low = func(p model.Person) bool { return p.FlightsSoFar <= cutoff }
	default:
		cutoff := flights[future-1]
		low = func(p model.Person) bool { return p.FlightsSoFar <= cutoff }
	}

	m := cm.m
	for _, b := range cm.balloons {
		cars := cm.in.Cluster[b.ID]
		if w := cm.o.WLowFlightsLookahead; w > 0 {
			target := int64(h * b.MaxCapacity)
			if target > 0 {
				var placed mip.Expr
				for _, cid := range cars {
					for _, p := range cm.people {
						if !low(p) || !cm.langEligible(p, b) {
							continue
						}
						if x, ok := cm.pax[pv{p.ID, cid}]; ok {
							placed = placed.Plus(x, 1)
						}
					}
				}
				short := m.NewInt(0, target, "short_"+b.ID)
				m.AddGE("short_"+b.ID, placed.Plus(short, 1), target)
				m.Minimize(short, float64(w))
			}
		}
		if w := cm.o.WOverweightLookahead; w > 0 && b.MaxWeight > 0 {
			var mass mip.Expr
			var bound int64
			for _, cid := range cars {
				for _, p := range cm.people {
					if !low(p) {
						continue
					}
					if x, ok := cm.pax[pv{p.ID, cid}]; ok {
						mass = mass.Plus(x, int64(cm.weight[p.ID]))
						bound += int64(cm.weight[p.ID])
					}
				}
			}
			if len(mass) == 0 || bound <= int64(b.MaxWeight) {
				continue
			}
			over := m.NewInt(0, bound, "over_"+b.ID)
			m.AddGE("over_"+b.ID, mass.Scale(-1).Plus(over, 1), -int64(b.MaxWeight))
			m.Minimize(over, float64(w))
		}
	}
}

// langEligible reports whether p could talk to at least one possible
// operator of balloon b.
func (cm *crewModel) langEligible(p model.Person, b model.Balloon) bool {
	if p.SpeaksAll() {
		return true
	}
	for _, qid := range b.AllowedOperatorIDs {
		q, ok := cm.byID[qid]
		if ok && p.SharesLanguage(q) {
			return true
		}
	}
	return false
}

// extract reads the manifest; passengers keep the input order of people with
// the operator first.
func (cm *crewModel) extract(sol *mip.Solution, order []model.Person) model.Manifest {
	out := make(model.Manifest, len(cm.vehicles))
	for _, v := range cm.vehicles {
		vid := v.VehicleID()
		a := model.VehicleAssignment{PassengerIDs: []string{}}
		for _, p := range order {
			if x, ok := cm.op[pv{p.ID, vid}]; ok && sol.Bool(x) {
				a.OperatorID = p.ID
			}
		}
		if a.OperatorID != "" {
			a.PassengerIDs = append(a.PassengerIDs, a.OperatorID)
		}
		for _, p := range order {
			if p.ID == a.OperatorID {
				continue
			}
			if x, ok := cm.pax[pv{p.ID, vid}]; ok && sol.Bool(x) {
				a.PassengerIDs = append(a.PassengerIDs, p.ID)
			}
		}
		out[vid] = a
	}
	return out
}
