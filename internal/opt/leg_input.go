package opt

import (
	"slices"

	"crewplan/internal/model"
)

// LegInput is everything the crew optimizer needs for one leg.
//
// Leg 0 solves a standalone leg, leg 1 is the first leg of a campaign and
// legs from 2 on keep everyone in the group they had in the last history
// entry.
type LegInput struct {
	Balloons []model.Balloon
	Cars     []model.Car
	People   []model.Person
	Cluster  model.Cluster
	Frozen   []model.FrozenAssignment
	History  model.History
	Leg      int
}

func (in LegInput) continuity() bool { return in.Leg >= 2 }

func validateLeg(in LegInput, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if in.Leg < 0 || in.Leg > len(in.History)+1 {
		return invalidf("leg %d out of range for %d history entries", in.Leg, len(in.History))
	}
	if in.continuity() && len(in.History) == 0 {
		return invalidf("flight history must be provided for leg %d", in.Leg)
	}
	if in.Cluster == nil {
		return invalidf("cluster must be provided")
	}
	if err := uniqueVehicleIDs(in.Balloons, in.Cars); err != nil {
		return err
	}
	seen := make(map[string]bool, len(in.People))
	for _, p := range in.People {
		if p.ID == "" {
			return invalidf("person without id")
		}
		if seen[p.ID] {
			return invalidf("duplicate person id %s", p.ID)
		}
		seen[p.ID] = true
		if p.FlightsSoFar < 0 {
			return invalidf("person %s has negative flightsSoFar", p.ID)
		}
		if p.Weight != nil && *p.Weight < 0 {
			return invalidf("person %s has negative weight", p.ID)
		}
		if p.Role != "" && p.Role != model.RoleParticipant && p.Role != model.RoleCounselor {
			return invalidf("person %s has unknown role %q", p.ID, p.Role)
		}
	}
	for _, f := range in.Frozen {
		switch f.Role {
		case model.FrozenOperator, model.FrozenPassenger, model.FrozenAbsent:
		default:
			return invalidf("frozen assignment of %s has unknown role %q", f.PersonID, f.Role)
		}
	}
	return nil
}

// legPreconditions checks references between the leg inputs and returns the
// people taking part in the leg, in input order, and the absent ids.
func legPreconditions(in LegInput, o Options) ([]model.Person, []string, error) {
	vehicles := map[string]model.Vehicle{}
	for _, b := range in.Balloons {
		vehicles[b.ID] = b
	}
	cars := map[string]bool{}
	for _, c := range in.Cars {
		vehicles[c.ID] = c
		cars[c.ID] = true
	}
	people := map[string]model.Person{}
	for _, p := range in.People {
		people[p.ID] = p
	}

	inGroup := map[string]string{}
	for _, b := range in.Cluster.BalloonIDs() {
		if v, ok := vehicles[b]; !ok || v.Kind() != model.KindBalloon {
			return nil, nil, preconditionf("cluster references unknown balloon %s", b)
		}
		for _, cid := range in.Cluster[b] {
			if !cars[cid] {
				return nil, nil, preconditionf("cluster of %s references unknown car %s", b, cid)
			}
			if prev, dup := inGroup[cid]; dup {
				return nil, nil, preconditionf("car %s is in the groups of both %s and %s", cid, prev, b)
			}
			inGroup[cid] = b
		}
	}
	for _, b := range in.Balloons {
		if _, ok := in.Cluster[b.ID]; !ok && b.MaxCapacity > 0 {
			return nil, nil, preconditionf("balloon %s has no vehicle group", b.ID)
		}
	}

	pinned := map[string]bool{}
	operators := map[string]string{}
	load := map[string]int{}
	mass := map[string]int{}
	absent := map[string]bool{}
	for _, f := range in.Frozen {
		p, ok := people[f.PersonID]
		if !ok {
			return nil, nil, preconditionf("frozen assignment references unknown person %s", f.PersonID)
		}
		if pinned[f.PersonID] {
			return nil, nil, preconditionf("person %s is frozen more than once", f.PersonID)
		}
		pinned[f.PersonID] = true
		if f.Role == model.FrozenAbsent {
			absent[f.PersonID] = true
			continue
		}
		v, ok := vehicles[f.VehicleID]
		if !ok {
			return nil, nil, preconditionf("frozen assignment of %s references unknown vehicle %s", f.PersonID, f.VehicleID)
		}
		if f.Role == model.FrozenOperator {
			if !slices.Contains(v.Operators(), f.PersonID) {
				return nil, nil, preconditionf("%s is not allowed to operate %s", f.PersonID, f.VehicleID)
			}
			if prev, dup := operators[f.VehicleID]; dup {
				return nil, nil, preconditionf("%s has two frozen operators: %s and %s", f.VehicleID, prev, f.PersonID)
			}
			operators[f.VehicleID] = f.PersonID
		}
		load[f.VehicleID]++
		if load[f.VehicleID] > v.Capacity() {
			return nil, nil, preconditionf("frozen seats exceed the capacity of %s", f.VehicleID)
		}
		mass[f.VehicleID] += p.WeightOr(o.DefaultPersonWeight)
		if b, ok := v.(model.Balloon); ok && b.MaxWeight > 0 && mass[f.VehicleID] > b.MaxWeight {
			return nil, nil, preconditionf("frozen passengers exceed the max weight of %s", f.VehicleID)
		}
	}

	present := make([]model.Person, 0, len(in.People))
	var gone []string
	for _, p := range in.People {
		if absent[p.ID] {
			gone = append(gone, p.ID)
			continue
		}
		present = append(present, p)
	}
	return present, gone, nil
}
