package model

import (
	"fmt"
	"slices"
)

// Manifest is the complete crew plan of one leg, keyed by vehicle id.
type Manifest map[string]VehicleAssignment

// Occupants returns the vehicle id of every seated person.
func (m Manifest) Occupants() map[string]string {
	out := map[string]string{}
	for vid, a := range m {
		for _, p := range a.PassengerIDs {
			out[p] = vid
		}
	}
	return out
}

// Check verifies the hard invariants of a manifest against the leg input.
// defaultWeight is used for people without a declared weight.
func (m Manifest) Check(balloons []Balloon, cars []Car, people []Person, defaultWeight int) error {
	vehicles := map[string]Vehicle{}
	maxWeight := map[string]int{}
	for _, b := range balloons {
		vehicles[b.ID] = b
		maxWeight[b.ID] = b.MaxWeight
	}
	for _, c := range cars {
		vehicles[c.ID] = c
	}
	weight := map[string]int{}
	for _, p := range people {
		weight[p.ID] = p.WeightOr(defaultWeight)
	}

	seated := map[string]string{}
	operating := map[string]string{}
	for vid, a := range m {
		v, ok := vehicles[vid]
		if !ok {
			return fmt.Errorf("manifest references unknown vehicle %s", vid)
		}
		if len(a.PassengerIDs) > v.Capacity() {
			return fmt.Errorf("vehicle %s over capacity: %d > %d", vid, len(a.PassengerIDs), v.Capacity())
		}
		if len(a.PassengerIDs) > 0 && a.OperatorID == "" {
			return fmt.Errorf("vehicle %s occupied without operator", vid)
		}
		if a.OperatorID != "" {
			if !slices.Contains(a.PassengerIDs, a.OperatorID) {
				return fmt.Errorf("operator %s of %s is not seated in it", a.OperatorID, vid)
			}
			if !slices.Contains(v.Operators(), a.OperatorID) {
				return fmt.Errorf("operator %s is not allowed on %s", a.OperatorID, vid)
			}
			if prev, dup := operating[a.OperatorID]; dup {
				return fmt.Errorf("person %s operates both %s and %s", a.OperatorID, prev, vid)
			}
			operating[a.OperatorID] = vid
		}
		total := 0
		for _, p := range a.PassengerIDs {
			if prev, dup := seated[p]; dup {
				return fmt.Errorf("person %s seated in both %s and %s", p, prev, vid)
			}
			seated[p] = vid
			total += weight[p]
		}
		if limit := maxWeight[vid]; limit > 0 && total > limit {
			return fmt.Errorf("vehicle %s overweight: %d > %d", vid, total, limit)
		}
	}
	for _, p := range people {
		if _, ok := seated[p.ID]; !ok {
			return fmt.Errorf("person %s has no seat", p.ID)
		}
	}
	if len(seated) != len(people) {
		return fmt.Errorf("manifest seats %d people, expected %d", len(seated), len(people))
	}
	return nil
}
