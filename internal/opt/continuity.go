package opt

import (
	"slices"

	"crewplan/internal/model"
)

// ContinuityResult is a cluster derived from the previous leg.
type ContinuityResult struct {
	Cluster model.Cluster
	// Dropped lists historical cars missing from the current input.
	Dropped []string
}

// ClusterFromHistory derives the current cluster from the last leg in
// history. Every current balloon must have flown in that leg, and every
// proposed pairing must already exist there.
func ClusterFromHistory(h model.History, balloons []model.Balloon, cars []model.Car, proposed model.Cluster) (*ContinuityResult, error) {
	last, ok := h.Last()
	if !ok {
		return nil, invalidf("flight history must be provided for continuity legs")
	}
	prev := make(map[string][]string, len(last.VehicleGroups))
	for _, g := range last.VehicleGroups {
		for _, c := range g.Cars {
			prev[g.Balloon.ID] = append(prev[g.Balloon.ID], c.ID)
		}
		if _, ok := prev[g.Balloon.ID]; !ok {
			prev[g.Balloon.ID] = []string{}
		}
	}

	for _, b := range proposed.BalloonIDs() {
		hist, ok := prev[b]
		if !ok {
			return nil, continuityf("balloon %s did not fly in the previous leg", b)
		}
		for _, cid := range proposed[b] {
			if !slices.Contains(hist, cid) {
				return nil, continuityf("car %s was not in the group of %s in the previous leg", cid, b)
			}
		}
	}

	known := make(map[string]bool, len(cars))
	for _, c := range cars {
		known[c.ID] = true
	}
	res := &ContinuityResult{Cluster: make(model.Cluster, len(balloons))}
	for _, b := range balloons {
		hist, ok := prev[b.ID]
		if !ok {
			return nil, continuityf("balloon %s did not fly in the previous leg", b.ID)
		}
		ids := []string{}
		for _, cid := range hist {
			if known[cid] {
				ids = append(ids, cid)
			} else {
				res.Dropped = append(res.Dropped, cid)
			}
		}
		res.Cluster[b.ID] = ids
	}
	if err := res.Cluster.Validate(cars); err != nil {
		return nil, preconditionf("historical cluster no longer valid: %v", err)
	}
	for _, b := range balloons {
		seats := 0
		for _, cid := range res.Cluster[b.ID] {
			for _, c := range cars {
				if c.ID == cid {
					seats += c.PassengerSeats()
				}
			}
		}
		if seats < b.MaxCapacity {
			return nil, preconditionf("historical group of %s has %d passenger seats, balloon needs %d", b.ID, seats, b.MaxCapacity)
		}
	}
	return res, nil
}

// PreviousGroups maps each person seated in the last leg to the balloon of
// the group they were in.
func PreviousGroups(h model.History) map[string]string {
	out := map[string]string{}
	last, ok := h.Last()
	if !ok {
		return out
	}
	for _, g := range last.VehicleGroups {
		for _, p := range g.Members() {
			out[p] = g.Balloon.ID
		}
	}
	return out
}

// VisitCounts counts, per person and vehicle, how many past legs seated the
// person in that vehicle.
func VisitCounts(h model.History) map[string]map[string]int {
	out := map[string]map[string]int{}
	add := func(pid, vid string) {
		if pid == "" {
			return
		}
		if out[pid] == nil {
			out[pid] = map[string]int{}
		}
		out[pid][vid]++
	}
	for _, leg := range h {
		for _, g := range leg.VehicleGroups {
			for _, vc := range append([]model.VehicleCrew{g.Balloon}, g.Cars...) {
				seen := map[string]bool{}
				if vc.OperatorID != "" {
					seen[vc.OperatorID] = true
					add(vc.OperatorID, vc.ID)
				}
				for _, p := range vc.PassengerIDs {
					if !seen[p] {
						seen[p] = true
						add(p, vc.ID)
					}
				}
			}
		}
	}
	return out
}
