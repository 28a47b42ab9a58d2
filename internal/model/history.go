package model

// VehicleCrew is a vehicle id together with its crew, as exchanged with callers.
type VehicleCrew struct {
	ID string `json:"id"`
	VehicleAssignment
}

// GroupRecord is one balloon with the cars of its ground group.
type GroupRecord struct {
	Balloon VehicleCrew   `json:"balloon"`
	Cars    []VehicleCrew `json:"cars"`
}

// FlightLeg is the recorded outcome of one past leg.
type FlightLeg struct {
	VehicleGroups []GroupRecord `json:"vehicleGroups"`
}

// History lists past legs, oldest first.
type History []FlightLeg

// Last returns the most recent leg.
func (h History) Last() (FlightLeg, bool) {
	if len(h) == 0 {
		return FlightLeg{}, false
	}
	return h[len(h)-1], true
}

// Members returns everyone seated anywhere in the group.
func (g GroupRecord) Members() []string {
	var out []string
	seen := map[string]bool{}
	add := func(a VehicleAssignment) {
		if a.OperatorID != "" && !seen[a.OperatorID] {
			seen[a.OperatorID] = true
			out = append(out, a.OperatorID)
		}
		for _, p := range a.PassengerIDs {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(g.Balloon.VehicleAssignment)
	for _, c := range g.Cars {
		add(c.VehicleAssignment)
	}
	return out
}

// Groups renders a manifest as group records, one per balloon in order.
func Groups(order []string, cluster Cluster, m Manifest) []GroupRecord {
	out := make([]GroupRecord, 0, len(order))
	for _, bid := range order {
		g := GroupRecord{Balloon: VehicleCrew{ID: bid, VehicleAssignment: crewOf(m, bid)}}
		for _, cid := range cluster[bid] {
			g.Cars = append(g.Cars, VehicleCrew{ID: cid, VehicleAssignment: crewOf(m, cid)})
		}
		out = append(out, g)
	}
	return out
}

func crewOf(m Manifest, vid string) VehicleAssignment {
	a, ok := m[vid]
	if !ok {
		return VehicleAssignment{PassengerIDs: []string{}}
	}
	if a.PassengerIDs == nil {
		a.PassengerIDs = []string{}
	}
	return a
}
