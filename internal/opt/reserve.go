package opt

import (
	"crewplan/internal/model"
)

// ReserveSeats carves each balloon's passenger seats out of its group's
// cars, in cluster order, keeping one seat per car for the driver. It
// returns new car values with reduced capacity; the inputs are not modified.
func ReserveSeats(balloons []model.Balloon, cars []model.Car, cluster model.Cluster) ([]model.Car, error) {
	out := make([]model.Car, len(cars))
	copy(out, cars)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.ID] = i
	}
	for _, b := range balloons {
		need := b.MaxCapacity
		for _, cid := range cluster[b.ID] {
			if need <= 0 {
				break
			}
			i, ok := index[cid]
			if !ok {
				return nil, preconditionf("car %s from cluster of %s not found in current input", cid, b.ID)
			}
			take := min(need, out[i].PassengerSeats())
			out[i].MaxCapacity -= take
			need -= take
		}
		if need > 0 {
			return nil, inconsistentf("seat reservation failed for %s: short %d passenger seats in cars %v", b.ID, need, cluster[b.ID])
		}
	}
	return out, nil
}
