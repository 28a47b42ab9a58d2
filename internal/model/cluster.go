package model

import (
	"fmt"
	"sort"
)

// Cluster maps a balloon id to the ordered car ids of its ground group.
type Cluster map[string][]string

// Clone returns a deep copy.
func (c Cluster) Clone() Cluster {
	if c == nil {
		return nil
	}
	out := make(Cluster, len(c))
	for b, cars := range c {
		out[b] = append([]string(nil), cars...)
	}
	return out
}

// BalloonOf returns the balloon a car belongs to.
func (c Cluster) BalloonOf(carID string) (string, bool) {
	for b, cars := range c {
		for _, id := range cars {
			if id == carID {
				return b, true
			}
		}
	}
	return "", false
}

// BalloonIDs returns the keys in sorted order.
func (c Cluster) BalloonIDs() []string {
	ids := make([]string, 0, len(c))
	for b := range c {
		ids = append(ids, b)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every car is used once and every group can tow its balloon.
func (c Cluster) Validate(cars []Car) error {
	trailer := make(map[string]bool, len(cars))
	for _, car := range cars {
		trailer[car.ID] = car.HasTrailerClutch
	}
	seen := map[string]string{}
	for _, b := range c.BalloonIDs() {
		hasTrailer := false
		for _, id := range c[b] {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("car %s assigned to both %s and %s", id, prev, b)
			}
			seen[id] = b
			if trailer[id] {
				hasTrailer = true
			}
		}
		if !hasTrailer {
			return fmt.Errorf("group %s has no trailer-equipped car", b)
		}
	}
	return nil
}
