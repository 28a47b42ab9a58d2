package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewplan/internal/model"
)

func crew(id, op string, pax ...string) model.VehicleCrew {
	return model.VehicleCrew{ID: id, VehicleAssignment: model.VehicleAssignment{OperatorID: op, PassengerIDs: pax}}
}

func campHistory() model.History {
	return model.History{
		{VehicleGroups: []model.GroupRecord{
			{Balloon: crew("b1", "alice", "alice", "p1", "p2"), Cars: []model.VehicleCrew{crew("c1", "dave", "dave", "p3")}},
			{Balloon: crew("b2", "carol", "carol", "p4"), Cars: []model.VehicleCrew{
				crew("c2", "frank", "frank", "bob"),
				crew("c3", "grace", "grace", "erin", "p5"),
			}},
		}},
		{VehicleGroups: []model.GroupRecord{
			{Balloon: crew("b1", "alice", "alice", "p1", "p3"), Cars: []model.VehicleCrew{crew("c1", "erin", "erin", "p2")}},
			{Balloon: crew("b2", "carol", "carol", "p5"), Cars: []model.VehicleCrew{
				crew("c2", "frank", "frank", "p4", "bob"),
				crew("c3", "grace", "grace", "dave"),
			}},
		}},
	}
}

func TestClusterFromHistory(t *testing.T) {
	c := newCamp()
	res, err := ClusterFromHistory(campHistory(), c.balloons, c.cars, nil)
	require.NoError(t, err)
	assert.Equal(t, c.cluster(), res.Cluster)
	assert.Empty(t, res.Dropped)

	res, err = ClusterFromHistory(campHistory(), c.balloons, c.cars, model.Cluster{"b2": {"c3"}})
	require.NoError(t, err)
	assert.Equal(t, c.cluster(), res.Cluster)
}

func TestClusterFromHistoryDropsMissingCars(t *testing.T) {
	c := newCamp()
	res, err := ClusterFromHistory(campHistory(), c.balloons, c.cars[:2], nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3"}, res.Dropped)
	assert.Equal(t, model.Cluster{"b1": {"c1"}, "b2": {"c2"}}, res.Cluster)
}

func TestClusterFromHistoryErrors(t *testing.T) {
	c := newCamp()

	_, err := ClusterFromHistory(nil, c.balloons, c.cars, nil)
	require.ErrorIs(t, err, ErrValidation)

	_, err = ClusterFromHistory(campHistory(), c.balloons, c.cars, model.Cluster{"b1": {"c2"}})
	require.ErrorIs(t, err, ErrContinuity)

	_, err = ClusterFromHistory(campHistory(), c.balloons, c.cars, model.Cluster{"b9": {"c1"}})
	require.ErrorIs(t, err, ErrContinuity)

	extra := append(append([]model.Balloon(nil), c.balloons...), model.Balloon{ID: "b3", MaxCapacity: 2, AllowedOperatorIDs: []string{"bob"}})
	_, err = ClusterFromHistory(campHistory(), extra, c.cars, nil)
	require.ErrorIs(t, err, ErrContinuity)
	assert.Equal(t, KindInput, KindOf(err))

	// without c1 the group of b1 cannot tow its balloon any more
	_, err = ClusterFromHistory(campHistory(), c.balloons, c.cars[1:], nil)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestPreviousGroups(t *testing.T) {
	got := PreviousGroups(campHistory())
	assert.Equal(t, map[string]string{
		"alice": "b1", "p1": "b1", "p3": "b1", "erin": "b1", "p2": "b1",
		"carol": "b2", "p5": "b2", "frank": "b2", "p4": "b2", "bob": "b2", "grace": "b2", "dave": "b2",
	}, got)
	assert.Empty(t, PreviousGroups(nil))
}

func TestVisitCounts(t *testing.T) {
	got := VisitCounts(campHistory())
	assert.Equal(t, map[string]int{"b1": 2}, got["alice"])
	assert.Equal(t, map[string]int{"b1": 1, "c1": 1}, got["p2"])
	assert.Equal(t, map[string]int{"b2": 2}, got["carol"])
	assert.Nil(t, got["ghost"])
}
