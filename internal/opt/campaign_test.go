package opt

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"crewplan/internal/mip"
	"crewplan/internal/model"
)

func TestPlanCampaign(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := newCamp()
	o := testOptions()
	o.TimeLimitSeconds = 2
	res, err := testPlanner().PlanCampaign(context.Background(), CampaignInput{
		Balloons:   c.balloons,
		Cars:       c.cars,
		People:     c.people,
		Precluster: model.Cluster{"b1": {"c1"}},
		Frozen:     []model.FrozenAssignment{{PersonID: "p4", Role: model.FrozenAbsent}},
		Legs:       2,
	}, o)
	require.NoError(t, err)
	require.Len(t, res.Legs, 2)
	require.Len(t, res.History, 2)

	first, second := res.Legs[0], res.Legs[1]
	assert.Equal(t, 1, first.Leg)
	assert.Equal(t, 2, second.Leg)
	assert.Equal(t, "c1", first.Cluster["b1"][0])
	assert.Equal(t, first.Cluster, second.Cluster)
	assert.Empty(t, occupantOf(first.Manifest, "p4"))
	assert.NotEmpty(t, occupantOf(second.Manifest, "p4"))
	assert.Equal(t, first.Groups, res.History[0].VehicleGroups)

	before := PreviousGroups(res.History[:1])
	for pid, vid := range second.Manifest.Occupants() {
		if pid == "p4" {
			continue
		}
		b, ok := second.Cluster.BalloonOf(vid)
		if !ok {
			b = vid
		}
		assert.Equal(t, before[pid], b, "person %s changed group", pid)
	}
}

func TestPlanCampaignContinuesHistory(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := newCamp()
	o := testOptions()
	o.TimeLimitSeconds = 2
	res, err := testPlanner().PlanCampaign(context.Background(), CampaignInput{
		Balloons: c.balloons,
		Cars:     c.cars,
		People:   c.people,
		History:  campHistory(),
		Legs:     1,
	}, o)
	require.NoError(t, err)
	require.Len(t, res.Legs, 1)
	assert.Equal(t, 3, res.Legs[0].Leg)
	assert.Len(t, res.History, 3)
	assert.Equal(t, c.cluster(), res.Legs[0].Cluster)
}

func TestPlanCampaignRejectsZeroLegs(t *testing.T) {
	_, err := testPlanner().PlanCampaign(context.Background(), CampaignInput{}, testOptions())
	require.ErrorIs(t, err, ErrValidation)
}

func TestAfterLegCountsBalloonFlights(t *testing.T) {
	people := []model.Person{person("a", firstTimer()), person("b", flights(2)), person("c")}
	balloons := []model.Balloon{{ID: "b1"}}
	m := model.Manifest{
		"b1": {OperatorID: "a", PassengerIDs: []string{"a", "b"}},
		"c1": {OperatorID: "c", PassengerIDs: []string{"c"}},
	}
	got := afterLeg(people, balloons, m)
	assert.Equal(t, 1, got[0].FlightsSoFar)
	assert.False(t, got[0].FirstTime)
	assert.Equal(t, 3, got[1].FlightsSoFar)
	assert.Equal(t, 0, got[2].FlightsSoFar)
	assert.True(t, people[0].FirstTime, "input must not change")
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestPlanLeg(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := newCamp()
	o := testOptions()
	o.TimeLimitSeconds = 2
	pl := testPlanner()
	res, err := pl.PlanLeg(context.Background(), LegPlan{
		Balloons: c.balloons, Cars: c.cars, People: c.people,
	}, o)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Leg)
	assert.Equal(t, mip.StatusOptimal, res.ClusterStatus)
	stages := pl.Runs.Get(res.RunID)
	assert.Equal(t, res.ClusterStatus.String(), stages[StageClusters].Status)
	assert.Contains(t, stages, StageClusters)
	assert.Contains(t, stages, StageLeg)
	require.NoError(t, res.Cluster.Validate(c.cars))
	requireManifestInvariants(t, c, LegInput{People: c.people}, res)

	_, err = testPlanner().PlanLeg(context.Background(), LegPlan{
		Balloons: c.balloons, Cars: c.cars, People: c.people, Leg: 2,
	}, o)
	require.ErrorIs(t, err, ErrValidation)
}

// bigCamp is a full-size event: four balloons, eight cars and forty people,
// too large for the search to finish within a short limit.
func bigCamp() LegPlan {
	var in LegPlan
	nats := []string{"de", "fr", "us", "ch", "jp"}
	for i := range 4 {
		in.Balloons = append(in.Balloons, model.Balloon{
			ID:                 fmt.Sprintf("b%d", i),
			MaxCapacity:        4,
			AllowedOperatorIDs: []string{fmt.Sprintf("pilot%d", i), fmt.Sprintf("pilot%d", (i+1)%4)},
		})
	}
	for i := range 8 {
		in.Cars = append(in.Cars, model.Car{
			ID:                 fmt.Sprintf("c%d", i),
			MaxCapacity:        6,
			HasTrailerClutch:   i < 4,
			AllowedOperatorIDs: []string{fmt.Sprintf("driver%d", i)},
		})
	}
	for i := range 4 {
		in.People = append(in.People, person(fmt.Sprintf("pilot%d", i), counselor(), nat(nats[i]), flights(i)))
	}
	for i := range 8 {
		in.People = append(in.People, person(fmt.Sprintf("driver%d", i), counselor(), nat(nats[i%5])))
	}
	for i := range 28 {
		opts := []personOpt{nat(nats[i%5]), flights(i % 3), weight(60 + i%4*10)}
		if i%7 == 0 {
			opts = append(opts, firstTimer())
		}
		in.People = append(in.People, person(fmt.Sprintf("kid%02d", i), opts...))
	}
	return in
}

func TestPlanLegRepeatsForSameParameters(t *testing.T) {
	defer goleak.VerifyNone(t)
	o := testOptions()
	o.TimeLimitSeconds = 0.2
	o.Workers = 4
	o.Seed = 42

	first, err := testPlanner().PlanLeg(context.Background(), bigCamp(), o)
	require.NoError(t, err)
	for range 2 {
		again, err := testPlanner().PlanLeg(context.Background(), bigCamp(), o)
		require.NoError(t, err)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Objective, again.Objective)
		if diff := cmp.Diff(first.Manifest, again.Manifest); diff != "" {
			t.Fatalf("manifest differs between identical runs (-first +again):\n%s", diff)
		}
		assert.Equal(t, first.Cluster, again.Cluster)
	}
}
