package opt

import (
	"io"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"crewplan/internal/model"
)

func testPlanner() *Planner {
	return NewPlanner(zerolog.New(io.Discard))
}

func testOptions() Options {
	o := DefaultOptions()
	o.TimeLimitSeconds = 3
	o.Workers = 2
	return o
}

type personOpt func(*model.Person)

func langs(l ...string) personOpt { return func(p *model.Person) { p.Languages = l } }
func nat(n string) personOpt      { return func(p *model.Person) { p.Nationality = n } }
func weight(w int) personOpt      { return func(p *model.Person) { p.Weight = &w } }
func counselor() personOpt        { return func(p *model.Person) { p.Role = model.RoleCounselor } }
func firstTimer() personOpt       { return func(p *model.Person) { p.FirstTime = true } }
func flights(n int) personOpt     { return func(p *model.Person) { p.FlightsSoFar = n } }

func person(id string, opts ...personOpt) model.Person {
	p := model.Person{ID: id, Name: id, Role: model.RoleParticipant}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// camp is a small two-balloon event with twelve people.
type camp struct {
	balloons []model.Balloon
	cars     []model.Car
	people   []model.Person
}

func newCamp() camp {
	return camp{
		balloons: []model.Balloon{
			{ID: "b1", Name: "Sky", MaxCapacity: 4, AllowedOperatorIDs: []string{"alice", "bob"}},
			{ID: "b2", Name: "Cloud", MaxCapacity: 3, AllowedOperatorIDs: []string{"carol"}},
		},
		cars: []model.Car{
			{ID: "c1", MaxCapacity: 5, HasTrailerClutch: true, AllowedOperatorIDs: []string{"dave", "erin"}},
			{ID: "c2", MaxCapacity: 5, HasTrailerClutch: true, AllowedOperatorIDs: []string{"frank"}},
			{ID: "c3", MaxCapacity: 4, AllowedOperatorIDs: []string{"grace", "dave"}},
		},
		people: []model.Person{
			person("alice", langs("en", "fr"), nat("fr"), counselor(), flights(3)),
			person("bob", langs("en"), nat("us"), counselor(), flights(2)),
			person("carol", langs("de"), nat("de"), counselor(), flights(1)),
			person("dave", nat("us"), counselor()),
			person("erin", nat("ch"), counselor()),
			person("frank", nat("de"), counselor()),
			person("grace", nat("fr"), counselor()),
			person("p1", langs("fr"), nat("fr"), firstTimer()),
			person("p2", nat("de"), flights(1)),
			person("p3", nat("us"), firstTimer()),
			person("p4", nat("ch"), flights(2)),
			person("p5", langs("de", "en"), nat("de")),
		},
	}
}

func (c camp) cluster() model.Cluster {
	return model.Cluster{"b1": {"c1"}, "b2": {"c2", "c3"}}
}

func (c camp) leg(cluster model.Cluster) LegInput {
	return LegInput{
		Balloons: c.balloons,
		Cars:     c.cars,
		People:   c.people,
		Cluster:  cluster,
	}
}

// requireManifestInvariants checks the properties every solved leg must hold.
func requireManifestInvariants(t *testing.T, c camp, in LegInput, res *LegResult) {
	t.Helper()
	vehicles := map[string]model.Vehicle{}
	for _, b := range c.balloons {
		vehicles[b.ID] = b
	}
	for _, car := range c.cars {
		vehicles[car.ID] = car
	}
	byID := map[string]model.Person{}
	for _, p := range in.People {
		byID[p.ID] = p
	}
	seated := map[string]int{}
	operated := map[string]int{}
	for vid, a := range res.Manifest {
		v := vehicles[vid]
		require.NotNil(t, v, "unknown vehicle %s", vid)
		require.LessOrEqual(t, len(a.PassengerIDs), v.Capacity(), vid)
		if len(a.PassengerIDs) == 0 {
			require.Empty(t, a.OperatorID, vid)
			continue
		}
		require.NotEmpty(t, a.OperatorID, "occupied %s has no operator", vid)
		require.Equal(t, a.OperatorID, a.PassengerIDs[0], vid)
		require.Contains(t, v.Operators(), a.OperatorID, vid)
		operated[a.OperatorID]++
		mass := 0
		for _, pid := range a.PassengerIDs {
			seated[pid]++
			mass += byID[pid].WeightOr(80)
		}
		if b, ok := v.(model.Balloon); ok {
			if b.MaxWeight > 0 {
				require.LessOrEqual(t, mass, b.MaxWeight, vid)
			}
			op := byID[a.OperatorID]
			for _, pid := range a.PassengerIDs {
				p := byID[pid]
				require.True(t, p.SpeaksAll() || p.SharesLanguage(op) || pid == op.ID,
					"%s cannot talk to %s in %s", pid, op.ID, vid)
			}
		}
	}
	absent := map[string]bool{}
	for _, f := range in.Frozen {
		if f.Role == model.FrozenAbsent {
			absent[f.PersonID] = true
		}
	}
	for _, p := range in.People {
		if absent[p.ID] {
			require.Zero(t, seated[p.ID], "absent %s seated", p.ID)
			continue
		}
		require.Equal(t, 1, seated[p.ID], "person %s", p.ID)
		require.LessOrEqual(t, operated[p.ID], 1, "person %s", p.ID)
	}
}

func ids(people []model.Person) []string {
	out := make([]string, len(people))
	for i, p := range people {
		out[i] = p.ID
	}
	return out
}

func occupantOf(m model.Manifest, pid string) string {
	for vid, a := range m {
		if slices.Contains(a.PassengerIDs, pid) {
			return vid
		}
	}
	return ""
}
