package opt

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"crewplan/internal/mip"
	"crewplan/internal/model"
)

// LegPlan is one leg to plan end to end: the cluster is built for leg 0
// and 1 and derived from history for later legs. Precluster pins cars to
// balloons; on continuity legs it may only repeat historical pairings.
type LegPlan struct {
	Balloons   []model.Balloon
	Cars       []model.Car
	People     []model.Person
	Precluster model.Cluster
	Frozen     []model.FrozenAssignment
	History    model.History
	Leg        int
}

// PlanLeg runs cluster selection and crew assignment for one leg.
func (pl *Planner) PlanLeg(ctx context.Context, in LegPlan, o Options) (*LegResult, error) {
	if in.Leg < 0 || in.Leg > len(in.History)+1 {
		return nil, invalidf("leg %d out of range for %d history entries", in.Leg, len(in.History))
	}
	ctx = withRunID(ctx)
	var cluster model.Cluster
	// groups carried over from history are fixed, not searched
	clusterStatus := mip.StatusOptimal
	if in.Leg <= 1 {
		cr, err := pl.BuildClusters(ctx, ClusterInput{
			Balloons:   in.Balloons,
			Cars:       in.Cars,
			People:     presentPeople(in.People, in.Frozen),
			Precluster: in.Precluster,
		}, ClusterOptionsFrom(o))
		if err != nil {
			return nil, err
		}
		cluster = cr.Cluster
		clusterStatus = cr.Status
	} else {
		cr, err := ClusterFromHistory(in.History, in.Balloons, in.Cars, in.Precluster)
		if err != nil {
			return nil, err
		}
		if len(cr.Dropped) > 0 {
			pl.Logger.Warn().Int("leg", in.Leg).Strs("cars", cr.Dropped).Msg("cars from previous leg missing, dropped from groups")
		}
		cluster = cr.Cluster
	}
	res, err := pl.SolveLeg(ctx, LegInput{
		Balloons: in.Balloons,
		Cars:     in.Cars,
		People:   in.People,
		Cluster:  cluster,
		Frozen:   in.Frozen,
		History:  in.History,
		Leg:      in.Leg,
	}, o)
	if err != nil {
		return nil, err
	}
	res.ClusterStatus = clusterStatus
	return res, nil
}

// CampaignInput plans Legs consecutive legs after the legs already in
// History. Precluster and Frozen apply to the first planned leg only.
type CampaignInput struct {
	Balloons   []model.Balloon
	Cars       []model.Car
	People     []model.Person
	Precluster model.Cluster
	Frozen     []model.FrozenAssignment
	History    model.History
	Legs       int
}

type CampaignResult struct {
	Legs    []*LegResult  `json:"legs"`
	History model.History `json:"history"`
}

// PlanCampaign solves legs one after another, feeding each manifest back as
// history. People seated in a balloon get their flight count raised for the
// following legs.
func (pl *Planner) PlanCampaign(ctx context.Context, in CampaignInput, o Options) (res *CampaignResult, err error) {
	ctx, span := pl.startSpan(ctx, "opt.PlanCampaign", attribute.Int("legs", in.Legs))
	defer func() { endSpan(span, err) }()

	if in.Legs < 1 {
		return nil, invalidf("legs must be >= 1")
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	history := slices.Clone(in.History)
	people := slices.Clone(in.People)
	res = &CampaignResult{}
	for i := 0; i < in.Legs; i++ {
		leg := LegPlan{
			Balloons: in.Balloons,
			Cars:     in.Cars,
			People:   people,
			History:  history,
			Leg:      len(history) + 1,
		}
		if i == 0 {
			leg.Precluster = in.Precluster
			leg.Frozen = in.Frozen
		}
		lr, err := pl.PlanLeg(ctx, leg, o)
		if err != nil {
			return nil, err
		}
		res.Legs = append(res.Legs, lr)
		history = append(history, model.FlightLeg{VehicleGroups: lr.Groups})
		people = afterLeg(people, in.Balloons, lr.Manifest)
	}
	res.History = history
	return res, nil
}

func presentPeople(people []model.Person, frozen []model.FrozenAssignment) []model.Person {
	absent := map[string]bool{}
	for _, f := range frozen {
		if f.Role == model.FrozenAbsent {
			absent[f.PersonID] = true
		}
	}
	if len(absent) == 0 {
		return people
	}
	out := make([]model.Person, 0, len(people))
	for _, p := range people {
		if !absent[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// afterLeg returns people with flight counts updated from a manifest.
func afterLeg(people []model.Person, balloons []model.Balloon, m model.Manifest) []model.Person {
	flew := map[string]bool{}
	for _, b := range balloons {
		for _, p := range m[b.ID].PassengerIDs {
			flew[p] = true
		}
	}
	out := slices.Clone(people)
	for i := range out {
		if flew[out[i].ID] {
			out[i].FlightsSoFar++
			out[i].FirstTime = false
		}
	}
	return out
}
