package transform

import (
	"crewplan/internal/model"
	"crewplan/internal/opt"
)

// LegOutput is the response for one planned leg. Status is the crew stage;
// ClusterStatus the stage that formed the vehicle groups.
type LegOutput struct {
	RunID         string   `json:"runId,omitempty"`
	Leg           int      `json:"leg"`
	Status        string   `json:"status"`
	ClusterStatus string   `json:"clusterStatus"`
	Objective     float64  `json:"objective"`
	VehicleGroups []Group  `json:"vehicleGroups"`
	Absent        []string `json:"absent,omitempty"`
}

// ClusterOutput is the response of groups mode.
type ClusterOutput struct {
	RunID         string              `json:"runId,omitempty"`
	Status        string              `json:"status"`
	UnusedSeats   int                 `json:"unusedSeats"`
	VehicleGroups map[string][]string `json:"vehicleGroups"`
}

type CampaignOutput struct {
	Legs    []LegOutput `json:"legs"`
	History []Leg       `json:"history"`
}

func NewClusterOutput(res *opt.ClusterResult) ClusterOutput {
	groups := make(map[string][]string, len(res.Cluster))
	for b, cars := range res.Cluster {
		groups[b] = append([]string{}, cars...)
	}
	return ClusterOutput{RunID: res.RunID, Status: res.Status.String(), UnusedSeats: res.UnusedSeats, VehicleGroups: groups}
}

// NewLegOutput renders a leg result, keeping the order of the caller's
// groups and cars and appending anything new after them.
func NewLegOutput(res *opt.LegResult, input []Group) LegOutput {
	return LegOutput{
		RunID:         res.RunID,
		Leg:           res.Leg,
		Status:        res.Status.String(),
		ClusterStatus: res.ClusterStatus.String(),
		Objective:     res.Objective,
		VehicleGroups: OrderGroups(Groups(res.Groups), input),
		Absent:        res.Absent,
	}
}

func NewCampaignOutput(res *opt.CampaignResult, input []Group) CampaignOutput {
	out := CampaignOutput{}
	for i, lr := range res.Legs {
		order := input
		if i > 0 {
			order = out.Legs[i-1].VehicleGroups
		}
		out.Legs = append(out.Legs, NewLegOutput(lr, order))
	}
	for _, leg := range res.History {
		out.History = append(out.History, Leg{VehicleGroups: Groups(leg.VehicleGroups)})
	}
	return out
}

// Groups converts group records to their wire form. Empty vehicles get a
// null operator and an empty passenger list.
func Groups(records []model.GroupRecord) []Group {
	out := make([]Group, 0, len(records))
	for _, r := range records {
		g := Group{Balloon: crew(r.Balloon), Cars: []Crew{}}
		for _, c := range r.Cars {
			g.Cars = append(g.Cars, crew(c))
		}
		out = append(out, g)
	}
	return out
}

func crew(v model.VehicleCrew) Crew {
	c := Crew{ID: v.ID, PassengerIDs: append([]string{}, v.PassengerIDs...)}
	if v.OperatorID != "" {
		op := v.OperatorID
		c.OperatorID = &op
	}
	return c
}

// OrderGroups sorts groups so those named in input come first in input
// order, each with the input's cars first in input order.
func OrderGroups(groups, input []Group) []Group {
	if len(input) == 0 {
		return groups
	}
	byBalloon := make(map[string]int, len(groups))
	for i, g := range groups {
		byBalloon[g.Balloon.ID] = i
	}
	out := make([]Group, 0, len(groups))
	used := make([]bool, len(groups))
	for _, in := range input {
		i, ok := byBalloon[in.Balloon.ID]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		out = append(out, orderCars(groups[i], in))
	}
	for i, g := range groups {
		if !used[i] {
			out = append(out, g)
		}
	}
	return out
}

func orderCars(g, input Group) Group {
	byID := make(map[string]int, len(g.Cars))
	for i, c := range g.Cars {
		byID[c.ID] = i
	}
	cars := make([]Crew, 0, len(g.Cars))
	used := make([]bool, len(g.Cars))
	for _, in := range input.Cars {
		if i, ok := byID[in.ID]; ok && !used[i] {
			used[i] = true
			cars = append(cars, g.Cars[i])
		}
	}
	for i, c := range g.Cars {
		if !used[i] {
			cars = append(cars, c)
		}
	}
	g.Cars = cars
	return g
}

// Failure is the error document written by the CLI.
type Failure struct {
	Error FailureDetail `json:"error"`
}

type FailureDetail struct {
	Kind    opt.Kind `json:"kind"`
	Message string   `json:"message"`
	Stack   string   `json:"stack,omitempty"`
}

func NewFailure(err error, stack []byte) Failure {
	return Failure{Error: FailureDetail{Kind: opt.KindOf(err), Message: err.Error(), Stack: string(stack)}}
}
