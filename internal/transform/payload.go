package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"crewplan/internal/model"
	"crewplan/internal/opt"
)

// Crew is a vehicle with its crew as exchanged with callers.
type Crew struct {
	ID           string   `json:"id"`
	OperatorID   *string  `json:"operatorId"`
	PassengerIDs []string `json:"passengerIds"`
}

// Group is one balloon with the cars of its ground group.
type Group struct {
	Balloon Crew   `json:"balloon"`
	Cars    []Crew `json:"cars"`
}

// Leg is a past leg in the history list.
type Leg struct {
	VehicleGroups []Group `json:"vehicleGroups"`
}

type person struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	FlightsSoFar *int     `json:"flightsSoFar"`
	Flights      *int     `json:"flights"`
	Languages    []string `json:"languages"`
	Nationality  string   `json:"nationality"`
	Weight       *int     `json:"weight"`
	FirstTime    bool     `json:"firstTime"`
}

type rawPayload struct {
	Balloons       []model.Balloon `json:"balloons"`
	Cars           []model.Car     `json:"cars"`
	People         []person        `json:"people"`
	History        []rawLeg        `json:"history"`
	Groups         []Group         `json:"groups"`
	VehicleGroups  []Group         `json:"vehicleGroups"`
	PreAssignments json.RawMessage `json:"preAssignments"`
	Frozen         json.RawMessage `json:"frozen"`
	Options        json.RawMessage `json:"options"`
	Leg            *int            `json:"leg"`
	Legs           int             `json:"legs"`
	PeopleCount    *int            `json:"peopleCount"`
}

type rawLeg struct {
	VehicleGroups []rawGroup `json:"vehicleGroups"`
}

type rawGroup struct {
	Balloon rawCrew   `json:"balloon"`
	Cars    []rawCrew `json:"cars"`
}

// rawCrew keeps operatorId raw so a missing key can be told from null.
type rawCrew struct {
	ID           string          `json:"id"`
	OperatorID   json.RawMessage `json:"operatorId"`
	PassengerIDs []string        `json:"passengerIds"`
}

// Payload is a decoded request. Groups are the caller's current groups;
// they pin cars to balloons and people to vehicles.
type Payload struct {
	Balloons    []model.Balloon
	Cars        []model.Car
	People      []model.Person
	History     model.History
	Groups      []Group
	Precluster  model.Cluster
	Frozen      []model.FrozenAssignment
	Leg         *int
	Legs        int
	PeopleCount *int

	options json.RawMessage
}

// Decode reads one JSON object. Empty input and malformed JSON are input
// errors.
func Decode(r io.Reader) (*Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read input: %v", opt.ErrValidation, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input; expected a JSON object", opt.ErrValidation)
	}
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", opt.ErrValidation, err)
	}

	p := &Payload{
		Balloons:    raw.Balloons,
		Cars:        raw.Cars,
		Leg:         raw.Leg,
		Legs:        raw.Legs,
		PeopleCount: raw.PeopleCount,
		options:     raw.Options,
	}
	for _, rp := range raw.People {
		p.People = append(p.People, rp.model())
	}
	hist, err := history(raw.History)
	if err != nil {
		return nil, err
	}
	p.History = hist

	p.Groups = raw.VehicleGroups
	if len(raw.Groups) > 0 {
		if len(raw.VehicleGroups) > 0 {
			return nil, fmt.Errorf("%w: both groups and vehicleGroups given", opt.ErrValidation)
		}
		p.Groups = raw.Groups
	}
	var pins []model.FrozenAssignment
	p.Precluster, pins = fromGroups(p.Groups)

	frozenRaw := raw.Frozen
	if isNull(frozenRaw) {
		frozenRaw = raw.PreAssignments
	} else if !isNull(raw.PreAssignments) {
		return nil, fmt.Errorf("%w: both frozen and preAssignments given", opt.ErrValidation)
	}
	explicit, err := frozen(frozenRaw)
	if err != nil {
		return nil, err
	}
	p.Frozen = mergePins(pins, explicit)
	return p, nil
}

func (rp person) model() model.Person {
	out := model.Person{
		ID:          rp.ID,
		Name:        rp.Name,
		Role:        model.Role(strings.ToLower(rp.Role)),
		Nationality: rp.Nationality,
		Weight:      rp.Weight,
		FirstTime:   rp.FirstTime,
	}
	if out.Role == "" {
		out.Role = model.RoleParticipant
	}
	switch {
	case rp.FlightsSoFar != nil:
		out.FlightsSoFar = *rp.FlightsSoFar
	case rp.Flights != nil:
		out.FlightsSoFar = *rp.Flights
	}
	for _, l := range rp.Languages {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out.Languages = append(out.Languages, l)
		}
	}
	return out
}

func history(legs []rawLeg) (model.History, error) {
	out := make(model.History, 0, len(legs))
	for i, leg := range legs {
		var groups []model.GroupRecord
		for _, g := range leg.VehicleGroups {
			b, err := g.Balloon.record(i)
			if err != nil {
				return nil, err
			}
			rec := model.GroupRecord{Balloon: b}
			for _, c := range g.Cars {
				car, err := c.record(i)
				if err != nil {
					return nil, err
				}
				rec.Cars = append(rec.Cars, car)
			}
			groups = append(groups, rec)
		}
		out = append(out, model.FlightLeg{VehicleGroups: groups})
	}
	return out, nil
}

// record converts a history entry; history must name the operator of every
// vehicle, null for an empty one.
func (c rawCrew) record(leg int) (model.VehicleCrew, error) {
	if len(c.OperatorID) == 0 {
		return model.VehicleCrew{}, fmt.Errorf("%w: flight history must be complete, missing operator of %s in leg %d", opt.ErrValidation, c.ID, leg+1)
	}
	var op *string
	if err := json.Unmarshal(c.OperatorID, &op); err != nil {
		return model.VehicleCrew{}, fmt.Errorf("%w: operator of %s in leg %d: %v", opt.ErrValidation, c.ID, leg+1, err)
	}
	out := model.VehicleCrew{ID: c.ID, VehicleAssignment: model.VehicleAssignment{PassengerIDs: c.PassengerIDs}}
	if op != nil {
		out.OperatorID = *op
	}
	if out.PassengerIDs == nil {
		out.PassengerIDs = []string{}
	}
	return out, nil
}

// fromGroups splits caller groups into car pins and seat pins. The operator
// is pinned as operator; everyone else listed is pinned as passenger.
func fromGroups(groups []Group) (model.Cluster, []model.FrozenAssignment) {
	if len(groups) == 0 {
		return nil, nil
	}
	cluster := make(model.Cluster, len(groups))
	var pins []model.FrozenAssignment
	for _, g := range groups {
		pins = append(pins, g.Balloon.pins()...)
		cars := []string{}
		for _, c := range g.Cars {
			cars = append(cars, c.ID)
			pins = append(pins, c.pins()...)
		}
		cluster[g.Balloon.ID] = cars
	}
	return cluster, pins
}

func (c Crew) pins() []model.FrozenAssignment {
	var out []model.FrozenAssignment
	op := ""
	if c.OperatorID != nil && *c.OperatorID != "" {
		op = *c.OperatorID
		out = append(out, model.FrozenAssignment{PersonID: op, VehicleID: c.ID, Role: model.FrozenOperator})
	}
	for _, p := range c.PassengerIDs {
		if p != op {
			out = append(out, model.FrozenAssignment{PersonID: p, VehicleID: c.ID, Role: model.FrozenPassenger})
		}
	}
	return out
}

// frozen accepts a list of assignments or a map of vehicle id to crew.
func frozen(raw json.RawMessage) ([]model.FrozenAssignment, error) {
	if isNull(raw) {
		return nil, nil
	}
	switch bytes.TrimSpace(raw)[0] {
	case '[':
		var list []model.FrozenAssignment
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: frozen assignments: %v", opt.ErrValidation, err)
		}
		for i := range list {
			list[i].Role = model.FrozenRole(strings.ToLower(string(list[i].Role)))
			if list[i].Role == "" {
				list[i].Role = model.FrozenPassenger
			}
		}
		return list, nil
	case '{':
		var byVehicle map[string]Crew
		if err := json.Unmarshal(raw, &byVehicle); err != nil {
			return nil, fmt.Errorf("%w: frozen assignments: %v", opt.ErrValidation, err)
		}
		ids := make([]string, 0, len(byVehicle))
		for id := range byVehicle {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		var out []model.FrozenAssignment
		for _, id := range ids {
			c := byVehicle[id]
			c.ID = id
			out = append(out, c.pins()...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: frozen assignments must be a list or an object", opt.ErrValidation)
	}
}

// mergePins appends explicit pins, skipping exact repeats of group pins.
func mergePins(groups, explicit []model.FrozenAssignment) []model.FrozenAssignment {
	out := append([]model.FrozenAssignment(nil), groups...)
	seen := make(map[model.FrozenAssignment]bool, len(groups))
	for _, f := range groups {
		seen[f] = true
	}
	for _, f := range explicit {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// Options overlays the payload options on base. Unknown keys are rejected.
func (p *Payload) Options(base opt.Options) (opt.Options, error) {
	if isNull(p.options) {
		return base, nil
	}
	dec := json.NewDecoder(bytes.NewReader(p.options))
	dec.DisallowUnknownFields()
	o := base
	if err := dec.Decode(&o); err != nil {
		return base, fmt.Errorf("%w: options: %v", opt.ErrValidation, err)
	}
	return o, o.Validate()
}

// Mode selects which fields a request must carry.
type Mode string

const (
	ModeGroups   Mode = "groups"
	ModeLeg      Mode = "leg"
	ModeCampaign Mode = "campaign"
)

// Check rejects requests missing the fleet or the people for the mode.
func (p *Payload) Check(mode Mode) error {
	if len(p.Balloons) == 0 {
		return fmt.Errorf("%w: balloons must not be empty", opt.ErrValidation)
	}
	switch mode {
	case ModeGroups:
		if len(p.People) == 0 && p.PeopleCount == nil {
			return fmt.Errorf("%w: people or peopleCount must be given", opt.ErrValidation)
		}
	case ModeLeg, ModeCampaign:
		if len(p.People) == 0 {
			return fmt.Errorf("%w: people must not be empty", opt.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", opt.ErrValidation, mode)
	}
	if mode == ModeCampaign && p.Legs < 1 {
		return fmt.Errorf("%w: legs must be >= 1", opt.ErrValidation)
	}
	return nil
}

// ClusterInput builds the clustering request.
func (p *Payload) ClusterInput() opt.ClusterInput {
	in := opt.ClusterInput{Balloons: p.Balloons, Cars: p.Cars, People: p.People, Precluster: p.Precluster}
	if len(p.People) == 0 {
		in.People = nil
		if p.PeopleCount != nil {
			in.PeopleCount = *p.PeopleCount
		}
	}
	return in
}

// LegPlan builds the request for one leg. Without an explicit leg number
// the leg following the history is planned.
func (p *Payload) LegPlan() opt.LegPlan {
	leg := len(p.History) + 1
	if p.Leg != nil {
		leg = *p.Leg
	}
	return opt.LegPlan{
		Balloons:   p.Balloons,
		Cars:       p.Cars,
		People:     p.People,
		Precluster: p.Precluster,
		Frozen:     p.Frozen,
		History:    p.History,
		Leg:        leg,
	}
}

func (p *Payload) CampaignInput() opt.CampaignInput {
	return opt.CampaignInput{
		Balloons:   p.Balloons,
		Cars:       p.Cars,
		People:     p.People,
		Precluster: p.Precluster,
		Frozen:     p.Frozen,
		History:    p.History,
		Legs:       p.Legs,
	}
}
