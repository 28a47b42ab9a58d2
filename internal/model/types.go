package model

// Core domain types shared by the optimizers, the CLI and the HTTP API.

type Kind string

const (
	KindBalloon Kind = "balloon"
	KindCar     Kind = "car"
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleCounselor   Role = "counselor"
)

// Vehicle is the capability shared by balloons and cars.
type Vehicle interface {
	VehicleID() string
	Capacity() int
	Operators() []string
	Kind() Kind
}

type Balloon struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	MaxCapacity        int      `json:"maxCapacity"`
	MaxWeight          int      `json:"maxWeight,omitempty"` // <= 0 means unlimited
	AllowedOperatorIDs []string `json:"allowedOperatorIds"`
}

func (b Balloon) VehicleID() string   { return b.ID }
func (b Balloon) Capacity() int       { return b.MaxCapacity }
func (b Balloon) Operators() []string { return b.AllowedOperatorIDs }
func (b Balloon) Kind() Kind          { return KindBalloon }

type Car struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name,omitempty"`
	MaxCapacity        int      `json:"maxCapacity"`
	HasTrailerClutch   bool     `json:"hasTrailerClutch,omitempty"`
	AllowedOperatorIDs []string `json:"allowedOperatorIds"`
}

func (c Car) VehicleID() string   { return c.ID }
func (c Car) Capacity() int       { return c.MaxCapacity }
func (c Car) Operators() []string { return c.AllowedOperatorIDs }
func (c Car) Kind() Kind          { return KindCar }

// PassengerSeats is the number of seats left once the driver is seated.
func (c Car) PassengerSeats() int {
	if c.MaxCapacity <= 1 {
		return 0
	}
	return c.MaxCapacity - 1
}

type Person struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Role         Role     `json:"role,omitempty"`
	FlightsSoFar int      `json:"flightsSoFar"`
	Languages    []string `json:"languages,omitempty"` // empty: speaks every language
	Nationality  string   `json:"nationality,omitempty"`
	Weight       *int     `json:"weight,omitempty"`
	FirstTime    bool     `json:"firstTime,omitempty"`
}

func (p Person) IsParticipant() bool { return p.Role != RoleCounselor }

// SpeaksAll reports whether the person is compatible with every language.
func (p Person) SpeaksAll() bool { return len(p.Languages) == 0 }

// SharesLanguage reports whether p and q can talk to each other.
func (p Person) SharesLanguage(q Person) bool {
	if p.SpeaksAll() || q.SpeaksAll() {
		return true
	}
	for _, a := range p.Languages {
		for _, b := range q.Languages {
			if a == b {
				return true
			}
		}
	}
	return false
}

func (p Person) NationalityOrUnknown() string {
	if p.Nationality == "" {
		return "unknown"
	}
	return p.Nationality
}

// WeightOr returns the declared weight or the fallback.
func (p Person) WeightOr(fallback int) int {
	if p.Weight == nil {
		return fallback
	}
	return *p.Weight
}

// VehicleAssignment is the crew of one vehicle. The operator is also
// listed in PassengerIDs, first.
type VehicleAssignment struct {
	OperatorID   string   `json:"operatorId,omitempty"`
	PassengerIDs []string `json:"passengerIds"`
}

func (a VehicleAssignment) Empty() bool { return a.OperatorID == "" && len(a.PassengerIDs) == 0 }

type FrozenRole string

const (
	FrozenOperator  FrozenRole = "operator"
	FrozenPassenger FrozenRole = "passenger"
	FrozenAbsent    FrozenRole = "absent"
)

// FrozenAssignment pins a person to a vehicle and role for the current leg.
type FrozenAssignment struct {
	PersonID  string     `json:"personId"`
	VehicleID string     `json:"vehicleId,omitempty"`
	Role      FrozenRole `json:"role"`
}
