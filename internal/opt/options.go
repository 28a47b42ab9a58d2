package opt

import (
	"sort"
	"time"
)

// Options are the tunable solver parameters. Field names double as the keys
// accepted in payload "options" objects and configuration files.
type Options struct {
	TimeLimitSeconds    float64 `json:"timeLimitSeconds" yaml:"timeLimitSeconds" mapstructure:"timeLimitSeconds"`
	Workers             int     `json:"workers" yaml:"workers" mapstructure:"workers"`
	Seed                int64   `json:"seed" yaml:"seed" mapstructure:"seed"`
	PlanningHorizonLegs int     `json:"planningHorizonLegs" yaml:"planningHorizonLegs" mapstructure:"planningHorizonLegs"`
	DefaultPersonWeight int     `json:"defaultPersonWeight" yaml:"defaultPersonWeight" mapstructure:"defaultPersonWeight"`

	WPilotFairness          int `json:"wPilotFairness" yaml:"wPilotFairness" mapstructure:"wPilotFairness"`
	WPassengerFairness      int `json:"wPassengerFairness" yaml:"wPassengerFairness" mapstructure:"wPassengerFairness"`
	WTiebreakFairness       int `json:"wTiebreakFairness" yaml:"wTiebreakFairness" mapstructure:"wTiebreakFairness"`
	WNoSoloParticipant      int `json:"wNoSoloParticipant" yaml:"wNoSoloParticipant" mapstructure:"wNoSoloParticipant"`
	WDiverseNationalities   int `json:"wDiverseNationalities" yaml:"wDiverseNationalities" mapstructure:"wDiverseNationalities"`
	WGroupPassengerBalance  int `json:"wGroupPassengerBalance" yaml:"wGroupPassengerBalance" mapstructure:"wGroupPassengerBalance"`
	WVehicleRotation        int `json:"wVehicleRotation" yaml:"wVehicleRotation" mapstructure:"wVehicleRotation"`
	WLowFlightsLookahead    int `json:"wLowFlightsLookahead" yaml:"wLowFlightsLookahead" mapstructure:"wLowFlightsLookahead"`
	WOverweightLookahead    int `json:"wOverweightLookahead" yaml:"wOverweightLookahead" mapstructure:"wOverweightLookahead"`
	CounselorFlightDiscount int `json:"counselorFlightDiscount" yaml:"counselorFlightDiscount" mapstructure:"counselorFlightDiscount"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	return Options{
		TimeLimitSeconds:        20,
		Workers:                 8,
		Seed:                    42,
		PlanningHorizonLegs:     0,
		DefaultPersonWeight:     80,
		WPilotFairness:          10,
		WPassengerFairness:      10,
		WTiebreakFairness:       1,
		WNoSoloParticipant:      5,
		WDiverseNationalities:   2,
		WGroupPassengerBalance:  3,
		WVehicleRotation:        4,
		WLowFlightsLookahead:    5,
		WOverweightLookahead:    1,
		CounselorFlightDiscount: 1,
	}
}

func (o Options) TimeLimit() time.Duration {
	return time.Duration(o.TimeLimitSeconds * float64(time.Second))
}

// Weights lists every soft-objective weight by its option key.
func (o Options) Weights() map[string]int {
	return map[string]int{
		"wPilotFairness":          o.WPilotFairness,
		"wPassengerFairness":      o.WPassengerFairness,
		"wTiebreakFairness":       o.WTiebreakFairness,
		"wNoSoloParticipant":      o.WNoSoloParticipant,
		"wDiverseNationalities":   o.WDiverseNationalities,
		"wGroupPassengerBalance":  o.WGroupPassengerBalance,
		"wVehicleRotation":        o.WVehicleRotation,
		"wLowFlightsLookahead":    o.WLowFlightsLookahead,
		"wOverweightLookahead":    o.WOverweightLookahead,
		"counselorFlightDiscount": o.CounselorFlightDiscount,
	}
}

func (o Options) Validate() error {
	w := o.Weights()
	for _, k := range sortedKeys(w) {
		if w[k] < 0 {
			return invalidf("%s must be >= 0", k)
		}
	}
	if o.DefaultPersonWeight < 0 {
		return invalidf("defaultPersonWeight must be >= 0")
	}
	if o.TimeLimitSeconds <= 0 {
		return invalidf("timeLimitSeconds must be > 0")
	}
	if o.Workers < 1 {
		return invalidf("workers must be >= 1")
	}
	if o.PlanningHorizonLegs < 0 {
		return invalidf("planningHorizonLegs must be >= 0")
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
