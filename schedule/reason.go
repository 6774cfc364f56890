package schedule

import "strings"

// Reason is a single periodic obligation.
type Reason uint8

const (
	ReasonCallHome Reason = 1 << iota
	ReasonWaterSensors
	ReasonWeatherStation
	ReasonFineOffset
	ReasonSoilMoisture
)

var allReasons = []Reason{
	ReasonCallHome,
	ReasonWaterSensors,
	ReasonWeatherStation,
	ReasonFineOffset,
	ReasonSoilMoisture,
}

func (r Reason) String() string {
	switch r {
	case ReasonCallHome:
		return "call-home"
	case ReasonWaterSensors:
		return "water-sensors"
	case ReasonWeatherStation:
		return "weather-station"
	case ReasonFineOffset:
		return "fine-offset"
	case ReasonSoilMoisture:
		return "soil-moisture"
	default:
		return "none"
	}
}

// ReasonSet is the OR of every reason due at one wake.
type ReasonSet uint8

func Set(reasons ...Reason) ReasonSet {
	var s ReasonSet
	for _, r := range reasons {
		s = s.Add(r)
	}
	return s
}

func (s ReasonSet) Has(r Reason) bool {
	return s&ReasonSet(r) != 0
}

func (s ReasonSet) Add(r Reason) ReasonSet {
	return s | ReasonSet(r)
}

func (s ReasonSet) Union(o ReasonSet) ReasonSet {
	return s | o
}

// Without removes every reason in o.
func (s ReasonSet) Without(o ReasonSet) ReasonSet {
	return s &^ o
}

func (s ReasonSet) Empty() bool {
	return s == 0
}

// Only reports whether r is the sole member.
func (s ReasonSet) Only(r Reason) bool {
	return s == ReasonSet(r)
}

func (s ReasonSet) Reasons() []Reason {
	var out []Reason
	for _, r := range allReasons {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s ReasonSet) String() string {
	if s.Empty() {
		return "none"
	}
	names := make([]string, 0, len(allReasons))
	for _, r := range s.Reasons() {
		names = append(names, r.String())
	}
	return strings.Join(names, "|")
}
