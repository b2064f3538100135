package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FlightInfo holds the static, date-independent attributes of a flight.
// Occurrences carry a copy so reads never need the template store.
type FlightInfo struct {
	FlightNumber    string `json:"flightNumber" yaml:"flight_number"`
	Airline         string `json:"airline" yaml:"airline"`
	Origin          string `json:"from" yaml:"from"`
	Destination     string `json:"to" yaml:"to"`
	OriginCity      string `json:"fromCity" yaml:"from_city"`
	DestinationCity string `json:"toCity" yaml:"to_city"`
	AircraftType    string `json:"aircraft" yaml:"aircraft"`
	Duration        string `json:"duration" yaml:"duration"`
}

// FlightTemplate is a recurring schedule definition. Departure and arrival
// are local clock strings ("09:00", "01:15+1").
type FlightTemplate struct {
	ID            string `json:"id" yaml:"id"`
	FlightInfo    `yaml:",inline"`
	DepartureTime string `json:"departureTime" yaml:"departure_time"`
	ArrivalTime   string `json:"arrivalTime" yaml:"arrival_time"`
	OperatingDays DaySet `json:"operatingDays" yaml:"operating_days"`
}

// DaySet is a bitmask of operating weekdays, bit n set for weekday n
// (Mon=1..Sun=7). Its text form lists the digits, e.g. "1357".
type DaySet uint8

const AllDays DaySet = 0xFE

// NewDaySet builds a DaySet from weekday numbers.
func NewDaySet(days ...int) DaySet {
	var d DaySet
	for _, day := range days {
		if day >= 1 && day <= 7 {
			d |= 1 << uint(day)
		}
	}
	return d
}

// ParseDaySet parses the digit form. Separators and spaces are ignored.
func ParseDaySet(s string) (DaySet, error) {
	var d DaySet
	for _, r := range s {
		switch {
		case r >= '1' && r <= '7':
			d |= 1 << uint(r-'0')
		case r == ',' || r == ' ' || r == '-':
		default:
			return 0, fmt.Errorf("invalid operating day %q in %q", r, s)
		}
	}
	return d, nil
}

// Has reports whether weekday (Mon=1..Sun=7) is in the set.
func (d DaySet) Has(weekday int) bool {
	if weekday < 1 || weekday > 7 {
		return false
	}
	return d&(1<<uint(weekday)) != 0
}

func (d DaySet) String() string {
	var b strings.Builder
	for day := 1; day <= 7; day++ {
		if d.Has(day) {
			b.WriteString(strconv.Itoa(day))
		}
	}
	return b.String()
}

func (d DaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DaySet) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Accept bare numbers such as 1357 as well.
		var n json.Number
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return fmt.Errorf("operating days: %w", err)
		}
		s = n.String()
	}
	parsed, err := ParseDaySet(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *DaySet) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDaySet(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
