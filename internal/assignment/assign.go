// Package assignment gives each flight leg of a batch an aircraft
// registration such that no aircraft is in two places at once.
//
// Assignment is a pure computation over one batch: a round-trip pre-pairing
// pass followed by a chronological scan over a pool of aircraft. It has no
// failure mode; when no pooled aircraft fits, a new registration is
// synthesized.
package assignment

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"flight-status-sim/pkg/rand"
)

// TurnaroundGap is the minimum ground time between two legs of one aircraft.
const TurnaroundGap = 90 * time.Minute

// Leg is the assignment view of one occurrence. Departure and Arrival are
// the times the aircraft actually leaves and lands.
type Leg struct {
	ID          string
	Airline     string
	Origin      string
	Destination string
	Departure   time.Time
	Arrival     time.Time
}

// aircraft is a pool entry. It lives only for one Assign call.
type aircraft struct {
	registration string
	location     string
	availableAt  time.Time
	airline      string
}

// pool keeps aircraft in insertion order so scans are deterministic.
type pool struct {
	entries []*aircraft
	byReg   map[string]*aircraft
}

func newPool() *pool {
	return &pool{byReg: make(map[string]*aircraft)}
}

// find returns the first aircraft that can fly leg.
func (p *pool) find(leg Leg) *aircraft {
	for _, ac := range p.entries {
		if !compatibleAirline(ac.airline, leg.Airline) {
			continue
		}
		if ac.location != leg.Origin {
			continue
		}
		if ac.availableAt.After(leg.Departure.Add(-TurnaroundGap)) {
			continue
		}
		return ac
	}
	return nil
}

// park records that reg sits at location from availableAt on.
func (p *pool) park(reg, location string, availableAt time.Time, airline string) {
	if ac, ok := p.byReg[reg]; ok {
		ac.location = location
		ac.availableAt = availableAt
		ac.airline = airline
		return
	}
	ac := &aircraft{registration: reg, location: location, availableAt: availableAt, airline: airline}
	p.entries = append(p.entries, ac)
	p.byReg[reg] = ac
}

// Assign returns leg id → registration for every leg. used lists
// registrations already taken by earlier batches; synthesized registrations
// never collide with them or with each other. legs is not modified.
func Assign(legs []Leg, used []string, rng rand.Source) map[string]string {
	ordered := make([]Leg, len(legs))
	copy(ordered, legs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Departure.Equal(ordered[j].Departure) {
			return ordered[i].Departure.Before(ordered[j].Departure)
		}
		return ordered[i].ID < ordered[j].ID
	})

	taken := make(map[string]bool, len(used)+len(legs))
	for _, reg := range used {
		if reg != "" {
			taken[reg] = true
		}
	}

	returnLeg := pairRoundTrips(ordered)
	assigned := make(map[string]string, len(ordered))
	aircraftPool := newPool()

	for i, leg := range ordered {
		if _, done := assigned[leg.ID]; done {
			continue
		}

		var reg string
		if ac := aircraftPool.find(leg); ac != nil {
			reg = ac.registration
		} else {
			reg = synthesize(leg.Airline, taken, rng)
		}
		assigned[leg.ID] = reg

		if j, ok := returnLeg[i]; ok {
			back := ordered[j]
			assigned[back.ID] = reg
			aircraftPool.park(reg, back.Destination, back.Arrival, back.Airline)
			continue
		}
		aircraftPool.park(reg, leg.Destination, leg.Arrival, leg.Airline)
	}

	return assigned
}

// pairRoundTrips maps an outbound index to the index of the first later leg
// flying the reverse route for the same airline after a full turnaround.
// Each leg joins at most one pair.
func pairRoundTrips(legs []Leg) map[int]int {
	pairs := make(map[int]int)
	paired := make(map[int]bool)

	for i, out := range legs {
		if paired[i] {
			continue
		}
		for j := i + 1; j < len(legs); j++ {
			if paired[j] {
				continue
			}
			back := legs[j]
			if out.Airline != back.Airline ||
				out.Destination != back.Origin ||
				out.Origin != back.Destination {
				continue
			}
			if back.Departure.Before(out.Arrival.Add(TurnaroundGap)) {
				continue
			}
			pairs[i] = j
			paired[i], paired[j] = true, true
			break
		}
	}

	return pairs
}

func compatibleAirline(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

var registrationPrefixes = []struct {
	airline string
	prefix  string
}{
	{"Yellow Airlines", "B"},
	{"Cathay Pacific", "B"},
	{"China Southern", "B"},
	{"Emirates", "A6"},
	{"Lufthansa", "D"},
	{"British Airways", "G"},
	{"Singapore Airlines", "9V"},
	{"ANA", "JA"},
	{"Japan Airlines", "JA"},
	{"United Airlines", "N"},
	{"American Airlines", "N"},
	{"Delta Air Lines", "N"},
	{"Air France", "F"},
	{"Qantas", "VH"},
}

// RegistrationPrefix returns the nationality prefix for airline, "B" when
// unknown.
func RegistrationPrefix(airline string) string {
	for _, p := range registrationPrefixes {
		if strings.Contains(airline, p.airline) {
			return p.prefix
		}
	}
	return "B"
}

// attemptsPerWidth bounds retries before the numeric suffix gains a digit.
const attemptsPerWidth = 64

// synthesize draws an unused "<prefix>-<digits>" registration and marks it
// taken. Suffixes start at four digits and widen if a width is crowded.
func synthesize(airline string, taken map[string]bool, rng rand.Source) string {
	prefix := RegistrationPrefix(airline)
	low, span := 1000, 9000
	for {
		for attempt := 0; attempt < attemptsPerWidth; attempt++ {
			reg := fmt.Sprintf("%s-%d", prefix, low+rng.Intn(span))
			if !taken[reg] {
				taken[reg] = true
				return reg
			}
		}
		low, span = low*10, span*10
	}
}
