package model

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusDelayed    Status = "DELAYED"
	StatusPreparing  Status = "PREPARING"
	StatusBoarding   Status = "BOARDING"
	StatusGateClosed Status = "GATE_CLOSED"
	StatusInAir      Status = "IN_AIR"
	StatusArrived    Status = "ARRIVED"
	StatusCancelled  Status = "CANCELLED"
)

// Rank is the position of s in the forward lifecycle. DELAYED ranks with
// SCHEDULED; CANCELLED sits past ARRIVED since both are terminal.
func (s Status) Rank() int {
	switch s {
	case StatusScheduled, StatusDelayed:
		return 0
	case StatusPreparing:
		return 1
	case StatusBoarding:
		return 2
	case StatusGateClosed:
		return 3
	case StatusInAir:
		return 4
	case StatusArrived:
		return 5
	case StatusCancelled:
		return 6
	default:
		return -1
	}
}

func (s Status) Terminal() bool {
	return s == StatusArrived || s == StatusCancelled
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// ParseStatus accepts the upper-case wire names.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

type Weather string

const (
	WeatherSunny  Weather = "SUNNY"
	WeatherCloudy Weather = "CLOUDY"
	WeatherRainy  Weather = "RAINY"
	WeatherFoggy  Weather = "FOGGY"
	WeatherSnowy  Weather = "SNOWY"
	WeatherStormy Weather = "STORMY"
)

// Storm reports the weather category that can cancel a flight.
func (w Weather) Storm() bool {
	return w == WeatherStormy
}

// Adverse reports bad weather short of a storm.
func (w Weather) Adverse() bool {
	return w == WeatherRainy || w == WeatherFoggy || w == WeatherSnowy
}

// FlightOccurrence is one concrete dated instance of a FlightTemplate.
type FlightOccurrence struct {
	ID          string     `json:"id"`
	TemplateID  string     `json:"templateId"`
	ServiceDate time.Time  `json:"date"`
	Flight      FlightInfo `json:"flight"`
	Status      Status     `json:"status"`

	ScheduledDeparture time.Time  `json:"scheduledDeparture"`
	ScheduledArrival   time.Time  `json:"scheduledArrival"`
	ActualDeparture    *time.Time `json:"actualDeparture"`
	ActualArrival      *time.Time `json:"actualArrival"`

	AircraftRegistration string  `json:"aircraftRegistration"`
	Gate                 string  `json:"gate"`
	Terminal             string  `json:"terminal"`
	WeatherOrigin        Weather `json:"weatherOrigin"`
	WeatherDestination   Weather `json:"weatherDestination"`

	// Perturbed is set once actual times have been drawn; Delayed once the
	// one-time delay has been applied.
	Perturbed bool `json:"perturbed"`
	Delayed   bool `json:"delayed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Progress is the part of an occurrence the state machine mutates.
type Progress struct {
	Status          Status
	ActualDeparture *time.Time
	ActualArrival   *time.Time
	Delayed         bool
	Perturbed       bool
}

func (o *FlightOccurrence) Progress() Progress {
	return Progress{
		Status:          o.Status,
		ActualDeparture: copyTime(o.ActualDeparture),
		ActualArrival:   copyTime(o.ActualArrival),
		Delayed:         o.Delayed,
		Perturbed:       o.Perturbed,
	}
}

func (o *FlightOccurrence) ApplyProgress(p Progress) {
	o.Status = p.Status
	o.ActualDeparture = copyTime(p.ActualDeparture)
	o.ActualArrival = copyTime(p.ActualArrival)
	o.Delayed = p.Delayed
	o.Perturbed = p.Perturbed
}

// Equal reports whether two progress values would persist identically.
func (p Progress) Equal(q Progress) bool {
	return p.Status == q.Status &&
		p.Delayed == q.Delayed &&
		p.Perturbed == q.Perturbed &&
		sameTime(p.ActualDeparture, q.ActualDeparture) &&
		sameTime(p.ActualArrival, q.ActualArrival)
}

// DepartureTime is the best known departure: actual if set, else scheduled.
func (o *FlightOccurrence) DepartureTime() time.Time {
	if o.ActualDeparture != nil {
		return *o.ActualDeparture
	}
	return o.ScheduledDeparture
}

// CheckInWindow is how long before departure check-in opens.
const CheckInWindow = 48 * time.Hour

// CheckInOpen reports whether a passenger could check in at now: from 48h
// before departure until departure, and never for cancelled or departed
// flights.
func (o *FlightOccurrence) CheckInOpen(now time.Time) bool {
	if o.Status == StatusCancelled || o.Status.Rank() >= StatusInAir.Rank() {
		return false
	}
	dep := o.DepartureTime()
	return !now.Before(dep.Add(-CheckInWindow)) && now.Before(dep)
}

// OccurrenceDetail is the single-occurrence read: the occurrence plus the
// template it was generated from.
type OccurrenceDetail struct {
	*FlightOccurrence
	Template    *FlightTemplate `json:"template,omitempty"`
	CheckInOpen bool            `json:"checkInOpen"`
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
