// Package status advances flight occurrences through their operational
// lifecycle as time passes.
//
// Forward order is SCHEDULED, PREPARING, BOARDING, GATE_CLOSED, IN_AIR,
// ARRIVED. CANCELLED can replace SCHEDULED before departure when a storm is
// reported at either end. A delay can strike once, from SCHEDULED,
// PREPARING or BOARDING; it pushes both actual times back and the chain
// continues against the new times. Status never moves backwards.
package status

import (
	"time"

	"flight-status-sim/internal/model"
	"flight-status-sim/internal/perturb"
	"flight-status-sim/pkg/rand"
)

// Phase boundaries relative to actual departure.
const (
	GateClosesBefore  = 20 * time.Minute
	BoardingBefore    = 50 * time.Minute
	PreparationBefore = 120 * time.Minute
)

// Delay bounds in minutes, inclusive.
const (
	MinDelayMinutes = 30
	MaxDelayMinutes = 120
)

// Probabilities are per-tick sampling chances.
type Probabilities struct {
	Cancel       float64
	Delay        float64
	AdverseDelay float64
}

// DefaultProbabilities returns the production chances: 0.2 cancel under a
// storm, 0.1 delay, 0.4 delay in adverse weather.
func DefaultProbabilities() Probabilities {
	return Probabilities{Cancel: 0.2, Delay: 0.1, AdverseDelay: 0.4}
}

// Outcome describes what one evaluation did.
type Outcome struct {
	Changed   bool
	Cancelled bool
	Delayed   time.Duration
	Repaired  bool
	From, To  model.Status
}

// Machine draws cancellations and delays from rng and advances occurrences.
type Machine struct {
	rng   rand.Source
	probs Probabilities
}

// NewMachine returns a Machine sampling from rng with probs.
func NewMachine(rng rand.Source, probs Probabilities) *Machine {
	return &Machine{rng: rng, probs: probs}
}

// Advance evaluates o at now and mutates it in place. Outcome.Changed
// reports whether anything that is persisted differs afterwards.
func (m *Machine) Advance(o *model.FlightOccurrence, now time.Time) Outcome {
	out := Outcome{From: o.Status, To: o.Status}
	if o.Status.Terminal() {
		return out
	}
	before := o.Progress()

	if !o.Perturbed || o.ActualDeparture == nil || o.ActualArrival == nil {
		o.Perturbed = false
		perturb.Times(o, m.rng)
		out.Repaired = true
	}

	if m.cancel(o, now) {
		out.Cancelled = true
		out.To = o.Status
		out.Changed = !before.Equal(o.Progress())
		return out
	}

	out.Delayed = m.delay(o)

	if next := Phase(now, *o.ActualDeparture, *o.ActualArrival); next.Rank() > o.Status.Rank() {
		o.Status = next
	}

	out.To = o.Status
	out.Changed = !before.Equal(o.Progress())
	return out
}

func (m *Machine) cancel(o *model.FlightOccurrence, now time.Time) bool {
	if o.Status != model.StatusScheduled {
		return false
	}
	if !o.WeatherOrigin.Storm() && !o.WeatherDestination.Storm() {
		return false
	}
	if !now.Before(*o.ActualDeparture) {
		return false
	}
	if m.rng.Float64() >= m.probs.Cancel {
		return false
	}
	o.Status = model.StatusCancelled
	o.ActualDeparture = nil
	o.ActualArrival = nil
	return true
}

func (m *Machine) delay(o *model.FlightOccurrence) time.Duration {
	if o.Delayed {
		return 0
	}
	switch o.Status {
	case model.StatusScheduled, model.StatusPreparing, model.StatusBoarding:
	default:
		return 0
	}

	p := m.probs.Delay
	if o.WeatherOrigin.Adverse() {
		p = m.probs.AdverseDelay
	}
	if m.rng.Float64() >= p {
		return 0
	}

	d := time.Duration(MinDelayMinutes+m.rng.Intn(MaxDelayMinutes-MinDelayMinutes+1)) * time.Minute
	dep := o.ActualDeparture.Add(d)
	arr := o.ActualArrival.Add(d)
	o.ActualDeparture = &dep
	o.ActualArrival = &arr
	o.Delayed = true
	// A flight already preparing or boarding keeps its displayed progress.
	if o.Status == model.StatusScheduled {
		o.Status = model.StatusDelayed
	}
	return d
}

// Phase is the status implied purely by time, ignoring history.
func Phase(now, dep, arr time.Time) model.Status {
	switch {
	case !now.Before(arr):
		return model.StatusArrived
	case !now.Before(dep):
		return model.StatusInAir
	case !now.Before(dep.Add(-GateClosesBefore)):
		return model.StatusGateClosed
	case !now.Before(dep.Add(-BoardingBefore)):
		return model.StatusBoarding
	case !now.Before(dep.Add(-PreparationBefore)):
		return model.StatusPreparing
	default:
		return model.StatusScheduled
	}
}
