// Package perturb draws the simulated deviations of an occurrence: weather
// at both ends, gate and terminal, and actual times around the schedule.
package perturb

import (
	"fmt"
	"time"

	"flight-status-sim/internal/model"
	"flight-status-sim/pkg/rand"
)

// Offset bounds in whole minutes, inclusive.
const (
	MinDepartureOffset = -10
	MaxDepartureOffset = 20
	MinDurationOffset  = -20
	MaxDurationOffset  = 10
)

var weatherTable = []struct {
	upTo    float64
	weather model.Weather
}{
	{0.30, model.WeatherSunny},
	{0.60, model.WeatherCloudy},
	{0.80, model.WeatherRainy},
	{0.90, model.WeatherFoggy},
	{0.95, model.WeatherSnowy},
	{1.00, model.WeatherStormy},
}

// Weather draws one weather category. Sunny and cloudy dominate; storms
// are rare.
func Weather(rng rand.Source) model.Weather {
	f := rng.Float64()
	for _, w := range weatherTable {
		if f < w.upTo {
			return w.weather
		}
	}
	return model.WeatherStormy
}

func uniformMinutes(rng rand.Source, lo, hi int) time.Duration {
	return time.Duration(lo+rng.Intn(hi-lo+1)) * time.Minute
}

// ActualTimes derives actual departure/arrival from the schedule.
func ActualTimes(rng rand.Source, scheduledDep, scheduledArr time.Time) (dep, arr time.Time) {
	dep = scheduledDep.Add(uniformMinutes(rng, MinDepartureOffset, MaxDepartureOffset))
	block := scheduledArr.Sub(scheduledDep)
	arr = dep.Add(block + uniformMinutes(rng, MinDurationOffset, MaxDurationOffset))
	return dep, arr
}

// Gate returns a gate such as "C14".
func Gate(rng rand.Source) string {
	return fmt.Sprintf("%c%d", 'A'+rune(rng.Intn(5)), rng.Intn(20)+1)
}

// Terminal returns "T1" or "T2".
func Terminal(rng rand.Source) string {
	return fmt.Sprintf("T%d", rng.Intn(2)+1)
}

// Times sets the occurrence's actual times and marks it perturbed. It never
// touches an occurrence that is already perturbed.
func Times(o *model.FlightOccurrence, rng rand.Source) {
	if o.Perturbed {
		return
	}
	dep, arr := ActualTimes(rng, o.ScheduledDeparture, o.ScheduledArrival)
	o.ActualDeparture = &dep
	o.ActualArrival = &arr
	o.Perturbed = true
}

// Occurrence fills every simulated attribute of a freshly generated
// occurrence: gate, terminal, weather and actual times.
func Occurrence(o *model.FlightOccurrence, rng rand.Source) {
	o.Gate = Gate(rng)
	o.Terminal = Terminal(rng)
	o.WeatherOrigin = Weather(rng)
	o.WeatherDestination = Weather(rng)
	Times(o, rng)
}
