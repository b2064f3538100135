// Package timetable expands recurring flight templates into dated
// occurrences.
package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flight-status-sim/internal/model"
	"flight-status-sim/pkg/utils"
)

// Clock is a parsed local clock string.
type Clock struct {
	Hour, Minute int
	// DayOffset comes from an explicit "+N" marker.
	DayOffset int
	// Marked reports whether the marker was present.
	Marked bool
}

// ParseClock parses "HH:MM" with an optional "+N" next-day marker, e.g.
// "01:15+1" or "01:15 +1".
func ParseClock(s string) (Clock, error) {
	var c Clock
	raw := strings.TrimSpace(s)

	clock := raw
	if i := strings.Index(raw, "+"); i >= 0 {
		clock = strings.TrimSpace(raw[:i])
		days, err := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
		if err != nil || days < 0 {
			return c, fmt.Errorf("invalid day marker in %q", s)
		}
		c.DayOffset = days
		c.Marked = true
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return c, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return c, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return c, fmt.Errorf("invalid minute in %q", s)
	}
	c.Hour, c.Minute = h, m
	return c, nil
}

// ScheduledTimes computes absolute departure and arrival for template t on
// the local calendar day of date. Arrival rolls to the next day when its
// clock is not after departure, or by the explicit marker.
func ScheduledTimes(date time.Time, t model.FlightTemplate) (dep, arr time.Time, err error) {
	depClock, err := ParseClock(t.DepartureTime)
	if err != nil {
		return dep, arr, fmt.Errorf("departure: %w", err)
	}
	arrClock, err := ParseClock(t.ArrivalTime)
	if err != nil {
		return dep, arr, fmt.Errorf("arrival: %w", err)
	}

	loc := date.Location()
	y, m, d := date.Date()
	dep = time.Date(y, m, d+depClock.DayOffset, depClock.Hour, depClock.Minute, 0, 0, loc)
	arr = time.Date(y, m, d, arrClock.Hour, arrClock.Minute, 0, 0, loc)

	if arrClock.Marked {
		arr = time.Date(y, m, d+arrClock.DayOffset, arrClock.Hour, arrClock.Minute, 0, 0, loc)
	} else if !arr.After(dep) {
		arr = arr.AddDate(0, 0, 1)
	}

	if !arr.After(dep) {
		return dep, arr, fmt.Errorf("arrival %s is not after departure %s", t.ArrivalTime, t.DepartureTime)
	}
	return dep, arr, nil
}

// SkippedTemplate records a template that could not be materialized.
type SkippedTemplate struct {
	TemplateID   string
	FlightNumber string
	Err          error
}

func (s SkippedTemplate) Error() string {
	return fmt.Sprintf("template %s (%s): %v", s.TemplateID, s.FlightNumber, s.Err)
}

// Expand materializes every template operating on date that is not already
// in existing (keyed by template id). New occurrences are SCHEDULED and carry
// no id, registration or perturbation yet. Templates with unparsable times
// are returned as skipped; they never abort the batch.
func Expand(date time.Time, templates []model.FlightTemplate, existing map[string]bool) ([]model.FlightOccurrence, []SkippedTemplate) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	weekday := utils.ISOWeekday(day)

	var out []model.FlightOccurrence
	var skipped []SkippedTemplate
	seen := make(map[string]bool, len(templates))

	for _, t := range templates {
		if !t.OperatingDays.Has(weekday) || existing[t.ID] || seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		dep, arr, err := ScheduledTimes(day, t)
		if err != nil {
			skipped = append(skipped, SkippedTemplate{TemplateID: t.ID, FlightNumber: t.FlightNumber, Err: err})
			continue
		}

		out = append(out, model.FlightOccurrence{
			TemplateID:         t.ID,
			ServiceDate:        day,
			Flight:             t.FlightInfo,
			Status:             model.StatusScheduled,
			ScheduledDeparture: dep,
			ScheduledArrival:   arr,
		})
	}

	return out, skipped
}
