package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDaySet(t *testing.T) {
	d, err := ParseDaySet("1357")
	require.NoError(t, err)
	assert.True(t, d.Has(1))
	assert.False(t, d.Has(2))
	assert.True(t, d.Has(7))
	assert.False(t, d.Has(0))
	assert.False(t, d.Has(8))
	assert.Equal(t, "1357", d.String())
	assert.Equal(t, NewDaySet(1, 3, 5, 7), d)
	assert.Equal(t, "1234567", AllDays.String())

	_, err = ParseDaySet("18")
	assert.Error(t, err)
}

func TestDaySetDecoding(t *testing.T) {
	var fromString, fromNumber DaySet
	require.NoError(t, json.Unmarshal([]byte(`"246"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`246`), &fromNumber))
	assert.Equal(t, NewDaySet(2, 4, 6), fromString)
	assert.Equal(t, fromString, fromNumber)

	out, err := json.Marshal(fromString)
	require.NoError(t, err)
	assert.JSONEq(t, `"246"`, string(out))

	var tpl FlightTemplate
	require.NoError(t, yaml.Unmarshal([]byte(`
id: cx500
flight_number: CX500
airline: Cathay Pacific
from: HKG
to: NRT
departure_time: "09:00"
arrival_time: "14:20"
operating_days: 1
`), &tpl))
	assert.Equal(t, "CX500", tpl.FlightNumber)
	assert.Equal(t, "HKG", tpl.Origin)
	assert.True(t, tpl.OperatingDays.Has(1))
	assert.False(t, tpl.OperatingDays.Has(2))
}

func TestStatusRank(t *testing.T) {
	order := []Status{StatusScheduled, StatusPreparing, StatusBoarding, StatusGateClosed, StatusInAir, StatusArrived}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Rank(), order[i-1].Rank(), order[i])
	}
	assert.Equal(t, StatusScheduled.Rank(), StatusDelayed.Rank())
	assert.True(t, StatusArrived.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusInAir.Terminal())

	_, err := ParseStatus("LANDED")
	assert.Error(t, err)
	st, err := ParseStatus("BOARDING")
	require.NoError(t, err)
	assert.Equal(t, StatusBoarding, st)
}

func TestProgressEqual(t *testing.T) {
	want := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	dep := want
	o := FlightOccurrence{Status: StatusScheduled, ActualDeparture: &dep, Perturbed: true}
	p := o.Progress()
	assert.True(t, p.Equal(o.Progress()))

	later := dep.Add(time.Minute)
	q := p
	q.ActualDeparture = &later
	assert.False(t, p.Equal(q))

	q = p
	q.ActualDeparture = nil
	assert.False(t, p.Equal(q))

	// Progress copies the times, so mutating the occurrence leaves p alone.
	*o.ActualDeparture = later
	assert.Equal(t, want, *p.ActualDeparture)
}

func TestCheckInOpen(t *testing.T) {
	dep := time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC)
	o := FlightOccurrence{Status: StatusScheduled, ScheduledDeparture: dep}

	assert.False(t, o.CheckInOpen(dep.Add(-49*time.Hour)))
	assert.True(t, o.CheckInOpen(dep.Add(-48*time.Hour)))
	assert.True(t, o.CheckInOpen(dep.Add(-time.Minute)))
	assert.False(t, o.CheckInOpen(dep))

	delayed := dep.Add(90 * time.Minute)
	o.ActualDeparture = &delayed
	assert.True(t, o.CheckInOpen(dep.Add(30*time.Minute)))

	o.Status = StatusCancelled
	assert.False(t, o.CheckInOpen(dep.Add(-time.Hour)))
}

func TestNewPage(t *testing.T) {
	rows := make([]FlightOccurrence, 26)
	p := NewPage(rows, 50, 25)
	assert.Len(t, p.Items, 25)
	assert.True(t, p.HasMore)
	require.NotNil(t, p.NextOffset)
	assert.Equal(t, 75, *p.NextOffset)

	p = NewPage(rows[:3], 0, 25)
	assert.Len(t, p.Items, 3)
	assert.False(t, p.HasMore)
	assert.Nil(t, p.NextOffset)

	p = NewPage(nil, 0, 25)
	assert.NotNil(t, p.Items)

	assert.Equal(t, DefaultPageLimit, ClampLimit(0))
	assert.Equal(t, MaxPageLimit, ClampLimit(1000))
	assert.Equal(t, 10, ClampLimit(10))
}
