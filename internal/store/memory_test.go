package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-status-sim/internal/model"
)

var serviceDay = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func occ(templateID, number, from, to string, depHour int) model.FlightOccurrence {
	dep := serviceDay.Add(time.Duration(depHour) * time.Hour)
	return model.FlightOccurrence{
		TemplateID:  templateID,
		ServiceDate: serviceDay,
		Flight: model.FlightInfo{
			FlightNumber:    number,
			Airline:         "Cathay Pacific",
			Origin:          from,
			Destination:     to,
			OriginCity:      "Hong Kong",
			DestinationCity: "Tokyo",
		},
		Status:             model.StatusScheduled,
		ScheduledDeparture: dep,
		ScheduledArrival:   dep.Add(4 * time.Hour),
	}
}

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	n, err := m.InsertOccurrences(context.Background(), []model.FlightOccurrence{
		occ("t3", "CX500", "HKG", "NRT", 9),
		occ("t1", "CX200", "HKG", "SIN", 7),
		occ("t2", "CX100", "HKG", "SIN", 9),
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	return m
}

func TestInsertIsUniquePerTemplateAndDate(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	n, err := m.InsertOccurrences(ctx, []model.FlightOccurrence{
		occ("t1", "CX200", "HKG", "SIN", 7),
		occ("t4", "CX900", "HKG", "BKK", 12),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Same template on another day is a different occurrence.
	next := occ("t1", "CX200", "HKG", "SIN", 7)
	next.ServiceDate = serviceDay.AddDate(0, 0, 1)
	n, err = m.InsertOccurrences(ctx, []model.FlightOccurrence{next})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	today, err := m.OccurrencesForDate(ctx, serviceDay)
	require.NoError(t, err)
	assert.Len(t, today, 4)
	for _, o := range today {
		assert.NotEmpty(t, o.ID)
		assert.False(t, o.CreatedAt.IsZero())
	}
}

func TestListOrdersByDepartureThenNumber(t *testing.T) {
	m := seeded(t)
	rows, err := m.ListOccurrences(context.Background(), model.ListQuery{Date: serviceDay})
	require.NoError(t, err)

	var numbers []string
	for _, o := range rows {
		numbers = append(numbers, o.Flight.FlightNumber)
	}
	assert.Equal(t, []string{"CX200", "CX100", "CX500"}, numbers)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	all, err := m.OccurrencesForDate(ctx, serviceDay)
	require.NoError(t, err)
	for _, o := range all {
		if o.Flight.FlightNumber == "CX500" {
			require.NoError(t, m.UpdateProgress(ctx, o.ID, model.Progress{Status: model.StatusCancelled, Perturbed: true}, time.Now()))
		}
	}

	tests := []struct {
		name string
		q    model.ListQuery
		want int
	}{
		{"status", model.ListQuery{Statuses: []model.Status{model.StatusCancelled}}, 1},
		{"multi status", model.ListQuery{Statuses: []model.Status{model.StatusCancelled, model.StatusScheduled}}, 3},
		{"flight number", model.ListQuery{Search: "cx1"}, 1},
		{"airport", model.ListQuery{Search: "nrt"}, 1},
		{"city", model.ListQuery{Search: "TOKYO"}, 3},
		{"no match", model.ListQuery{Search: "LHR"}, 0},
		{"combined", model.ListQuery{Search: "sin", Statuses: []model.Status{model.StatusScheduled}}, 2},
		{"other day", model.ListQuery{Date: serviceDay.AddDate(0, 0, 2)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := tc.q
			if q.Date.IsZero() {
				q.Date = serviceDay
			}
			rows, err := m.ListOccurrences(ctx, q)
			require.NoError(t, err)
			assert.Len(t, rows, tc.want)
		})
	}
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var batch []model.FlightOccurrence
	for i := 0; i < 7; i++ {
		batch = append(batch, occ(fmt.Sprintf("t%d", i), fmt.Sprintf("CX%03d", i), "HKG", "NRT", i))
	}
	_, err := m.InsertOccurrences(ctx, batch)
	require.NoError(t, err)

	rows, err := m.ListOccurrences(ctx, model.ListQuery{Date: serviceDay, Offset: 0, Limit: 4})
	require.NoError(t, err)
	page := model.NewPage(rows, 0, 3)
	assert.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 3, *page.NextOffset)

	rows, err = m.ListOccurrences(ctx, model.ListQuery{Date: serviceDay, Offset: 6, Limit: 4})
	require.NoError(t, err)
	page = model.NewPage(rows, 6, 3)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Nil(t, page.NextOffset)

	rows, err = m.ListOccurrences(ctx, model.ListQuery{Date: serviceDay, Offset: 50, Limit: 4})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	rows, err := m.OccurrencesForDate(ctx, serviceDay)
	require.NoError(t, err)
	id := rows[0].ID
	rows[0].Status = model.StatusArrived
	rows[0].Flight.FlightNumber = "XX999"

	got, err := m.GetOccurrence(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, got.Status)
	assert.NotEqual(t, "XX999", got.Flight.FlightNumber)
}

func TestUpdateProgress(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	rows, err := m.OccurrencesForDate(ctx, serviceDay)
	require.NoError(t, err)

	dep := rows[0].ScheduledDeparture.Add(45 * time.Minute)
	arr := rows[0].ScheduledArrival.Add(45 * time.Minute)
	at := serviceDay.Add(3 * time.Hour)
	err = m.UpdateProgress(ctx, rows[0].ID, model.Progress{
		Status:          model.StatusDelayed,
		ActualDeparture: &dep,
		ActualArrival:   &arr,
		Delayed:         true,
		Perturbed:       true,
	}, at)
	require.NoError(t, err)

	got, err := m.GetOccurrence(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelayed, got.Status)
	assert.True(t, got.Delayed)
	require.NotNil(t, got.ActualDeparture)
	assert.True(t, dep.Equal(*got.ActualDeparture))
	assert.True(t, at.Equal(got.UpdatedAt))

	// The store keeps its own copy of the times.
	dep = dep.Add(time.Hour)
	got, err = m.GetOccurrence(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.False(t, dep.Equal(*got.ActualDeparture))
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetOccurrence(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.UpdateProgress(ctx, "missing", model.Progress{Status: model.StatusArrived}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().InsertOccurrences(ctx, []model.FlightOccurrence{occ("t1", "CX1", "HKG", "NRT", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}
