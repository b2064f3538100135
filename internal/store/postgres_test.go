package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flight-status-sim/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "sim", Password: "secret", Name: "flights"}
	assert.Equal(t, "host=db port=5432 user=sim password=secret dbname=flights sslmode=disable", cfg.dsn())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.dsn(), "sslmode=require")

	cfg.URL = "postgres://sim@db/flights"
	assert.Equal(t, "postgres://sim@db/flights", cfg.dsn())
}

// openTestPostgres connects to the database named by FLIGHT_SIM_TEST_DATABASE_URL
// and skips otherwise.
func openTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("FLIGHT_SIM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FLIGHT_SIM_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	p, err := OpenPostgres(ctx, PostgresConfig{URL: url}, time.UTC)
	require.NoError(t, err)
	_, err = p.db.ExecContext(ctx, `TRUNCATE flight_occurrences, flight_templates`)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPostgresRoundTrip(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	n, err := p.InsertOccurrences(ctx, []model.FlightOccurrence{
		occ("t1", "CX200", "HKG", "SIN", 7),
		occ("t2", "CX100", "HKG", "SIN", 9),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.InsertOccurrences(ctx, []model.FlightOccurrence{occ("t1", "CX200", "HKG", "SIN", 7)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows, err := p.ListOccurrences(ctx, model.ListQuery{
		Date:     serviceDay,
		Search:   "cx1",
		Statuses: []model.Status{model.StatusScheduled},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CX100", rows[0].Flight.FlightNumber)
	assert.Nil(t, rows[0].ActualDeparture)

	dep := rows[0].ScheduledDeparture.Add(5 * time.Minute)
	arr := rows[0].ScheduledArrival
	require.NoError(t, p.UpdateProgress(ctx, rows[0].ID, model.Progress{
		Status: model.StatusBoarding, ActualDeparture: &dep, ActualArrival: &arr, Perturbed: true,
	}, time.Now()))

	got, err := p.GetOccurrence(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBoarding, got.Status)
	require.NotNil(t, got.ActualDeparture)
	assert.True(t, dep.Equal(*got.ActualDeparture))

	_, err = p.GetOccurrence(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresTemplates(t *testing.T) {
	p := openTestPostgres(t)
	ctx := context.Background()

	tpl := model.FlightTemplate{
		ID: "cx500",
		FlightInfo: model.FlightInfo{
			FlightNumber: "CX500", Airline: "Cathay Pacific", Origin: "HKG", Destination: "NRT",
		},
		DepartureTime: "09:00",
		ArrivalTime:   "14:20",
		OperatingDays: model.NewDaySet(1, 3, 5),
	}
	require.NoError(t, p.SaveTemplates(ctx, []model.FlightTemplate{tpl}))

	all, err := p.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, tpl, all[0])

	_, err = p.Template(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
