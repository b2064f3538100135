// Package store persists flight occurrences.
package store

import (
	"context"
	"errors"
	"time"

	"flight-status-sim/internal/model"
	"flight-status-sim/pkg/utils"
)

// ErrNotFound is returned when an occurrence or template does not exist.
var ErrNotFound = errors.New("not found")

// Store is the occurrence persistence used by the simulator and the API.
type Store interface {
	// OccurrencesForDate returns every occurrence of a service date.
	OccurrencesForDate(ctx context.Context, date time.Time) ([]model.FlightOccurrence, error)
	// InsertOccurrences writes new occurrences, silently skipping any whose
	// (template, date) already exists, and reports how many were written.
	InsertOccurrences(ctx context.Context, occs []model.FlightOccurrence) (int, error)
	// UpdateProgress overwrites the mutable lifecycle fields of one occurrence.
	UpdateProgress(ctx context.Context, id string, p model.Progress, at time.Time) error
	// ListOccurrences applies the query's filters, order and window. Limit
	// and Offset are applied literally.
	ListOccurrences(ctx context.Context, q model.ListQuery) ([]model.FlightOccurrence, error)
	GetOccurrence(ctx context.Context, id string) (*model.FlightOccurrence, error)
}

func occurrenceKey(templateID string, serviceDate time.Time) string {
	return templateID + "|" + utils.DateKey(serviceDate)
}
