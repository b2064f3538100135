// Package simulation ties generation, assignment, perturbation and the
// status machine together, and schedules them under request load.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"flight-status-sim/internal/assignment"
	"flight-status-sim/internal/metrics"
	"flight-status-sim/internal/model"
	"flight-status-sim/internal/perturb"
	"flight-status-sim/internal/status"
	"flight-status-sim/internal/store"
	"flight-status-sim/internal/templates"
	"flight-status-sim/internal/timetable"
	"flight-status-sim/pkg/logger"
	"flight-status-sim/pkg/rand"
	"flight-status-sim/pkg/utils"
)

const DefaultBatchSize = 50

type Options struct {
	// Location is the service time zone that dates and clocks refer to.
	Location      *time.Location
	BatchSize     int
	Probabilities status.Probabilities
}

// GenerateResult summarizes one EnsureDaily call.
type GenerateResult struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
}

// UpdateResult summarizes one UpdateStatuses call.
type UpdateResult struct {
	Evaluated int `json:"evaluated"`
	Updated   int `json:"updated"`
	Delayed   int `json:"delayed"`
	Cancelled int `json:"cancelled"`
}

type Simulator struct {
	store     store.Store
	templates templates.Source
	rng       rand.Source
	machine   *status.Machine
	loc       *time.Location
	batchSize int
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewSimulator(st store.Store, src templates.Source, rng rand.Source, opts Options, log *logger.Logger, m *metrics.Metrics) *Simulator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Simulator{
		store:     st,
		templates: src,
		rng:       rng,
		machine:   status.NewMachine(rng, opts.Probabilities),
		loc:       opts.Location,
		batchSize: opts.BatchSize,
		logger:    log,
		metrics:   m,
	}
}

// EnsureDaily materializes every template active on date that has no
// occurrence yet. Registrations for the whole batch are computed before the
// first write; writes go out in chunks of the configured batch size.
func (s *Simulator) EnsureDaily(ctx context.Context, date time.Time) (GenerateResult, error) {
	var res GenerateResult
	day := utils.StartOfDay(date, s.loc)

	tpls, err := s.templates.Templates(ctx)
	if err != nil {
		return res, fmt.Errorf("load templates: %w", err)
	}

	existing, err := s.store.OccurrencesForDate(ctx, day)
	if err != nil {
		return res, fmt.Errorf("load occurrences: %w", err)
	}
	materialized := make(map[string]bool, len(existing))
	used := make([]string, 0, len(existing))
	for _, o := range existing {
		materialized[o.TemplateID] = true
		if o.AircraftRegistration != "" {
			used = append(used, o.AircraftRegistration)
		}
	}

	// Overnight legs of the previous day still hold their aircraft.
	held, err := s.heldOvernight(ctx, day)
	if err != nil {
		return res, err
	}
	used = append(used, held...)

	occs, skipped := timetable.Expand(day, tpls, materialized)
	for _, sk := range skipped {
		s.logger.Warn("Skipping template %s (%s) on %s: %v", sk.TemplateID, sk.FlightNumber, utils.DateKey(day), sk.Err)
	}
	res.Skipped = len(skipped)
	s.metrics.AddTemplatesSkipped(len(skipped))
	if len(occs) == 0 {
		return res, nil
	}

	legs := make([]assignment.Leg, len(occs))
	for i := range occs {
		o := &occs[i]
		o.ID = uuid.NewString()
		perturb.Occurrence(o, s.rng)
		legs[i] = assignment.Leg{
			ID:          o.ID,
			Airline:     o.Flight.Airline,
			Origin:      o.Flight.Origin,
			Destination: o.Flight.Destination,
			Departure:   *o.ActualDeparture,
			Arrival:     *o.ActualArrival,
		}
	}
	regs := assignment.Assign(legs, used, s.rng)
	for i := range occs {
		occs[i].AircraftRegistration = regs[occs[i].ID]
	}

	for start := 0; start < len(occs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(occs) {
			end = len(occs)
		}
		n, err := s.store.InsertOccurrences(ctx, occs[start:end])
		res.Generated += n
		if err != nil {
			s.metrics.AddOccurrencesGenerated(res.Generated)
			return res, fmt.Errorf("insert occurrences %d-%d: %w", start, end, err)
		}
	}
	s.metrics.AddOccurrencesGenerated(res.Generated)
	s.logger.Info("Generated %d occurrences for %s", res.Generated, utils.DateKey(day))
	return res, nil
}

// heldOvernight returns registrations of day-1 occurrences whose aircraft
// is not free again until after day starts.
func (s *Simulator) heldOvernight(ctx context.Context, day time.Time) ([]string, error) {
	prev, err := s.store.OccurrencesForDate(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("load previous day occurrences: %w", err)
	}
	var held []string
	for i := range prev {
		o := &prev[i]
		if o.AircraftRegistration == "" || o.Status == model.StatusCancelled {
			continue
		}
		arr := o.ScheduledArrival
		if o.ActualArrival != nil && o.ActualArrival.After(arr) {
			arr = *o.ActualArrival
		}
		if arr.Add(assignment.TurnaroundGap).After(day) {
			held = append(held, o.AircraftRegistration)
		}
	}
	return held, nil
}

// UpdateStatuses advances every occurrence of date to now and writes back
// the ones that changed.
func (s *Simulator) UpdateStatuses(ctx context.Context, date, now time.Time) (UpdateResult, error) {
	var res UpdateResult
	day := utils.StartOfDay(date, s.loc)

	occs, err := s.store.OccurrencesForDate(ctx, day)
	if err != nil {
		return res, fmt.Errorf("load occurrences: %w", err)
	}

	for i := range occs {
		o := &occs[i]
		out := s.machine.Advance(o, now)
		res.Evaluated++
		if !out.Changed {
			continue
		}

		if err := s.store.UpdateProgress(ctx, o.ID, o.Progress(), now); err != nil {
			return res, fmt.Errorf("update %s: %w", o.ID, err)
		}
		res.Updated++
		s.metrics.IncrementStatusWrites()

		switch {
		case out.Cancelled:
			res.Cancelled++
			s.metrics.IncrementCancellations()
			s.logger.Info("%s on %s cancelled (weather %s/%s)", o.Flight.FlightNumber, utils.DateKey(day), o.WeatherOrigin, o.WeatherDestination)
		case out.Delayed > 0:
			res.Delayed++
			s.metrics.IncrementDelays()
			s.logger.Info("%s on %s delayed by %v", o.Flight.FlightNumber, utils.DateKey(day), out.Delayed)
		}
		if out.From != out.To {
			s.logger.Debug("%s: %s -> %s", o.Flight.FlightNumber, out.From, out.To)
		}
	}
	return res, nil
}

// Occurrence returns one occurrence with its template and check-in flag. A
// template that can no longer be found is left out rather than failing the
// read.
func (s *Simulator) Occurrence(ctx context.Context, id string, now time.Time) (*model.OccurrenceDetail, error) {
	o, err := s.store.GetOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.OccurrenceDetail{FlightOccurrence: o, CheckInOpen: o.CheckInOpen(now)}

	tpl, err := s.templates.Template(ctx, o.TemplateID)
	if err != nil {
		s.logger.Warn("Template %s for occurrence %s unavailable: %v", o.TemplateID, id, err)
		return detail, nil
	}
	detail.Template = tpl
	return detail, nil
}

// List returns every occurrence of q's date that matches its filters.
// Limit and Offset are ignored.
func (s *Simulator) List(ctx context.Context, q model.ListQuery) ([]model.FlightOccurrence, error) {
	q.Date = utils.StartOfDay(q.Date, s.loc)
	q.Limit, q.Offset = 0, 0
	rows, err := s.store.ListOccurrences(ctx, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.FlightOccurrence{}
	}
	return rows, nil
}

// Page returns one window of q's results. The limit is clamped to
// [1, model.MaxPageLimit].
func (s *Simulator) Page(ctx context.Context, q model.ListQuery) (model.Page, error) {
	q.Date = utils.StartOfDay(q.Date, s.loc)
	limit := model.ClampLimit(q.Limit)
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Limit = limit + 1
	rows, err := s.store.ListOccurrences(ctx, q)
	if err != nil {
		return model.Page{}, err
	}
	return model.NewPage(rows, q.Offset, limit), nil
}
