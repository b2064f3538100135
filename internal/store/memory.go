package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brunoga/deep"
	"github.com/google/uuid"

	"flight-status-sim/internal/model"
	"flight-status-sim/pkg/utils"
)

// Memory is an in-process Store. Occurrences handed in and out are deep
// copies, so callers can mutate them freely.
type Memory struct {
	mu     sync.RWMutex
	byID   map[string]*model.FlightOccurrence
	byKey  map[string]string
	byDate map[string][]string
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[string]*model.FlightOccurrence),
		byKey:  make(map[string]string),
		byDate: make(map[string][]string),
		now:    time.Now,
	}
}

func (m *Memory) OccurrencesForDate(ctx context.Context, date time.Time) ([]model.FlightOccurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byDate[utils.DateKey(date)]
	out := make([]model.FlightOccurrence, 0, len(ids))
	for _, id := range ids {
		out = append(out, deep.MustCopy(*m.byID[id]))
	}
	return out, nil
}

func (m *Memory) InsertOccurrences(ctx context.Context, occs []model.FlightOccurrence) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	inserted := 0
	for i := range occs {
		o := deep.MustCopy(occs[i])
		key := occurrenceKey(o.TemplateID, o.ServiceDate)
		if _, exists := m.byKey[key]; exists {
			continue
		}
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		if o.CreatedAt.IsZero() {
			o.CreatedAt = now
		}
		o.UpdatedAt = now

		m.byID[o.ID] = &o
		m.byKey[key] = o.ID
		dk := utils.DateKey(o.ServiceDate)
		m.byDate[dk] = append(m.byDate[dk], o.ID)
		inserted++
	}
	return inserted, nil
}

func (m *Memory) UpdateProgress(ctx context.Context, id string, p model.Progress, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.ApplyProgress(p)
	o.UpdatedAt = at
	return nil
}

func (m *Memory) ListOccurrences(ctx context.Context, q model.ListQuery) ([]model.FlightOccurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var matched []*model.FlightOccurrence
	for _, id := range m.byDate[utils.DateKey(q.Date)] {
		o := m.byID[id]
		if matchesStatus(o.Status, q.Statuses) && matchesSearch(o, q.Search) {
			matched = append(matched, o)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ScheduledDeparture.Equal(b.ScheduledDeparture) {
			return a.ScheduledDeparture.Before(b.ScheduledDeparture)
		}
		return a.Flight.FlightNumber < b.Flight.FlightNumber
	})

	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]model.FlightOccurrence, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, deep.MustCopy(*o))
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *Memory) GetOccurrence(ctx context.Context, id string) (*model.FlightOccurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := deep.MustCopy(*o)
	return &c, nil
}

func matchesStatus(s model.Status, want []model.Status) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if s == w {
			return true
		}
	}
	return false
}

func matchesSearch(o *model.FlightOccurrence, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, field := range []string{
		o.Flight.FlightNumber,
		o.Flight.Origin,
		o.Flight.Destination,
		o.Flight.OriginCity,
		o.Flight.DestinationCity,
	} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
