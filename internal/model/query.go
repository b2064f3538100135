package model

import "time"

const (
	DefaultPageLimit = 25
	MaxPageLimit     = 200
)

// ListQuery selects the occurrences of one service date.
type ListQuery struct {
	Date     time.Time
	Statuses []Status
	// Search matches flight number, airports and cities, case-insensitively.
	Search string
	// Limit <= 0 means unbounded.
	Limit  int
	Offset int
}

// ClampLimit normalizes a requested page size into [1, MaxPageLimit],
// substituting the default for non-positive requests.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

type Page struct {
	Items      []FlightOccurrence `json:"items"`
	HasMore    bool               `json:"hasMore"`
	NextOffset *int               `json:"nextOffset"`
}

// NewPage trims a fetch of limit+1 rows into a page.
func NewPage(rows []FlightOccurrence, offset, limit int) Page {
	p := Page{Items: rows}
	if len(rows) > limit {
		p.Items = rows[:limit]
		p.HasMore = true
		next := offset + limit
		p.NextOffset = &next
	}
	if p.Items == nil {
		p.Items = []FlightOccurrence{}
	}
	return p
}
