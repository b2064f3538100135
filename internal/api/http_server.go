package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"flight-status-sim/internal/metrics"
	"flight-status-sim/internal/model"
	"flight-status-sim/internal/simulation"
	"flight-status-sim/internal/store"
	"flight-status-sim/pkg/logger"
	"flight-status-sim/pkg/utils"
)

// Syncer brings a date up to date before it is read.
type Syncer interface {
	Sync(ctx context.Context, date time.Time) error
	History(n int) []simulation.Report
}

// Reader serves occurrence reads.
type Reader interface {
	List(ctx context.Context, q model.ListQuery) ([]model.FlightOccurrence, error)
	Page(ctx context.Context, q model.ListQuery) (model.Page, error)
	Occurrence(ctx context.Context, id string, now time.Time) (*model.OccurrenceDetail, error)
}

// Server represents the HTTP API server
type Server struct {
	syncer  Syncer
	reader  Reader
	limiter *RateLimiter
	loc     *time.Location
	now     func() time.Time
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewServer creates a new HTTP server instance. A nil limiter disables rate
// limiting.
func NewServer(syncer Syncer, reader Reader, limiter *RateLimiter, loc *time.Location, log *logger.Logger, m *metrics.Metrics) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if m == nil {
		m = metrics.NewMetrics()
	}
	return &Server{
		syncer:  syncer,
		reader:  reader,
		limiter: limiter,
		loc:     loc,
		now:     time.Now,
		logger:  log,
		metrics: m,
	}
}

// Router configures all HTTP routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.countRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware)
	}
	api.HandleFunc("/flight-status", s.handleListFlights).Methods(http.MethodGet)
	api.HandleFunc("/flight-status/{id}", s.handleGetFlight).Methods(http.MethodGet)
	api.HandleFunc("/sync/history", s.handleSyncHistory).Methods(http.MethodGet)

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.IncrementHTTPRequests()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.metrics.IncrementHTTPErrors()
	writeError(w, status, msg)
}

func (s *Server) respond(w http.ResponseWriter, v interface{}) {
	if err := writeJSON(w, http.StatusOK, v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		s.metrics.IncrementHTTPErrors()
	}
}

// handleHealth returns the health status of the service
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": utils.FormatTimestamp(time.Now()),
		"uptime":    s.metrics.GetUptime().String(),
	})
}

// handleMetrics returns current metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.metrics.GetSnapshot())
}

// parseListQuery reads date, status, search, limit and offset. The second
// result reports whether the caller asked for a page.
func (s *Server) parseListQuery(r *http.Request) (model.ListQuery, bool, error) {
	var q model.ListQuery
	params := r.URL.Query()

	q.Date = utils.StartOfDay(s.now(), s.loc)
	if d := params.Get("date"); d != "" {
		date, err := utils.ParseDate(d, s.loc)
		if err != nil {
			return q, false, err
		}
		q.Date = date
	}

	for _, raw := range params["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			st, err := model.ParseStatus(part)
			if err != nil {
				return q, false, err
			}
			q.Statuses = append(q.Statuses, st)
		}
	}

	q.Search = strings.TrimSpace(params.Get("search"))

	paged := false
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, false, fmt.Errorf("invalid limit %q", v)
		}
		q.Limit = n
		paged = true
	}
	if v := params.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, false, fmt.Errorf("invalid offset %q", v)
		}
		q.Offset = n
		paged = true
	}
	return q, paged, nil
}

// handleListFlights syncs the requested date, then lists its occurrences
func (s *Server) handleListFlights(w http.ResponseWriter, r *http.Request) {
	q, paged, err := s.parseListQuery(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.syncer.Sync(r.Context(), q.Date); err != nil {
		if r.Context().Err() != nil {
			return
		}
		// Serve what is stored; the next request retries the sync.
		s.logger.Warn("Sync for %s failed: %v", utils.DateKey(q.Date), err)
	}

	if paged {
		page, err := s.reader.Page(r.Context(), q)
		if err != nil {
			s.logger.Error("Failed to list flights: %v", err)
			s.fail(w, http.StatusInternalServerError, "failed to list flights")
			return
		}
		s.respond(w, page)
		return
	}

	rows, err := s.reader.List(r.Context(), q)
	if err != nil {
		s.logger.Error("Failed to list flights: %v", err)
		s.fail(w, http.StatusInternalServerError, "failed to list flights")
		return
	}
	s.respond(w, rows)
}

// handleGetFlight returns one occurrence with its template
func (s *Server) handleGetFlight(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	detail, err := s.reader.Occurrence(r.Context(), id, s.now())
	if errors.Is(err, store.ErrNotFound) {
		s.fail(w, http.StatusNotFound, "flight not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to get flight %s: %v", id, err)
		s.fail(w, http.StatusInternalServerError, "failed to get flight")
		return
	}
	s.respond(w, detail)
}

// handleSyncHistory returns recent sync cycle reports, newest first
func (s *Server) handleSyncHistory(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		n = parsed
	}
	s.respond(w, map[string]interface{}{
		"cycles":    s.syncer.History(n),
		"timestamp": time.Now().Unix(),
	})
}
