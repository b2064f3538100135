package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flight-status-sim/internal/metrics"
	"flight-status-sim/internal/model"
	"flight-status-sim/internal/store"
	"flight-status-sim/pkg/logger"
)

// HTTPSource is a client for a remote timetable API exposing
// GET /templates and GET /templates/{id}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	username   string
	password   string
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

// NewHTTPSource creates a new timetable API client
func NewHTTPSource(baseURL string, timeout time.Duration, username, password string, log *logger.Logger, m *metrics.Metrics) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		username: username,
		password: password,
		logger:   log,
		metrics:  m,
	}
}

// Templates fetches the whole timetable
func (c *HTTPSource) Templates(ctx context.Context) ([]model.FlightTemplate, error) {
	var out []model.FlightTemplate
	if err := c.get(ctx, c.baseURL+"/templates", &out); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched %d templates from %s", len(out), c.baseURL)
	return out, nil
}

// Template fetches one template by id
func (c *HTTPSource) Template(ctx context.Context, id string) (*model.FlightTemplate, error) {
	var out model.FlightTemplate
	if err := c.get(ctx, c.baseURL+"/templates/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPSource) get(ctx context.Context, endpoint string, v interface{}) error {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "flight-status-sim/1.0")

	if c.metrics != nil {
		c.metrics.IncrementTemplateRequests()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch templates: %v", err)
		c.recordError()
		return fmt.Errorf("failed to fetch templates: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime).Milliseconds()
	if c.metrics != nil {
		c.metrics.RecordTemplateLatency(latency)
	}

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Timetable API returned status %d", resp.StatusCode)
		c.recordError()
		return fmt.Errorf("timetable API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordError()
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Error("Failed to parse timetable response: %v", err)
		c.recordError()
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

func (c *HTTPSource) recordError() {
	if c.metrics != nil {
		c.metrics.IncrementTemplateErrors()
	}
}
