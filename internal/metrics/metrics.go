package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects and tracks service counters
type Metrics struct {
	// Sync metrics
	syncCycles    atomic.Int64
	syncFailures  atomic.Int64
	syncThrottled atomic.Int64
	syncJoined    atomic.Int64
	lastCycleMs   atomic.Int64

	// Generation metrics
	occurrencesGenerated atomic.Int64
	templatesSkipped     atomic.Int64

	// Status metrics
	statusWrites  atomic.Int64
	delays        atomic.Int64
	cancellations atomic.Int64

	// Template source metrics
	templateRequests     atomic.Int64
	templateErrors       atomic.Int64
	templateLatencySum   atomic.Int64
	templateLatencyCount atomic.Int64
	templateCacheHits    atomic.Int64

	// HTTP metrics
	httpRequests atomic.Int64
	httpErrors   atomic.Int64
	httpLimited  atomic.Int64

	startTime time.Time
	mu        sync.RWMutex
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Sync metrics methods

func (m *Metrics) IncrementSyncCycles() {
	m.syncCycles.Add(1)
}

func (m *Metrics) IncrementSyncFailures() {
	m.syncFailures.Add(1)
}

func (m *Metrics) IncrementSyncThrottled() {
	m.syncThrottled.Add(1)
}

func (m *Metrics) IncrementSyncJoined() {
	m.syncJoined.Add(1)
}

func (m *Metrics) RecordCycleDuration(d time.Duration) {
	m.lastCycleMs.Store(d.Milliseconds())
}

func (m *Metrics) GetSyncCycles() int64 {
	return m.syncCycles.Load()
}

func (m *Metrics) GetSyncFailures() int64 {
	return m.syncFailures.Load()
}

func (m *Metrics) GetSyncThrottled() int64 {
	return m.syncThrottled.Load()
}

func (m *Metrics) GetSyncJoined() int64 {
	return m.syncJoined.Load()
}

// Generation and status metrics methods

func (m *Metrics) AddOccurrencesGenerated(n int) {
	m.occurrencesGenerated.Add(int64(n))
}

func (m *Metrics) AddTemplatesSkipped(n int) {
	m.templatesSkipped.Add(int64(n))
}

func (m *Metrics) IncrementStatusWrites() {
	m.statusWrites.Add(1)
}

func (m *Metrics) IncrementDelays() {
	m.delays.Add(1)
}

func (m *Metrics) IncrementCancellations() {
	m.cancellations.Add(1)
}

func (m *Metrics) GetOccurrencesGenerated() int64 {
	return m.occurrencesGenerated.Load()
}

func (m *Metrics) GetStatusWrites() int64 {
	return m.statusWrites.Load()
}

// Template source metrics methods

func (m *Metrics) IncrementTemplateRequests() {
	m.templateRequests.Add(1)
}

func (m *Metrics) IncrementTemplateErrors() {
	m.templateErrors.Add(1)
}

func (m *Metrics) IncrementTemplateCacheHits() {
	m.templateCacheHits.Add(1)
}

func (m *Metrics) RecordTemplateLatency(latencyMs int64) {
	m.templateLatencySum.Add(latencyMs)
	m.templateLatencyCount.Add(1)
}

func (m *Metrics) GetTemplateRequests() int64 {
	return m.templateRequests.Load()
}

func (m *Metrics) GetTemplateErrors() int64 {
	return m.templateErrors.Load()
}

func (m *Metrics) GetTemplateCacheHits() int64 {
	return m.templateCacheHits.Load()
}

func (m *Metrics) GetTemplateAverageLatency() float64 {
	count := m.templateLatencyCount.Load()
	if count == 0 {
		return 0
	}
	return float64(m.templateLatencySum.Load()) / float64(count)
}

// HTTP metrics methods

func (m *Metrics) IncrementHTTPRequests() {
	m.httpRequests.Add(1)
}

func (m *Metrics) IncrementHTTPErrors() {
	m.httpErrors.Add(1)
}

func (m *Metrics) IncrementHTTPRateLimited() {
	m.httpLimited.Add(1)
}

func (m *Metrics) GetHTTPRequests() int64 {
	return m.httpRequests.Load()
}

func (m *Metrics) GetHTTPErrors() int64 {
	return m.httpErrors.Load()
}

// General metrics methods

func (m *Metrics) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.syncCycles, &m.syncFailures, &m.syncThrottled, &m.syncJoined, &m.lastCycleMs,
		&m.occurrencesGenerated, &m.templatesSkipped,
		&m.statusWrites, &m.delays, &m.cancellations,
		&m.templateRequests, &m.templateErrors, &m.templateLatencySum, &m.templateLatencyCount, &m.templateCacheHits,
		&m.httpRequests, &m.httpErrors, &m.httpLimited,
	} {
		c.Store(0)
	}

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Snapshot represents a point-in-time snapshot of all metrics
type Snapshot struct {
	// Sync metrics
	SyncCycles      int64 `json:"sync_cycles"`
	SyncFailures    int64 `json:"sync_failures"`
	SyncThrottled   int64 `json:"sync_throttled"`
	SyncJoined      int64 `json:"sync_joined"`
	LastCycleMillis int64 `json:"last_cycle_ms"`

	// Simulation metrics
	OccurrencesGenerated int64 `json:"occurrences_generated"`
	TemplatesSkipped     int64 `json:"templates_skipped"`
	StatusWrites         int64 `json:"status_writes"`
	Delays               int64 `json:"delays"`
	Cancellations        int64 `json:"cancellations"`

	// Template source metrics
	TemplateRequests   int64   `json:"template_requests"`
	TemplateErrors     int64   `json:"template_errors"`
	TemplateCacheHits  int64   `json:"template_cache_hits"`
	TemplateAvgLatency float64 `json:"template_avg_latency_ms"`

	// HTTP metrics
	HTTPRequests    int64 `json:"http_requests"`
	HTTPErrors      int64 `json:"http_errors"`
	HTTPRateLimited int64 `json:"http_rate_limited"`

	// System metrics
	UptimeSeconds int64 `json:"uptime_seconds"`
	Timestamp     int64 `json:"timestamp"`
}

// GetSnapshot returns a snapshot of all current metrics
func (m *Metrics) GetSnapshot() *Snapshot {
	return &Snapshot{
		SyncCycles:           m.GetSyncCycles(),
		SyncFailures:         m.GetSyncFailures(),
		SyncThrottled:        m.GetSyncThrottled(),
		SyncJoined:           m.GetSyncJoined(),
		LastCycleMillis:      m.lastCycleMs.Load(),
		OccurrencesGenerated: m.GetOccurrencesGenerated(),
		TemplatesSkipped:     m.templatesSkipped.Load(),
		StatusWrites:         m.GetStatusWrites(),
		Delays:               m.delays.Load(),
		Cancellations:        m.cancellations.Load(),
		TemplateRequests:     m.GetTemplateRequests(),
		TemplateErrors:       m.GetTemplateErrors(),
		TemplateCacheHits:    m.GetTemplateCacheHits(),
		TemplateAvgLatency:   m.GetTemplateAverageLatency(),
		HTTPRequests:         m.GetHTTPRequests(),
		HTTPErrors:           m.GetHTTPErrors(),
		HTTPRateLimited:      m.httpLimited.Load(),
		UptimeSeconds:        int64(m.GetUptime().Seconds()),
		Timestamp:            time.Now().Unix(),
	}
}
