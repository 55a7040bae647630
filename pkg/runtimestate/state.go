// Package runtimestate tracks Golden Signals, RED metrics, active
// incidents, and recent errors so the on-call agent can report its own
// health via the /ops/* surface.
package runtimestate

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bounded ring capacities, matching the reference runtime exactly.
const (
	runDurationsCap  = 500
	runTokenUsageCap = 500
	hourlyTokenLogCap = 10000
	recentErrorsCap  = 50
)

// ErrorRecord is one entry in the recent-errors ring.
type ErrorRecord struct {
	Timestamp  time.Time
	Type       string
	Message    string
	IncidentID string
	TraceID    string
}

// tokenLogEntry is one (timestamp, tokens) pair in the rolling hourly log.
type tokenLogEntry struct {
	at     time.Time
	tokens int
}

// State is the single process-wide runtime state instance. All fields
// are protected by mu; counters and rings are updated from multiple
// concurrent agent runs.
type State struct {
	mu        sync.Mutex
	startTime time.Time

	webhooksReceived  int64
	webhooksProcessed int64
	webhooksIgnored   int64
	webhooksFailed    int64

	agentRunsCompleted int64
	agentRunsFailed    int64

	totalInputTokens    int64
	totalOutputTokens   int64
	totalEstimatedCost  float64

	runTokenUsage  *ring[int]
	hourlyTokenLog *ring[tokenLogEntry]
	runDurations   *ring[float64]
	recentErrors   *ring[ErrorRecord]

	alertsDeduplicated int64
	alertsQueued       int64
	alertsExpired      int64

	activeIncidents map[string]time.Time

	draining bool

	metrics *prometheusMetrics
}

// New constructs a State with a registered Prometheus mirror. reg may
// be nil, in which case the Prometheus mirror is skipped.
func New(reg prometheus.Registerer) *State {
	s := &State{
		startTime:       time.Now(),
		runTokenUsage:   newRing[int](runTokenUsageCap),
		hourlyTokenLog:  newRing[tokenLogEntry](hourlyTokenLogCap),
		runDurations:    newRing[float64](runDurationsCap),
		recentErrors:    newRing[ErrorRecord](recentErrorsCap),
		activeIncidents: make(map[string]time.Time),
	}
	if reg != nil {
		s.metrics = newPrometheusMetrics(reg)
	}
	return s
}

func (s *State) IncWebhooksReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooksReceived++
	if s.metrics != nil {
		s.metrics.webhooksReceived.Inc()
	}
}

func (s *State) IncWebhooksProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooksProcessed++
	if s.metrics != nil {
		s.metrics.webhooksProcessed.Inc()
	}
}

func (s *State) IncWebhooksIgnored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooksIgnored++
	if s.metrics != nil {
		s.metrics.webhooksIgnored.Inc()
	}
}

func (s *State) IncWebhooksFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooksFailed++
	if s.metrics != nil {
		s.metrics.webhooksFailed.Inc()
	}
}

func (s *State) IncAlertsDeduplicated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertsDeduplicated++
	if s.metrics != nil {
		s.metrics.alertsDeduplicated.Inc()
	}
}

func (s *State) IncAlertsQueued() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertsQueued++
	if s.metrics != nil {
		s.metrics.alertsQueued.Inc()
		s.metrics.queueDepth.Inc()
	}
}

func (s *State) IncAlertsExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alertsExpired++
	if s.metrics != nil {
		s.metrics.alertsExpired.Inc()
		s.metrics.queueDepth.Dec()
	}
}

// DecQueueDepth mirrors a dequeue that is not an expiry (i.e. election).
func (s *State) DecQueueDepth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.queueDepth.Dec()
	}
}

// RecordIncidentStarted marks an incident as actively running.
func (s *State) RecordIncidentStarted(incidentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeIncidents[incidentID] = time.Now()
	if s.metrics != nil {
		s.metrics.incidentsActive.Inc()
	}
}

// RecordIncidentFinished clears an incident's active-running marker.
func (s *State) RecordIncidentFinished(incidentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeIncidents, incidentID)
	if s.metrics != nil {
		s.metrics.incidentsActive.Dec()
	}
}

// RunOutcome captures what a completed agent run consumed, for
// recording in the same critical section as the completion counters.
type RunOutcome struct {
	Failed        bool
	Duration      time.Duration
	InputTokens   int
	OutputTokens  int
	EstimatedCost float64
}

// RecordRunCompletion updates counters, rings, and the hourly token
// log for one finished agent run (successful or failed).
func (s *State) RecordRunCompletion(o RunOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Failed {
		s.agentRunsFailed++
		if s.metrics != nil {
			s.metrics.agentRunsFailed.Inc()
		}
	} else {
		s.agentRunsCompleted++
		if s.metrics != nil {
			s.metrics.agentRunsCompleted.Inc()
		}
	}

	seconds := o.Duration.Seconds()
	s.runDurations.add(seconds)
	if s.metrics != nil {
		s.metrics.runDuration.Observe(seconds)
	}

	runTokens := o.InputTokens + o.OutputTokens
	s.totalInputTokens += int64(o.InputTokens)
	s.totalOutputTokens += int64(o.OutputTokens)
	s.totalEstimatedCost += o.EstimatedCost
	s.runTokenUsage.add(runTokens)
	s.hourlyTokenLog.add(tokenLogEntry{at: time.Now(), tokens: runTokens})

	if s.metrics != nil {
		s.metrics.tokensInput.Add(float64(o.InputTokens))
		s.metrics.tokensOutput.Add(float64(o.OutputTokens))
		s.metrics.tokensPerRun.Observe(float64(runTokens))
	}
}

// RecordError appends a record to the bounded recent-errors ring.
func (s *State) RecordError(rec ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	s.recentErrors.add(rec)
}

// TokensLastHour sums tokens consumed in the rolling 3600-second window.
func (s *State) TokensLastHour() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokensLastHourLocked()
}

func (s *State) tokensLastHourLocked() int {
	cutoff := time.Now().Add(-time.Hour)
	total := 0
	for _, entry := range s.hourlyTokenLog.snapshot() {
		if !entry.at.Before(cutoff) {
			total += entry.tokens
		}
	}
	return total
}

// SetDraining flips the drain flag. Irreversible within a process
// lifetime by convention (nothing unsets it).
func (s *State) SetDraining(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draining = v
}

func (s *State) IsDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

func (s *State) ActiveIncidentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeIncidents)
}

// Snapshot is a point-in-time read of everything /ops/metrics reports.
type Snapshot struct {
	Uptime time.Duration

	WebhooksReceived  int64
	WebhooksProcessed int64
	WebhooksIgnored   int64
	WebhooksFailed    int64

	AgentRunsCompleted int64
	AgentRunsFailed    int64

	TotalInputTokens   int64
	TotalOutputTokens  int64
	TotalEstimatedCost float64
	TokensLastHour     int

	AlertsDeduplicated int64
	AlertsQueued       int64
	AlertsExpired      int64

	ActiveIncidents int

	P50Seconds float64
	P95Seconds float64
	P99Seconds float64

	RecentErrors []ErrorRecord

	Draining bool
}

// Snapshot takes a consistent read of the counters, rings, and flags
// needed to compute Golden Signals / RED metrics.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	durations := s.runDurations.snapshot()
	sort.Float64s(durations)
	p50, p95, p99 := percentiles(durations)

	return Snapshot{
		Uptime:             time.Since(s.startTime),
		WebhooksReceived:   s.webhooksReceived,
		WebhooksProcessed:  s.webhooksProcessed,
		WebhooksIgnored:    s.webhooksIgnored,
		WebhooksFailed:     s.webhooksFailed,
		AgentRunsCompleted: s.agentRunsCompleted,
		AgentRunsFailed:    s.agentRunsFailed,
		TotalInputTokens:   s.totalInputTokens,
		TotalOutputTokens:  s.totalOutputTokens,
		TotalEstimatedCost: s.totalEstimatedCost,
		TokensLastHour:     s.tokensLastHourLocked(),
		AlertsDeduplicated: s.alertsDeduplicated,
		AlertsQueued:       s.alertsQueued,
		AlertsExpired:      s.alertsExpired,
		ActiveIncidents:    len(s.activeIncidents),
		P50Seconds:         p50,
		P95Seconds:         p95,
		P99Seconds:         p99,
		RecentErrors:       s.recentErrors.snapshot(),
		Draining:           s.draining,
	}
}

// percentiles computes p50/p95/p99 by index into an already-sorted
// slice, matching the reference's floor(n*q) / min(floor(n*q), n-1)
// indexing exactly.
func percentiles(sorted []float64) (p50, p95, p99 float64) {
	n := len(sorted)
	if n == 0 {
		return 0, 0, 0
	}
	p50 = sorted[n/2]
	p95 = sorted[int(float64(n)*0.95)]
	idx99 := int(float64(n) * 0.99)
	if idx99 > n-1 {
		idx99 = n - 1
	}
	p99 = sorted[idx99]
	return p50, p95, p99
}

// ErrorRate computes (webhooks_failed + agent_runs_failed) /
// webhooks_received * 100, clamped to 0 when there have been no
// webhooks yet.
func (snap Snapshot) ErrorRate() float64 {
	if snap.WebhooksReceived == 0 {
		return 0
	}
	totalErrors := snap.WebhooksFailed + snap.AgentRunsFailed
	return float64(totalErrors) / float64(snap.WebhooksReceived) * 100
}

// RequestsPerMinute computes total_webhooks / uptime_seconds * 60.
func (snap Snapshot) RequestsPerMinute() float64 {
	uptimeSeconds := snap.Uptime.Seconds()
	if uptimeSeconds <= 0 {
		return 0
	}
	return float64(snap.WebhooksReceived) / uptimeSeconds * 60
}
