package ops

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
	"github.com/onduty-run/sentry-agent/pkg/version"
)

// statusResponse mirrors the reference runtime's /ops/status verdicts:
// unhealthy beats degraded beats healthy.
type statusResponse struct {
	Status          string  `json:"status"`
	Version         string  `json:"version"`
	Draining        bool    `json:"draining"`
	QueueDepth      int     `json:"queue_depth"`
	ActiveIncidents int     `json:"active_incidents"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// Status reports the single-word health verdict an uptime check polls.
func (s *Server) Status(c *gin.Context) {
	snap := s.State.Snapshot()
	queueDepth := 0
	active := 0
	if s.Pipeline != nil {
		queueDepth = s.Pipeline.QueueDepth()
		active = s.Pipeline.ActiveCount()
	}

	errorRate := errorRatePercent(snap)
	verdict := "healthy"
	switch {
	case errorRate > 50 || snap.Draining:
		verdict = "unhealthy"
	case errorRate > 10 || active > 5 || queueDepth > 10:
		verdict = "degraded"
	}

	c.JSON(http.StatusOK, statusResponse{
		Status:          verdict,
		Version:         version.Full(),
		Draining:        snap.Draining,
		QueueDepth:      queueDepth,
		ActiveIncidents: active,
		UptimeSeconds:   snap.Uptime.Seconds(),
	})
}

func errorRatePercent(snap runtimestate.Snapshot) float64 {
	return snap.ErrorRate()
}

// metricsResponse is the full Golden Signals / RED JSON document.
type metricsResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	Webhooks struct {
		Received  int64 `json:"received"`
		Processed int64 `json:"processed"`
		Ignored   int64 `json:"ignored"`
		Failed    int64 `json:"failed"`
	} `json:"webhooks"`

	AgentRuns struct {
		Completed int64   `json:"completed"`
		Failed    int64   `json:"failed"`
		P50Seconds float64 `json:"p50_seconds"`
		P95Seconds float64 `json:"p95_seconds"`
		P99Seconds float64 `json:"p99_seconds"`
	} `json:"agent_runs"`

	Tokens struct {
		TotalInput     int64   `json:"total_input"`
		TotalOutput    int64   `json:"total_output"`
		TotalEstimatedCostUSD float64 `json:"total_estimated_cost_usd"`
		LastHour       int     `json:"last_hour"`
	} `json:"tokens"`

	Intake struct {
		Deduplicated    int64 `json:"deduplicated"`
		Queued          int64 `json:"queued"`
		Expired         int64 `json:"expired"`
		QueueDepth      int   `json:"queue_depth"`
		ActiveIncidents int   `json:"active_incidents"`
	} `json:"intake"`
}

// Metrics reports the full RED/Golden-Signals snapshot as JSON.
func (s *Server) Metrics(c *gin.Context) {
	snap := s.State.Snapshot()
	var resp metricsResponse
	resp.UptimeSeconds = snap.Uptime.Seconds()
	resp.Webhooks.Received = snap.WebhooksReceived
	resp.Webhooks.Processed = snap.WebhooksProcessed
	resp.Webhooks.Ignored = snap.WebhooksIgnored
	resp.Webhooks.Failed = snap.WebhooksFailed
	resp.AgentRuns.Completed = snap.AgentRunsCompleted
	resp.AgentRuns.Failed = snap.AgentRunsFailed
	resp.AgentRuns.P50Seconds = snap.P50Seconds
	resp.AgentRuns.P95Seconds = snap.P95Seconds
	resp.AgentRuns.P99Seconds = snap.P99Seconds
	resp.Tokens.TotalInput = snap.TotalInputTokens
	resp.Tokens.TotalOutput = snap.TotalOutputTokens
	resp.Tokens.TotalEstimatedCostUSD = snap.TotalEstimatedCost
	resp.Tokens.LastHour = snap.TokensLastHour
	resp.Intake.Deduplicated = snap.AlertsDeduplicated
	resp.Intake.Queued = snap.AlertsQueued
	resp.Intake.Expired = snap.AlertsExpired
	resp.Intake.ActiveIncidents = snap.ActiveIncidents
	if s.Pipeline != nil {
		resp.Intake.QueueDepth = s.Pipeline.QueueDepth()
	}

	c.JSON(http.StatusOK, resp)
}

// configResponse is the sanitized, read-only view of the effective
// configuration. Anything that could be a credential is deliberately
// omitted, never masked — there is no field here to leak.
type configResponse struct {
	LLMModel             string   `json:"llm_model"`
	LLMAPIBaseURL        string   `json:"llm_api_base_url"`
	SREPromptPath        string   `json:"sre_prompt_path"`
	IncidentsDir         string   `json:"incidents_dir"`
	Services             []string `json:"services"`
	MaxConcurrentAlerts  int      `json:"max_concurrent_alerts"`
	AlertQueueTTLSeconds float64  `json:"alert_queue_ttl_seconds"`
	MaxTokensPerIncident int      `json:"max_tokens_per_incident"`
	MaxTokensPerHour     int      `json:"max_tokens_per_hour"`
}

// Config reports the effective, non-secret configuration.
func (s *Server) Config(c *gin.Context) {
	names := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		names = append(names, svc.Name)
	}

	c.JSON(http.StatusOK, configResponse{
		LLMModel:             s.LLMModel,
		LLMAPIBaseURL:        s.LLMAPIBaseURL,
		SREPromptPath:        s.SREPromptPath,
		IncidentsDir:         s.IncidentsDir,
		Services:             names,
		MaxConcurrentAlerts:  s.MaxConcurrentAlerts,
		AlertQueueTTLSeconds: s.AlertQueueTTL.Seconds(),
		MaxTokensPerIncident: s.MaxTokensPerIncident,
		MaxTokensPerHour:     s.MaxTokensPerHour,
	})
}

// Errors reports the bounded recent-errors ring.
func (s *Server) Errors(c *gin.Context) {
	snap := s.State.Snapshot()
	c.JSON(http.StatusOK, gin.H{"errors": snap.RecentErrors})
}

// Dependencies reports live reachability of each external dependency
// this agent calls out to.
func (s *Server) Dependencies(c *gin.Context) {
	if s.DependencyChecker == nil {
		c.JSON(http.StatusOK, gin.H{"dependencies": []DependencyStatus{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependencies": s.DependencyChecker.Check(c.Request.Context())})
}

// Drain flips the process into drain mode: webhook intake returns 503
// and the caller is expected to follow with a Pipeline.Shutdown once
// in-flight runs finish.
func (s *Server) Drain(c *gin.Context) {
	s.State.SetDraining(true)
	c.JSON(http.StatusOK, gin.H{"status": "draining"})
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SetLogLevel changes the process-wide slog level at runtime.
func (s *Server) SetLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level is required"})
		return
	}
	level, ok := levelNames[req.Level]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level: " + req.Level})
		return
	}
	if s.LogLevel == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "log level is not dynamically configurable"})
		return
	}
	s.LogLevel.Set(level)
	c.JSON(http.StatusOK, gin.H{"level": req.Level})
}
