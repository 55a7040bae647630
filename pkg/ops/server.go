// Package ops implements the operator-facing observability surface:
// read-only status/metrics/config/errors/dependencies endpoints, plus
// authenticated drain and log-level control, plus a Prometheus
// exposition endpoint additive to the JSON surface.
package ops

import (
	"crypto/hmac"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/intake"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
)

// Server holds everything the /ops/* handlers need.
type Server struct {
	State        *runtimestate.State
	Pipeline     *intake.Pipeline
	LogLevel     *slog.LevelVar
	OpsAuthToken string

	LLMModel             string
	LLMAPIBaseURL        string
	SREPromptPath        string
	IncidentsDir         string
	WebhookSigVerified   bool
	PagerDutyPolicyID    string
	Services             []alert.ServiceEndpoint
	MaxConcurrentAlerts  int
	AlertQueueTTL        time.Duration
	MaxTokensPerIncident int
	MaxTokensPerHour     int

	DependencyChecker DependencyChecker
}

// RegisterRoutes attaches every /ops/* endpoint to r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/ops/status", s.Status)
	r.GET("/ops/metrics", s.Metrics)
	r.GET("/ops/config", s.Config)
	r.GET("/ops/errors", s.Errors)
	r.GET("/ops/dependencies", s.Dependencies)
	r.GET("/ops/prometheus", gin.WrapH(promhttp.Handler()))
	r.POST("/ops/drain", s.requireAuth, s.Drain)
	r.POST("/ops/loglevel", s.requireAuth, s.SetLogLevel)
}

// requireAuth enforces bearer-token auth on the two mutating endpoints.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
		return
	}
	const prefix = "Bearer "
	token := header
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		token = header[len(prefix):]
	}
	if !hmac.Equal([]byte(token), []byte(s.OpsAuthToken)) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid auth token"})
		return
	}
	c.Next()
}
