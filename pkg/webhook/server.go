// Package webhook implements the two inbound admission endpoints:
// the incident-provider V3 webhook and the GCP Cloud Monitoring
// webhook. Both parse their payload into a canonical alert.Alert and
// hand it to the intake pipeline; neither runs the agent loop
// directly.
package webhook

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/intake"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
)

// Server holds everything the two webhook handlers need.
type Server struct {
	Pipeline        *intake.Pipeline
	State           *runtimestate.State
	Services        []alert.ServiceEndpoint
	WebhookSecret   string
	OpsAuthToken    string
}

// RegisterRoutes attaches the webhook handlers to r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook", s.ReceiveWebhook)
	r.POST("/webhook/gcp", s.ReceiveGCPWebhook)
}

// ReceiveWebhook handles the incident-provider V3 webhook.
func (s *Server) ReceiveWebhook(c *gin.Context) {
	traceID := uuid.NewString()
	s.State.IncWebhooksReceived()

	if s.State.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining", "trace_id": traceID})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.recordFailure("body_read_error", err.Error(), "", traceID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	if s.WebhookSecret != "" {
		if !VerifySignature(s.WebhookSecret, body, c.GetHeader("X-Signature")) {
			s.recordFailure("signature_verification_error", "signature mismatch", "", traceID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		s.recordFailure("payload_parse_error", err.Error(), "", traceID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	event, _ := payload["event"].(map[string]any)
	eventType, _ := event["event_type"].(string)
	if !alert.IsIncidentEventType(eventType) {
		s.State.IncWebhooksIgnored()
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "event_type": eventType})
		return
	}

	a, err := alert.FromIncidentPayload(payload)
	if err != nil {
		s.recordFailure("payload_parse_error", err.Error(), "", traceID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.State.IncWebhooksProcessed()
	disposition := s.Pipeline.Submit(a, traceID)
	c.JSON(http.StatusOK, gin.H{
		"status":      string(disposition),
		"incident_id": a.IncidentID,
		"trace_id":    traceID,
	})
}

// ReceiveGCPWebhook handles the GCP Cloud Monitoring webhook.
func (s *Server) ReceiveGCPWebhook(c *gin.Context) {
	traceID := uuid.NewString()
	s.State.IncWebhooksReceived()

	authToken := c.Query("auth_token")
	if !hmac.Equal([]byte(authToken), []byte(s.OpsAuthToken)) {
		s.recordFailure("auth_error", "invalid or missing auth_token", "", traceID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid auth_token"})
		return
	}

	if s.State.IsDraining() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "draining", "trace_id": traceID})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		s.recordFailure("gcp_payload_parse_error", err.Error(), "", traceID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	incident, _ := payload["incident"].(map[string]any)
	state, _ := incident["state"].(string)
	if state != "open" {
		s.State.IncWebhooksIgnored()
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "state": state})
		return
	}

	a, err := alert.FromGCPPayload(payload, s.Services)
	if err != nil {
		s.recordFailure("gcp_payload_parse_error", err.Error(), "", traceID)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.State.IncWebhooksProcessed()
	disposition := s.Pipeline.Submit(a, traceID)
	c.JSON(http.StatusOK, gin.H{
		"status":      string(disposition),
		"incident_id": a.IncidentID,
		"trace_id":    traceID,
	})
}

func (s *Server) recordFailure(errType, message, incidentID, traceID string) {
	s.State.IncWebhooksFailed()
	s.State.RecordError(runtimestate.ErrorRecord{
		Type:       errType,
		Message:    message,
		IncidentID: incidentID,
		TraceID:    traceID,
	})
}
