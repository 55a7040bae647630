package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/intake"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
)

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	state := runtimestate.New(prometheus.NewRegistry())
	pipeline := intake.New(intake.Config{MaxConcurrent: 3, QueueTTL: 0}, func(context.Context, alert.Alert, string) {}, state, nil)

	srv := &Server{Pipeline: pipeline, State: state, OpsAuthToken: "ops-token"}
	r := gin.New()
	srv.RegisterRoutes(r)
	return srv, r
}

func TestReceiveWebhookIgnoresNonIncidentEvents(t *testing.T) {
	_, r := newTestServer(t)
	body := map[string]any{"event": map[string]any{"event_type": "incident.resolved"}}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestReceiveWebhookDispatchesTriggeredIncident(t *testing.T) {
	_, r := newTestServer(t)
	body := map[string]any{
		"event": map[string]any{
			"event_type": "incident.triggered",
			"data": map[string]any{
				"id":      "inc-42",
				"urgency": "high",
				"service": map[string]any{"summary": "api"},
				"title":   "disk full",
			},
		},
	}
	b, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dispatched")
	assert.Contains(t, w.Body.String(), "inc-42")
}

func TestReceiveWebhookRejectsBadSignature(t *testing.T) {
	srv, r := newTestServer(t)
	srv.WebhookSecret = "shh"
	b := []byte(`{"event":{"event_type":"incident.triggered"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(b))
	req.Header.Set("X-Signature", "v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReceiveGCPWebhookRequiresAuthToken(t *testing.T) {
	_, r := newTestServer(t)
	b := []byte(`{"incident":{"state":"open"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gcp?auth_token=wrong", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReceiveGCPWebhookIgnoresNonOpenState(t *testing.T) {
	_, r := newTestServer(t)
	b := []byte(`{"incident":{"state":"closed"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gcp?auth_token=ops-token", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}

func TestReceiveGCPWebhookDispatchesOpenIncident(t *testing.T) {
	_, r := newTestServer(t)
	b := []byte(`{"incident":{"incident_id":"abc123","state":"open","resource":{"type":"gce_instance","labels":{"host":"svc.example.com"}}}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gcp?auth_token=ops-token", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gcp-abc123")
}

func TestServerDrainingReturns503(t *testing.T) {
	srv, r := newTestServer(t)
	srv.State.SetDraining(true)
	b := []byte(`{"event":{"event_type":"incident.triggered"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(b))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
