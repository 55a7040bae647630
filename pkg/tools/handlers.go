package tools

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"

	"github.com/onduty-run/sentry-agent/pkg/masking"
)

func stringField(input map[string]any, key string) string {
	v, _ := input[key].(string)
	return v
}

func intField(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func toJSON(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// handleCallOpsEndpoint implements call_ops_endpoint: proxies a GET or
// POST to a registered service's /ops/* surface with a bearer token.
func handleCallOpsEndpoint(ctx context.Context, e *Executor, input map[string]any) (string, error) {
	serviceName := stringField(input, "service_name")
	endpoint := stringField(input, "endpoint")
	method := strings.ToUpper(stringField(input, "method"))

	if serviceName == "" || endpoint == "" {
		return "", fmt.Errorf("service_name and endpoint are required")
	}
	if !strings.HasPrefix(endpoint, "/ops/") {
		return "", fmt.Errorf("endpoint must start with /ops/")
	}
	if method != http.MethodGet && method != http.MethodPost {
		return "", fmt.Errorf("method must be GET or POST")
	}
	svc, ok := e.Services[serviceName]
	if !ok {
		return "", fmt.Errorf("unknown service: %s", serviceName)
	}

	req, err := http.NewRequestWithContext(ctx, method, svc.BaseURL+endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.OpsAuthToken)

	resp, err := e.doHTTP(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	result := map[string]any{"status_code": resp.StatusCode}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if json.Unmarshal(body, &parsed) == nil {
			result["body"] = parsed
		} else {
			result["body"] = string(body)
		}
	} else {
		result["body"] = string(body)
	}
	b, err := json.Marshal(result)
	return masking.Redact(string(b)), err
}

// handleQueryCloudLogs implements query_cloud_logs, which the
// reference runtime ships as a stub awaiting a cloud-logging backend.
func handleQueryCloudLogs(_ context.Context, _ *Executor, _ map[string]any) (string, error) {
	return "", fmt.Errorf("query_cloud_logs is not yet implemented")
}

// handleQueryCloudMetrics implements query_cloud_metrics, also a stub.
func handleQueryCloudMetrics(_ context.Context, _ *Executor, _ map[string]any) (string, error) {
	return "", fmt.Errorf("query_cloud_metrics is not yet implemented")
}

// handleEscalatePagerDuty implements escalate_pagerduty: it posts the
// message as a note and sets escalation_level to 2 (a fixed level, not
// the incident's current level plus one). For a gcp-sourced incident
// (no corresponding PagerDuty incident yet) it delegates to
// create_pagerduty_incident instead.
func handleEscalatePagerDuty(ctx context.Context, e *Executor, input map[string]any) (string, error) {
	incidentID := stringField(input, "incident_id")
	message := stringField(input, "message")
	if incidentID == "" || message == "" {
		return "", fmt.Errorf("incident_id and message are required")
	}

	if strings.HasPrefix(incidentID, "gcp-") {
		summary := message
		if len(summary) > 200 {
			summary = summary[:200]
		}
		return handleCreatePagerDutyIncident(ctx, e, map[string]any{
			"summary":  fmt.Sprintf("[SRE Agent Escalation] %s", summary),
			"severity": "critical",
			"details":  message,
		})
	}

	if err := postPagerDutyNote(ctx, e, incidentID, message); err != nil {
		return "", err
	}
	if err := putPagerDutyField(ctx, e, incidentID, map[string]any{"escalation_level": 2}); err != nil {
		return "", err
	}
	return toJSON(map[string]any{"status": "escalated", "incident_id": incidentID})
}

// handleAcknowledgeAlert implements acknowledge_alert. A gcp-sourced
// incident has no PagerDuty-side record to acknowledge, so it is
// logged only.
func handleAcknowledgeAlert(ctx context.Context, e *Executor, input map[string]any) (string, error) {
	incidentID := stringField(input, "incident_id")
	note := stringField(input, "note")
	if incidentID == "" || note == "" {
		return "", fmt.Errorf("incident_id and note are required")
	}

	if strings.HasPrefix(incidentID, "gcp-") {
		e.logger.Info("acknowledged gcp-sourced incident (logged only)", "incident_id", incidentID, "note", note)
		return toJSON(map[string]any{"status": "resolved_by_agent", "incident_id": incidentID})
	}

	if err := postPagerDutyNote(ctx, e, incidentID, note); err != nil {
		return "", err
	}
	if err := putPagerDutyField(ctx, e, incidentID, map[string]any{"status": "acknowledged"}); err != nil {
		return "", err
	}
	return toJSON(map[string]any{"status": "acknowledged", "incident_id": incidentID})
}

// handleCreatePagerDutyIncident implements create_pagerduty_incident
// via the Events v2 enqueue API.
func handleCreatePagerDutyIncident(ctx context.Context, e *Executor, input map[string]any) (string, error) {
	summary := stringField(input, "summary")
	if summary == "" {
		return "", fmt.Errorf("summary is required")
	}
	if e.PagerDutyRoutingKey == "" {
		return "", fmt.Errorf("pagerduty routing key is not configured")
	}
	severity := stringField(input, "severity")
	if severity == "" {
		severity = "critical"
	}

	payload := map[string]any{
		"routing_key":  e.PagerDutyRoutingKey,
		"event_action": "trigger",
		"dedup_key":    fmt.Sprintf("sre-agent-%s", e.TraceID),
		"payload": map[string]any{
			"summary":  summary,
			"severity": severity,
			"source":   "sre-agent",
			"custom_details": map[string]any{
				"agent_trace_id":    e.TraceID,
				"diagnostic_details": stringField(input, "details"),
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.PagerDutyEventsURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.doHTTP(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pagerduty events API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return toJSON(map[string]any{"status": "triggered", "dedup_key": fmt.Sprintf("sre-agent-%s", e.TraceID)})
}

// handleWriteIncidentReport implements write_incident_report, writing
// Markdown to the incidents directory. Rejects any filename that is
// not already a bare basename — the reference's path-traversal guard.
func handleWriteIncidentReport(_ context.Context, e *Executor, input map[string]any) (string, error) {
	filename := stringField(input, "filename")
	content := stringField(input, "content")
	if filename == "" || content == "" {
		return "", fmt.Errorf("filename and content are required")
	}

	safeName := filepath.Base(filename)
	if safeName != filename {
		return "", fmt.Errorf("filename must not contain path separators")
	}

	path := filepath.Join(e.IncidentsDir, safeName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	e.logger.Info("wrote incident report", "path", path, "content", masking.Redact(content))
	return toJSON(map[string]any{"status": "written", "path": path})
}

// handleEmailIncidentReport implements email_incident_report via SMTP
// with STARTTLS.
func handleEmailIncidentReport(_ context.Context, e *Executor, input map[string]any) (string, error) {
	subject := stringField(input, "subject")
	content := stringField(input, "content")
	if subject == "" || content == "" {
		return "", fmt.Errorf("subject and content are required")
	}
	if !e.SMTP.configured() {
		return "", fmt.Errorf("smtp is not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.SMTP.Host, e.SMTP.Port)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", e.SMTP.From, e.SMTP.To, subject, content)

	var auth smtp.Auth
	if e.SMTP.Username != "" {
		auth = smtp.PlainAuth("", e.SMTP.Username, e.SMTP.Password, e.SMTP.Host)
	}

	if err := sendMailSTARTTLS(addr, e.SMTP.Host, auth, e.SMTP.From, []string{e.SMTP.To}, []byte(msg)); err != nil {
		return "", err
	}
	return toJSON(map[string]any{"status": "sent", "subject": subject})
}

func sendMailSTARTTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// handleScaleService implements scale_service: validates the target
// instance count against the service's configured bounds, then logs
// the scaling action (the reference runtime does not actually call a
// cloud scaling API — it records intent for the operator).
func handleScaleService(_ context.Context, e *Executor, input map[string]any) (string, error) {
	serviceName := stringField(input, "service_name")
	reason := stringField(input, "reason")
	target, hasTarget := intField(input, "target")
	if serviceName == "" || reason == "" || !hasTarget {
		return "", fmt.Errorf("service_name, target, and reason are required")
	}

	limits, ok := e.ScalingLimits[serviceName]
	if !ok {
		return "", fmt.Errorf("no scaling configuration for service: %s", serviceName)
	}
	if target < limits.MinInstances || target > limits.MaxInstances {
		return "", fmt.Errorf("target %d is outside allowed range [%d, %d] for %s", target, limits.MinInstances, limits.MaxInstances, serviceName)
	}

	e.logger.Info("scaling service",
		"service_name", serviceName, "target", target, "mode", limits.Mode, "reason", reason)
	return toJSON(map[string]any{"status": "scaled", "service_name": serviceName, "target": target, "mode": string(limits.Mode)})
}

func postPagerDutyNote(ctx context.Context, e *Executor, incidentID, note string) error {
	body, err := json.Marshal(map[string]any{"note": map[string]string{"content": note}})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/incidents/%s/notes", e.PagerDutyAPIBaseURL, incidentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%s", e.PagerDutyAPIToken))

	resp, err := e.doHTTP(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pagerduty notes API returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func putPagerDutyField(ctx context.Context, e *Executor, incidentID string, fields map[string]any) error {
	body, err := json.Marshal(map[string]any{"incident": fields})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/incidents/%s", e.PagerDutyAPIBaseURL, incidentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Token token=%s", e.PagerDutyAPIToken))

	resp, err := e.doHTTP(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pagerduty incidents API returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
