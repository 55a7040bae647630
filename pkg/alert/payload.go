package alert

import (
	"fmt"
	"strings"
	"time"
)

// incidentEventTypes are the only incident-provider webhook event types
// that produce an Alert; everything else is ignored by the caller.
var incidentEventTypes = map[string]bool{
	"incident.triggered": true,
	"incident.escalated": true,
}

// IsIncidentEventType reports whether a V3 webhook event type should be
// turned into an Alert, as opposed to silently ignored.
func IsIncidentEventType(eventType string) bool {
	return incidentEventTypes[eventType]
}

var severityByUrgency = map[string]Severity{
	"critical": SeverityCritical,
	"high":     SeverityHigh,
	"warning":  SeverityWarning,
	"info":     SeverityInfo,
}

var priorityBySummary = map[string]Priority{
	"P1": PriorityP1,
	"P2": PriorityP2,
	"P3": PriorityP3,
	"P4": PriorityP4,
}

// FromIncidentPayload parses a V3 incident-provider webhook payload
// (nested under event.data) into an Alert. Mirrors the reference
// provider's from_webhook parsing rules field for field.
func FromIncidentPayload(payload map[string]any) (Alert, error) {
	event, _ := payload["event"].(map[string]any)
	data, _ := event["data"].(map[string]any)
	service, _ := data["service"].(map[string]any)
	priorityData, _ := data["priority"].(map[string]any)

	urgency, _ := data["urgency"].(string)
	severity, ok := severityByUrgency[urgency]
	if !ok {
		severity = SeverityHigh
	}

	var priority Priority
	if priorityData != nil {
		if summary, _ := priorityData["summary"].(string); summary != "" {
			priority = priorityBySummary[summary]
		}
	}

	incidentID, _ := data["id"].(string)
	if incidentID == "" {
		incidentID = "unknown"
	}
	serviceName, _ := service["summary"].(string)
	if serviceName == "" {
		serviceName = "unknown"
	}
	description, _ := data["title"].(string)
	if description == "" {
		if s, ok := data["summary"].(string); ok {
			description = s
		} else {
			description = "No description"
		}
	}
	dedupKey, _ := data["incident_key"].(string)

	body, _ := data["body"].(map[string]any)
	var runbookURL string
	var details map[string]any
	if body != nil {
		if d, ok := body["details"].(map[string]any); ok {
			details = d
			if u, ok := d["runbook_url"].(string); ok {
				runbookURL = u
			}
		}
	}
	if details == nil {
		details = map[string]any{}
	}

	createdAt, _ := data["created_at"].(string)
	ts := time.Now()
	if createdAt != "" {
		if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
			ts = parsed
		}
	}

	a := Alert{
		IncidentID:  incidentID,
		ServiceName: serviceName,
		Severity:    severity,
		Priority:    priority,
		Description: description,
		DedupKey:    dedupKey,
		RunbookURL:  runbookURL,
		Timestamp:   ts,
		Details:     details,
	}
	if err := a.Validate(); err != nil {
		return Alert{}, err
	}
	return a, nil
}

// FromGCPPayload parses a GCP Cloud Monitoring webhook payload into an
// Alert. The incident_id is prefixed "gcp-" since no corresponding
// incident exists on the provider side yet — escalation for these
// alerts must create one rather than note an existing incident.
func FromGCPPayload(payload map[string]any, services []ServiceEndpoint) (Alert, error) {
	incident, _ := payload["incident"].(map[string]any)
	resource, _ := incident["resource"].(map[string]any)
	resourceLabels, _ := resource["labels"].(map[string]any)

	state, _ := incident["state"].(string)
	severity := SeverityInfo
	if state == "open" {
		severity = SeverityCritical
	}

	host, _ := resourceLabels["host"].(string)
	serviceName := "unknown"
	if host != "" {
		for _, svc := range services {
			if strings.Contains(svc.BaseURL, host) {
				serviceName = svc.Name
				break
			}
		}
		if serviceName == "unknown" {
			serviceName = strings.SplitN(host, ".", 2)[0]
		}
	}

	priority := PriorityP3
	if severity == SeverityCritical {
		priority = PriorityP1
	}

	rawIncidentID, _ := incident["incident_id"].(string)
	if rawIncidentID == "" {
		rawIncidentID = "unknown"
	}

	description, _ := incident["summary"].(string)
	if description == "" {
		if c, ok := incident["condition_name"].(string); ok {
			description = c
		} else {
			description = "GCP alert"
		}
	}

	var ts time.Time
	if startedAt, ok := incident["started_at"].(float64); ok && startedAt > 0 {
		ts = time.Unix(int64(startedAt), 0)
	} else {
		ts = time.Now()
	}

	documentation, _ := incident["documentation"].(map[string]any)
	var docContent string
	if documentation != nil {
		docContent, _ = documentation["content"].(string)
	}

	details := map[string]any{
		"source":           "gcp_cloud_monitoring",
		"policy_name":      stringOr(incident["policy_name"]),
		"condition_name":   stringOr(incident["condition_name"]),
		"resource_type":    stringOr(resource["type"]),
		"resource_labels":  resourceLabels,
		"gcp_incident_url": stringOr(incident["url"]),
		"documentation":    docContent,
	}

	dedupKey, _ := incident["incident_id"].(string)

	a := Alert{
		IncidentID:  fmt.Sprintf("gcp-%s", rawIncidentID),
		ServiceName: serviceName,
		Severity:    severity,
		Priority:    priority,
		Description: description,
		DedupKey:    dedupKey,
		Timestamp:   ts,
		Details:     details,
	}
	if err := a.Validate(); err != nil {
		return Alert{}, err
	}
	return a, nil
}

func stringOr(v any) string {
	s, _ := v.(string)
	return s
}
