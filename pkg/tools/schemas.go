package tools

// schemas holds each tool's JSON Schema input definition, ported from
// the reference runtime's TOOL_DEFINITIONS. Compiled once at registry
// construction and validated against on every call.
var schemas = map[string]string{
	"call_ops_endpoint": `{
		"type": "object",
		"properties": {
			"service_name": {"type": "string", "description": "Registered service to call"},
			"endpoint": {"type": "string", "description": "Path under /ops/, e.g. /ops/status"},
			"method": {"type": "string", "enum": ["GET", "POST"]}
		},
		"required": ["service_name", "endpoint", "method"]
	}`,
	"query_cloud_logs": `{
		"type": "object",
		"properties": {
			"service_name": {"type": "string"},
			"query": {"type": "string"},
			"time_range_minutes": {"type": "integer"}
		},
		"required": ["service_name", "query"]
	}`,
	"query_cloud_metrics": `{
		"type": "object",
		"properties": {
			"service_name": {"type": "string"},
			"metric_name": {"type": "string"},
			"time_range_minutes": {"type": "integer"}
		},
		"required": ["service_name", "metric_name"]
	}`,
	"escalate_pagerduty": `{
		"type": "object",
		"properties": {
			"incident_id": {"type": "string"},
			"message": {"type": "string"}
		},
		"required": ["incident_id", "message"]
	}`,
	"acknowledge_alert": `{
		"type": "object",
		"properties": {
			"incident_id": {"type": "string"},
			"note": {"type": "string"}
		},
		"required": ["incident_id", "note"]
	}`,
	"create_pagerduty_incident": `{
		"type": "object",
		"properties": {
			"summary": {"type": "string"},
			"severity": {"type": "string", "enum": ["critical", "error", "warning", "info"]},
			"details": {"type": "string"}
		},
		"required": ["summary"]
	}`,
	"write_incident_report": `{
		"type": "object",
		"properties": {
			"filename": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["filename", "content"]
	}`,
	"email_incident_report": `{
		"type": "object",
		"properties": {
			"subject": {"type": "string"},
			"content": {"type": "string"}
		},
		"required": ["subject", "content"]
	}`,
	"scale_service": `{
		"type": "object",
		"properties": {
			"service_name": {"type": "string"},
			"target": {"type": "integer"},
			"reason": {"type": "string"}
		},
		"required": ["service_name", "target", "reason"]
	}`,
}

// descriptions are surfaced to the LLM alongside each schema when
// converting the registry to a provider's tool-definition format.
var descriptions = map[string]string{
	"call_ops_endpoint":         "Call a GET or POST /ops/* endpoint on a registered service.",
	"query_cloud_logs":          "Query cloud logs for a service (not yet implemented).",
	"query_cloud_metrics":       "Query cloud metrics for a service (not yet implemented).",
	"escalate_pagerduty":        "Escalate a PagerDuty incident by setting its escalation level to 2, with a note.",
	"acknowledge_alert":         "Acknowledge a PagerDuty incident with a resolution note.",
	"create_pagerduty_incident": "Create a new PagerDuty incident via the Events v2 API.",
	"write_incident_report":     "Write a Markdown incident report to the incidents directory.",
	"email_incident_report":     "Email an incident report via SMTP.",
	"scale_service":             "Scale a registered service to a target instance count, bounded by its configured min/max.",
}
