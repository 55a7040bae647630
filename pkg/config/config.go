// Package config loads and validates the agent's process configuration
// purely from the environment, following the reference runtime's
// env-var surface exactly (names, defaults, and grammars), while
// keeping the teacher's loader/validator/defaults/errors split.
package config

import (
	"strings"
	"time"

	"github.com/onduty-run/sentry-agent/pkg/alert"
)

// Config is the fully loaded, validated process configuration.
type Config struct {
	LLMAPIBaseURL      string
	LLMAPIKey          string
	LLMModel           string
	LLMModelEscalation string
	LLMEscalationTurn  int

	// AnthropicAPIKey enables routing "claude-*" models (primarily the
	// escalation model) to the Anthropic backend instead of the
	// default OpenAI-compatible one. Optional: cross-provider
	// escalation is unused if this is empty.
	AnthropicAPIKey string

	PagerDutyAPIToken           string
	PagerDutyEscalationPolicyID string
	PagerDutyRoutingKey         string
	PagerDutyWebhookSecret      string

	SREPromptPath string
	IncidentsDir  string

	Services      []alert.ServiceEndpoint
	ScalingLimits []alert.ScalingConfig

	MaxConcurrentAlerts  int
	AlertQueueTTL        time.Duration
	MaxTokensPerIncident int
	MaxTokensPerHour     int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTo       string

	OpsAuthToken string

	// HTTPTimeout bounds the generic outbound tool HTTP client (domain
	// stack addition — spec §6 names individual per-call timeouts but
	// not a shared default; SPEC_FULL §3 centralizes them here).
	HTTPTimeout time.Duration

	// RunbookGitHubToken authenticates runbook_url fetches against
	// GitHub's API; empty means public-repo-only, lower rate limits.
	RunbookGitHubToken string
	// RunbookAllowedDomains restricts which hosts a runbook_url may
	// point at; empty disables the allowlist check.
	RunbookAllowedDomains []string
	// RunbookCacheTTL bounds how long fetched runbook content is reused
	// before being re-fetched.
	RunbookCacheTTL time.Duration
}

// IsVertexAI reports whether the configured LLM endpoint is a Google
// Vertex AI endpoint, which needs ADC token refresh rather than a
// static API key.
func (c Config) IsVertexAI() bool {
	return strings.Contains(c.LLMAPIBaseURL, "aiplatform.googleapis.com")
}

// SMTPConfigured reports whether enough SMTP settings are present to
// attempt sending email incident reports.
func (c Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPTo != ""
}

// ScalingFor looks up the scaling limits for a service by name.
func (c Config) ScalingFor(serviceName string) (alert.ScalingConfig, bool) {
	for _, sc := range c.ScalingLimits {
		if sc.ServiceName == serviceName {
			return sc, true
		}
	}
	return alert.ScalingConfig{}, false
}

// ServiceByName looks up a registered service endpoint by name.
func (c Config) ServiceByName(name string) (alert.ServiceEndpoint, bool) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return alert.ServiceEndpoint{}, false
}
