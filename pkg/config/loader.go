package config

import (
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// envOverrides mirrors Config's shape but only carries values parsed
// from environment variables that were actually set, so zero values
// mean "not overridden" for mergo.WithOverride.
type envOverrides struct {
	Config
	ttlSet        bool
	perIncSet     bool
	perHourSet    bool
	escalationSet bool
	runbookTTLSet bool
}

// Load reads .env (if present), then the process environment, merges
// the result onto Defaults(), and validates the outcome. This is the
// primary entry point — callers outside this package should not call
// parseEnv/Defaults/Validate individually.
func Load() (*Config, error) {
	_ = godotenv.Load()

	overrides, err := parseEnv()
	if err != nil {
		return nil, err
	}

	cfg := Defaults()
	if err := mergo.Merge(&cfg, overrides.Config, mergo.WithOverride); err != nil {
		return nil, NewLoadError("environment", err)
	}

	// mergo treats a parsed-but-zero int as "unset" and leaves the
	// default in place. Alert queue TTL and the two token budgets are
	// all validly zero, so apply them directly when present.
	if overrides.ttlSet {
		cfg.AlertQueueTTL = overrides.Config.AlertQueueTTL
	}
	if overrides.perIncSet {
		cfg.MaxTokensPerIncident = overrides.Config.MaxTokensPerIncident
	}
	if overrides.perHourSet {
		cfg.MaxTokensPerHour = overrides.Config.MaxTokensPerHour
	}
	if overrides.escalationSet {
		cfg.LLMEscalationTurn = overrides.Config.LLMEscalationTurn
	}
	if overrides.runbookTTLSet {
		cfg.RunbookCacheTTL = overrides.Config.RunbookCacheTTL
	}

	v := Validator{cfg: &cfg}
	if err := v.ValidateAll(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseEnv() (envOverrides, error) {
	var o envOverrides

	o.LLMAPIBaseURL = os.Getenv("LLM_API_BASE_URL")
	o.LLMAPIKey = os.Getenv("LLM_API_KEY")
	o.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	o.LLMModel = os.Getenv("LLM_MODEL")
	o.LLMModelEscalation = os.Getenv("LLM_MODEL_ESCALATION")

	if raw, ok := os.LookupEnv("LLM_ESCALATION_TURN"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("LLM_ESCALATION_TURN", err)
		}
		o.LLMEscalationTurn = n
		o.escalationSet = true
	}

	o.PagerDutyAPIToken = os.Getenv("PAGERDUTY_API_TOKEN")
	o.PagerDutyEscalationPolicyID = os.Getenv("PAGERDUTY_ESCALATION_POLICY_ID")
	o.PagerDutyRoutingKey = os.Getenv("PAGERDUTY_ROUTING_KEY")
	o.PagerDutyWebhookSecret = os.Getenv("PAGERDUTY_WEBHOOK_SECRET")

	o.SREPromptPath = os.Getenv("SRE_PROMPT_PATH")
	o.IncidentsDir = os.Getenv("INCIDENTS_DIR")

	if raw, ok := os.LookupEnv("SERVICE_REGISTRY"); ok {
		services, err := parseServices(raw)
		if err != nil {
			return o, err
		}
		o.Services = services
	}

	if raw, ok := os.LookupEnv("SCALING_LIMITS"); ok {
		limits, err := parseScalingLimits(raw)
		if err != nil {
			return o, err
		}
		o.ScalingLimits = limits
	}

	if raw, ok := os.LookupEnv("MAX_CONCURRENT_ALERTS"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("MAX_CONCURRENT_ALERTS", err)
		}
		o.MaxConcurrentAlerts = n
	}

	if raw, ok := os.LookupEnv("ALERT_QUEUE_TTL_SECONDS"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("ALERT_QUEUE_TTL_SECONDS", err)
		}
		o.AlertQueueTTL = time.Duration(n) * time.Second
		o.ttlSet = true
	}

	if raw, ok := os.LookupEnv("MAX_TOKENS_PER_INCIDENT"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("MAX_TOKENS_PER_INCIDENT", err)
		}
		o.MaxTokensPerIncident = n
		o.perIncSet = true
	}

	if raw, ok := os.LookupEnv("MAX_TOKENS_PER_HOUR"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("MAX_TOKENS_PER_HOUR", err)
		}
		o.MaxTokensPerHour = n
		o.perHourSet = true
	}

	o.SMTPHost = os.Getenv("SMTP_HOST")
	if raw, ok := os.LookupEnv("SMTP_PORT"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("SMTP_PORT", err)
		}
		o.SMTPPort = n
	}
	o.SMTPUsername = os.Getenv("SMTP_USERNAME")
	o.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	o.SMTPFrom = os.Getenv("SMTP_FROM")
	if o.SMTPFrom == "" {
		o.SMTPFrom = o.SMTPUsername
	}
	o.SMTPTo = os.Getenv("SMTP_TO")

	o.OpsAuthToken = os.Getenv("OPS_AUTH_TOKEN")

	o.RunbookGitHubToken = os.Getenv("RUNBOOK_GITHUB_TOKEN")
	if raw, ok := os.LookupEnv("RUNBOOK_ALLOWED_DOMAINS"); ok {
		o.RunbookAllowedDomains = splitNonEmpty(raw, ",")
	}
	if raw, ok := os.LookupEnv("RUNBOOK_CACHE_TTL_SECONDS"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return o, NewLoadError("RUNBOOK_CACHE_TTL_SECONDS", err)
		}
		o.RunbookCacheTTL = time.Duration(n) * time.Second
		o.runbookTTLSet = true
	}

	return o, nil
}

