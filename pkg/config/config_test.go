package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LLM_API_KEY", "llm-key")
	t.Setenv("PAGERDUTY_API_TOKEN", "pd-token")
	t.Setenv("OPS_AUTH_TOKEN", "ops-token")
	t.Setenv("SERVICE_REGISTRY", "api|https://api.internal|true,worker|https://worker.internal")
}

func TestLoadAppliesDefaultsWhenUnset(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 600*time.Second, cfg.AlertQueueTTL)
	assert.Equal(t, 3, cfg.MaxConcurrentAlerts)
	assert.Equal(t, 100000, cfg.MaxTokensPerIncident)
	assert.Equal(t, 0, cfg.MaxTokensPerHour)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_MODEL", "gemini-2.5-pro")
	t.Setenv("MAX_CONCURRENT_ALERTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLMModel)
	assert.Equal(t, 5, cfg.MaxConcurrentAlerts)
}

func TestLoadHonorsZeroQueueTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALERT_QUEUE_TTL_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.AlertQueueTTL)
}

func TestLoadHonorsZeroHourlyBudget(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_TOKENS_PER_HOUR", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.MaxTokensPerHour)
}

func TestLoadParsesRunbookSettings(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.RunbookCacheTTL)
	assert.Empty(t, cfg.RunbookAllowedDomains)

	t.Setenv("RUNBOOK_GITHUB_TOKEN", "gh-token")
	t.Setenv("RUNBOOK_ALLOWED_DOMAINS", "github.com, raw.githubusercontent.com")
	t.Setenv("RUNBOOK_CACHE_TTL_SECONDS", "120")

	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "gh-token", cfg.RunbookGitHubToken)
	assert.Equal(t, []string{"github.com", "raw.githubusercontent.com"}, cfg.RunbookAllowedDomains)
	assert.Equal(t, 120*time.Second, cfg.RunbookCacheTTL)
}

func TestLoadMissingLLMAPIKeyFailsUnlessVertex(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_API_KEY", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("LLM_API_BASE_URL", "https://us-central1-aiplatform.googleapis.com/v1/openapi")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsVertexAI())
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	t.Setenv("OPS_AUTH_TOKEN", "ops-token")
	t.Setenv("SERVICE_REGISTRY", "api|https://api.internal")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnregisteredScalingService(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SCALING_LIMITS", "unknown-svc|1|5|application")
	_, err := Load()
	require.Error(t, err)
}

func TestParseServicesGrammar(t *testing.T) {
	services, err := parseServices("api|https://api.internal|true,worker|https://worker.internal|false")
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.True(t, services[0].Critical)
	assert.False(t, services[1].Critical)
}

func TestParseServicesRejectsNonHTTPScheme(t *testing.T) {
	_, err := parseServices("api|ftp://api.internal")
	require.Error(t, err)
}

func TestParseScalingLimitsGrammar(t *testing.T) {
	limits, err := parseScalingLimits("api|2|10|application")
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, 2, limits[0].MinInstances)
	assert.Equal(t, 10, limits[0].MaxInstances)
}

func TestParseScalingLimitsRejectsMaxBelowMin(t *testing.T) {
	_, err := parseScalingLimits("api|10|2|application")
	require.Error(t, err)
}

func TestIsVertexAI(t *testing.T) {
	cfg := Config{LLMAPIBaseURL: "https://us-central1-aiplatform.googleapis.com/v1"}
	assert.True(t, cfg.IsVertexAI())
	cfg.LLMAPIBaseURL = "https://models.inference.ai.azure.com"
	assert.False(t, cfg.IsVertexAI())
}
