package config

import "time"

// Defaults returns the compiled-in configuration defaults. Load merges
// environment overrides onto a copy of this with mergo.WithOverride,
// so unset env vars fall back to exactly these values.
func Defaults() Config {
	return Config{
		LLMAPIBaseURL:        "https://models.inference.ai.azure.com",
		LLMModel:             "gpt-4o",
		LLMModelEscalation:   "",
		LLMEscalationTurn:    5,
		SREPromptPath:        "/app/WINDSURF_SRE.md",
		IncidentsDir:         "/app/incidents",
		MaxConcurrentAlerts:  3,
		AlertQueueTTL:        600 * time.Second,
		MaxTokensPerIncident: 100000,
		MaxTokensPerHour:     0,
		HTTPTimeout:          30 * time.Second,
		RunbookCacheTTL:      5 * time.Minute,
	}
}
