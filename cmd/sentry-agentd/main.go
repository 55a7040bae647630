// sentry-agentd is the on-call incident-response agent: it admits
// provider webhooks, triages each incident with a bounded LLM
// tool-calling loop, and exposes its own health over /ops/*.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onduty-run/sentry-agent/pkg/agentloop"
	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/config"
	"github.com/onduty-run/sentry-agent/pkg/intake"
	"github.com/onduty-run/sentry-agent/pkg/llmclient"
	"github.com/onduty-run/sentry-agent/pkg/ops"
	"github.com/onduty-run/sentry-agent/pkg/runbook"
	"github.com/onduty-run/sentry-agent/pkg/runtimestate"
	"github.com/onduty-run/sentry-agent/pkg/tools"
	"github.com/onduty-run/sentry-agent/pkg/version"
	"github.com/onduty-run/sentry-agent/pkg/webhook"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	httpPortFlag := flag.String("http-port", getEnv("HTTP_PORT", "8080"), "HTTP listen port")
	flag.Parse()

	levelVar := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)
	logger.Info("starting", "version", version.Full())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	state := runtimestate.New(prometheus.DefaultRegisterer)

	llmClient, err := buildLLMClient(cfg)
	if err != nil {
		log.Fatalf("failed to build LLM client: %v", err)
	}
	registry := tools.NewRegistry()
	runbookSvc := runbook.NewService(cfg.RunbookGitHubToken, cfg.RunbookCacheTTL, cfg.RunbookAllowedDomains)

	loopCfg := agentloop.Config{
		Model:           cfg.LLMModel,
		ModelEscalation: cfg.LLMModelEscalation,
		EscalationTurn:  cfg.LLMEscalationTurn,
		SystemPrompt:    loadSREPrompt(cfg.SREPromptPath, logger),
	}

	processFn := func(ctx context.Context, a alert.Alert, traceID string) {
		start := time.Now()

		executor := tools.NewExecutor(
			cfg.Services, cfg.ScalingLimits,
			cfg.OpsAuthToken, cfg.PagerDutyAPIToken, cfg.PagerDutyRoutingKey,
			cfg.IncidentsDir, traceID,
			tools.SMTPConfig{
				Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword, From: cfg.SMTPFrom, To: cfg.SMTPTo,
			},
			cfg.HTTPTimeout, logger,
		)

		runbookContent, err := runbookSvc.Resolve(ctx, a.RunbookURL)
		if err != nil {
			logger.Warn("could not fetch runbook content, proceeding without it", "incident_id", a.IncidentID, "error", err)
		}

		outcome, err := agentloop.ProcessAlert(
			ctx, loopCfg, llmClient, registry, executor, a, runbookContent,
			cfg.MaxTokensPerIncident,
			func() bool {
				return cfg.MaxTokensPerHour > 0 && state.TokensLastHour() >= cfg.MaxTokensPerHour
			},
			func(ctx context.Context, a alert.Alert) error {
				return escalateBudgetExhausted(ctx, registry, executor, a)
			},
			logger,
		)
		if err != nil {
			logger.Error("agent run failed", "incident_id", a.IncidentID, "trace_id", traceID, "error", err)
		}

		result := outcome.Result
		failed := err != nil
		var inputTokens, outputTokens int
		var cost float64
		if result != nil {
			inputTokens, outputTokens, cost = result.InputTokens, result.OutputTokens, result.EstimatedCostUSD
		}
		state.RecordRunCompletion(runtimestate.RunOutcome{
			Failed: failed, Duration: time.Since(start),
			InputTokens: inputTokens, OutputTokens: outputTokens, EstimatedCost: cost,
		})
	}

	pipeline := intake.New(intake.Config{MaxConcurrent: cfg.MaxConcurrentAlerts, QueueTTL: cfg.AlertQueueTTL}, processFn, state, logger)

	gin.SetMode(getEnv("GIN_MODE", "release"))
	router := gin.New()
	router.Use(gin.Recovery())

	webhookSrv := &webhook.Server{
		Pipeline:      pipeline,
		State:         state,
		Services:      cfg.Services,
		WebhookSecret: cfg.PagerDutyWebhookSecret,
		OpsAuthToken:  cfg.OpsAuthToken,
	}
	webhookSrv.RegisterRoutes(router)

	opsSrv := &ops.Server{
		State:                state,
		Pipeline:             pipeline,
		LogLevel:             levelVar,
		OpsAuthToken:         cfg.OpsAuthToken,
		LLMModel:             cfg.LLMModel,
		LLMAPIBaseURL:        cfg.LLMAPIBaseURL,
		SREPromptPath:        cfg.SREPromptPath,
		IncidentsDir:         cfg.IncidentsDir,
		PagerDutyPolicyID:    cfg.PagerDutyEscalationPolicyID,
		Services:             cfg.Services,
		MaxConcurrentAlerts:  cfg.MaxConcurrentAlerts,
		AlertQueueTTL:        cfg.AlertQueueTTL,
		MaxTokensPerIncident: cfg.MaxTokensPerIncident,
		MaxTokensPerHour:     cfg.MaxTokensPerHour,
		DependencyChecker: ops.NewHTTPDependencyChecker(map[string]string{
			"llm_api":   cfg.LLMAPIBaseURL,
			"pagerduty": "https://api.pagerduty.com",
		}),
	}
	opsSrv.RegisterRoutes(router)

	srv := &http.Server{Addr: ":" + *httpPortFlag, Handler: router}

	go func() {
		logger.Info("sentry-agentd listening", "port", *httpPortFlag)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	shutdownSignal := make(chan os.Signal, 1)
	signal.Notify(shutdownSignal, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownSignal

	logger.Info("shutdown requested, draining")
	state.SetDraining(true)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	pipeline.Shutdown()
	logger.Info("shutdown complete")
}

func buildLLMClient(cfg *config.Config) (llmclient.Client, error) {
	var openaiBackend llmclient.Client
	if cfg.IsVertexAI() {
		ts, err := llmclient.NewVertexTokenSource()
		if err != nil {
			return nil, err
		}
		openaiBackend = llmclient.NewOpenAIClient(cfg.LLMAPIBaseURL, "", ts)
	} else {
		openaiBackend = llmclient.NewOpenAIClient(cfg.LLMAPIBaseURL, cfg.LLMAPIKey, nil)
	}

	var anthropicBackend llmclient.Client
	if cfg.AnthropicAPIKey != "" {
		anthropicBackend = llmclient.NewAnthropicClient(cfg.AnthropicAPIKey)
	}

	return llmclient.NewRouter(anthropicBackend, openaiBackend), nil
}

func loadSREPrompt(path string, logger *slog.Logger) string {
	b, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("could not read SRE prompt file, falling back to a minimal default", "path", path, "error", err)
		return "You are an on-call SRE agent. Diagnose and resolve the incident using the available tools."
	}
	return string(b)
}

// escalateBudgetExhausted posts a note and raises the PagerDuty
// escalation level without spending any LLM tokens, matching the
// reference runtime's behavior when the hourly token budget trips
// before a run ever starts. For a gcp-sourced incident the
// escalate_pagerduty tool creates a new PagerDuty incident instead.
func escalateBudgetExhausted(ctx context.Context, registry *tools.Registry, executor *tools.Executor, a alert.Alert) error {
	result := registry.Execute(ctx, executor, tools.Call{
		Name: "escalate_pagerduty",
		Input: map[string]any{
			"incident_id": a.IncidentID,
			"message":     "Hourly LLM token budget exhausted; escalating without agent triage.",
		},
	})
	if result.IsError {
		return fmt.Errorf("escalate_pagerduty: %s", result.Content)
	}
	return nil
}
