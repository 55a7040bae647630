package agentloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/llmclient"
	"github.com/onduty-run/sentry-agent/pkg/tools"
)

// BudgetCheck reports whether the rolling one-hour token budget is
// already exhausted. Implemented by runtimestate.State.TokensLastHour
// compared against the configured ceiling at the call site.
type BudgetCheck func() bool

// EscalateExhausted is invoked in place of running the agent when the
// hourly budget gate trips — it must still resolve the incident
// somehow, matching main.py's _escalate_budget_exhausted (post a note,
// raise the provider's escalation_level). The implementation in
// cmd/sentry-agentd uses the escalate_pagerduty tool, which for a
// gcp-sourced incident creates a new provider incident instead.
type EscalateExhausted func(ctx context.Context, a alert.Alert) error

// Outcome wraps Result with the budget-exhaustion branch, since that
// branch counts as a completed run (not a failure) but produces no
// Result worth recording token/cost statistics for.
type Outcome struct {
	Result           *Result
	BudgetExhausted  bool
	Duration         time.Duration
}

// ProcessAlert is the per-incident entry point the intake pipeline's
// ProcessFunc calls: it pre-checks the hourly budget before spending
// anything on an LLM call, then runs the turn loop.
func ProcessAlert(
	ctx context.Context,
	cfg Config,
	client llmclient.Client,
	registry *tools.Registry,
	executor *tools.Executor,
	a alert.Alert,
	runbookContent string,
	maxTokensPerIncident int,
	budgetExhausted BudgetCheck,
	escalate EscalateExhausted,
	logger *slog.Logger,
) (Outcome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	if budgetExhausted() {
		logger.Warn("hourly token budget exhausted; escalating without running the agent", "incident_id", a.IncidentID)
		if err := escalate(ctx, a); err != nil {
			return Outcome{BudgetExhausted: true, Duration: time.Since(start)}, err
		}
		return Outcome{BudgetExhausted: true, Duration: time.Since(start)}, nil
	}

	result, err := Run(ctx, cfg, client, registry, executor, a, runbookContent, maxTokensPerIncident, logger)
	return Outcome{Result: result, Duration: time.Since(start)}, err
}
