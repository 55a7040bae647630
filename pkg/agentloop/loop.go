// Package agentloop drives the bounded, tool-calling turn loop that
// diagnoses one admitted alert: a sequence of LLM turns, each either
// requesting tool calls (executed in order, results fed back) or
// producing final text that ends the run.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/llmclient"
	"github.com/onduty-run/sentry-agent/pkg/tools"
)

// MaxTurns bounds how many LLM turns a single run may take.
const MaxTurns = 20

// MaxDuration bounds the wall-clock time a single run may take.
const MaxDuration = 300 * time.Second

// maxTokensPerTurn is the max_tokens requested on every LLM call.
const maxTokensPerTurn = 4096

var tracer = otel.Tracer("sentry-agent/agentloop")

// Result is what a finished run reports back for bookkeeping and for
// the incident report's cost footer.
type Result struct {
	Summary          string
	Turns            int
	InputTokens      int
	OutputTokens     int
	EstimatedCostUSD float64
	ModelsUsed       []string
	ToolCallsMade    []string
}

// Config bundles the per-run tunables that come from process config
// rather than from the alert itself.
type Config struct {
	Model             string
	ModelEscalation   string // empty = no escalation configured
	EscalationTurn    int
	SystemPrompt      string
}

// Run drives the turn loop for one alert until the LLM produces final
// text, a tool-call budget is exhausted, or a gate (duration, per-run
// token budget) trips. It never returns an error for an exhausted
// budget — that is a normal, reported outcome (Result.Summary
// describes it) — only for an LLM transport failure.
func Run(ctx context.Context, cfg Config, client llmclient.Client, registry *tools.Registry, executor *tools.Executor, a alert.Alert, runbookContent string, maxTokensPerIncident int, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: cfg.SystemPrompt},
		{Role: llmclient.RoleUser, Content: formatAlertMessage(a, runbookContent)},
	}

	toolDefs := make([]llmclient.ToolDefinition, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		toolDefs = append(toolDefs, llmclient.ToolDefinition{
			Name:        name,
			Description: registry.Description(name),
			Schema:      registry.Schema(name),
		})
	}

	result := &Result{}
	modelsUsed := map[string]struct{}{}
	currentModel := cfg.Model

	for turn := 1; turn <= MaxTurns; turn++ {
		if time.Since(start) > MaxDuration {
			result.Summary = fmt.Sprintf("Run exceeded the %s duration ceiling after %d turns; diagnosis incomplete.", MaxDuration, turn-1)
			break
		}
		if maxTokensPerIncident > 0 && result.InputTokens+result.OutputTokens >= maxTokensPerIncident {
			result.Summary = fmt.Sprintf("Run exceeded its per-incident token budget (%d) after %d turns; diagnosis incomplete.", maxTokensPerIncident, turn-1)
			break
		}

		if cfg.ModelEscalation != "" && turn >= cfg.EscalationTurn {
			currentModel = cfg.ModelEscalation
		}
		modelsUsed[currentModel] = struct{}{}

		ctx, span := tracer.Start(ctx, "agentloop.turn", trace.WithAttributes(
			attribute.Int("turn", turn), attribute.String("model", currentModel),
		))

		output, err := client.Generate(ctx, &llmclient.GenerateInput{
			Model:     currentModel,
			Messages:  messages,
			Tools:     toolDefs,
			MaxTokens: maxTokensPerTurn,
		})
		if err != nil {
			span.End()
			return nil, fmt.Errorf("llm call failed on turn %d: %w", turn, err)
		}

		result.InputTokens += output.Usage.InputTokens
		result.OutputTokens += output.Usage.OutputTokens
		result.Turns = turn

		if len(output.ToolCalls) == 0 {
			span.End()
			if strings.TrimSpace(output.Text) == "" {
				result.Summary = fmt.Sprintf("Model returned an empty response on turn %d; treating as final.", turn)
			} else {
				result.Summary = output.Text
			}
			break
		}

		assistantMsg := llmclient.Message{Role: llmclient.RoleAssistant, Content: output.Text, ToolCalls: output.ToolCalls}
		messages = append(messages, assistantMsg)

		for _, tc := range output.ToolCalls {
			input, parseErr := decodeArguments(tc.Arguments)
			var toolResult tools.Result
			if parseErr != nil {
				toolResult = tools.Result{CallID: tc.ID, Name: tc.Name, IsError: true, Content: fmt.Sprintf(`{"error": %q}`, parseErr.Error())}
			} else {
				_, toolSpan := tracer.Start(ctx, "agentloop.tool_call", trace.WithAttributes(attribute.String("tool", tc.Name)))
				toolResult = registry.Execute(ctx, executor, tools.Call{ID: tc.ID, Name: tc.Name, Input: input})
				toolSpan.End()
			}
			result.ToolCallsMade = append(result.ToolCallsMade, tc.Name)
			messages = append(messages, llmclient.Message{
				Role:       llmclient.RoleTool,
				Content:    toolResult.Content,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
		span.End()

		if turn == MaxTurns {
			result.Summary = fmt.Sprintf("Run exhausted the %d-turn budget still requesting tools; diagnosis incomplete.", MaxTurns)
		}
	}

	for m := range modelsUsed {
		result.ModelsUsed = append(result.ModelsUsed, m)
	}
	result.EstimatedCostUSD = estimateRunCost(currentModel, result.InputTokens, result.OutputTokens)

	logger.Info("agent run finished",
		"incident_id", a.IncidentID, "turns", result.Turns,
		"input_tokens", result.InputTokens, "output_tokens", result.OutputTokens,
		"cost_usd", result.EstimatedCostUSD)

	return result, nil
}

// estimateRunCost prices the whole run's tokens at the single, final
// model used — matching the reference's per-run (not per-turn) cost
// bookkeeping, since models_used is informational but the cost
// footer is computed once at the end of agent.py's run_agent.
func estimateRunCost(finalModel string, inputTokens, outputTokens int) float64 {
	return llmclient.EstimateCost(finalModel, inputTokens, outputTokens)
}

func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid tool arguments JSON: %w", err)
	}
	return out, nil
}

func formatAlertMessage(a alert.Alert, runbookContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Incident %s\n\n", a.IncidentID)
	fmt.Fprintf(&b, "- Service: %s\n", a.ServiceName)
	fmt.Fprintf(&b, "- Severity: %s\n", a.Severity)
	if a.Priority != "" {
		fmt.Fprintf(&b, "- Priority: %s\n", a.Priority)
	}
	if a.RunbookURL != "" {
		fmt.Fprintf(&b, "- Runbook: %s\n", a.RunbookURL)
	}
	fmt.Fprintf(&b, "\n%s\n", a.Description)
	if runbookContent != "" {
		fmt.Fprintf(&b, "\n## Runbook\n\n%s\n", runbookContent)
	}
	return b.String()
}
