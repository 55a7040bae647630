package agentloop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onduty-run/sentry-agent/pkg/alert"
	"github.com/onduty-run/sentry-agent/pkg/llmclient"
	"github.com/onduty-run/sentry-agent/pkg/tools"
)

type scriptedClient struct {
	outputs []*llmclient.GenerateOutput
	calls   int
}

func (c *scriptedClient) Generate(_ context.Context, _ *llmclient.GenerateInput) (*llmclient.GenerateOutput, error) {
	if c.calls >= len(c.outputs) {
		return nil, errors.New("scriptedClient: ran out of scripted outputs")
	}
	out := c.outputs[c.calls]
	c.calls++
	return out, nil
}

func testAlert() alert.Alert {
	return alert.Alert{IncidentID: "inc-1", ServiceName: "api", Severity: alert.SeverityHigh, Description: "disk at 95%"}
}

func TestRunEndsOnFinalText(t *testing.T) {
	client := &scriptedClient{outputs: []*llmclient.GenerateOutput{
		{Text: "Root cause: disk pressure. No action needed.", Usage: llmclient.Usage{InputTokens: 100, OutputTokens: 50}},
	}}
	registry := tools.NewRegistry()
	executor := tools.NewExecutor(nil, nil, "ops", "pd", "routing", t.TempDir(), "trace-1", tools.SMTPConfig{}, 0, nil)

	result, err := Run(context.Background(), Config{Model: "gpt-4o"}, client, registry, executor, testAlert(), "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Turns)
	assert.Contains(t, result.Summary, "Root cause")
	assert.Equal(t, 100, result.InputTokens)
	assert.Equal(t, 50, result.OutputTokens)
}

func TestRunExecutesToolCallsThenFinalText(t *testing.T) {
	client := &scriptedClient{outputs: []*llmclient.GenerateOutput{
		{ToolCalls: []llmclient.ToolCall{{ID: "call-1", Name: "write_incident_report", Arguments: `{"filename":"i.md","content":"x"}`}}},
		{Text: "Done."},
	}}
	registry := tools.NewRegistry()
	executor := tools.NewExecutor(nil, nil, "ops", "pd", "routing", t.TempDir(), "trace-1", tools.SMTPConfig{}, 0, nil)

	result, err := Run(context.Background(), Config{Model: "gpt-4o"}, client, registry, executor, testAlert(), "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, []string{"write_incident_report"}, result.ToolCallsMade)
	assert.Equal(t, "Done.", result.Summary)
}

func TestRunStopsOnPerIncidentTokenBudget(t *testing.T) {
	client := &scriptedClient{outputs: []*llmclient.GenerateOutput{
		{ToolCalls: []llmclient.ToolCall{{ID: "call-1", Name: "write_incident_report", Arguments: `{"filename":"i.md","content":"x"}`}}, Usage: llmclient.Usage{InputTokens: 1000, OutputTokens: 1000}},
		{ToolCalls: []llmclient.ToolCall{{ID: "call-2", Name: "write_incident_report", Arguments: `{"filename":"j.md","content":"y"}`}}, Usage: llmclient.Usage{InputTokens: 1000, OutputTokens: 1000}},
	}}
	registry := tools.NewRegistry()
	executor := tools.NewExecutor(nil, nil, "ops", "pd", "routing", t.TempDir(), "trace-1", tools.SMTPConfig{}, 0, nil)

	result, err := Run(context.Background(), Config{Model: "gpt-4o"}, client, registry, executor, testAlert(), "", 2000, nil)
	require.NoError(t, err)
	assert.Less(t, result.Turns, MaxTurns)
	assert.Contains(t, result.Summary, "token budget")
}

func TestRunEscalatesModelAtConfiguredTurn(t *testing.T) {
	client := &scriptedClient{outputs: []*llmclient.GenerateOutput{
		{ToolCalls: []llmclient.ToolCall{{ID: "call-1", Name: "write_incident_report", Arguments: `{"filename":"i.md","content":"x"}`}}},
		{Text: "Resolved."},
	}}
	registry := tools.NewRegistry()
	executor := tools.NewExecutor(nil, nil, "ops", "pd", "routing", t.TempDir(), "trace-1", tools.SMTPConfig{}, 0, nil)

	cfg := Config{Model: "gpt-4o-mini", ModelEscalation: "gpt-4o", EscalationTurn: 2}
	result, err := Run(context.Background(), cfg, client, registry, executor, testAlert(), "", 0, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gpt-4o-mini", "gpt-4o"}, result.ModelsUsed)
}

func TestProcessAlertSkipsRunWhenBudgetExhausted(t *testing.T) {
	escalated := false
	outcome, err := ProcessAlert(
		context.Background(), Config{Model: "gpt-4o"}, &scriptedClient{}, tools.NewRegistry(),
		tools.NewExecutor(nil, nil, "ops", "pd", "routing", t.TempDir(), "trace-1", tools.SMTPConfig{}, 0, nil),
		testAlert(), "", 0,
		func() bool { return true },
		func(_ context.Context, _ alert.Alert) error { escalated = true; return nil },
		nil,
	)
	require.NoError(t, err)
	assert.True(t, outcome.BudgetExhausted)
	assert.Nil(t, outcome.Result)
	assert.True(t, escalated)
}
