package llmclient

import (
	"context"
	"strings"
)

// Router dispatches each Generate call to one of two backends based on
// the requested model name, so a run's escalation model (§4.4 step 1)
// can legitimately cross providers — e.g. escalate from a fast
// in-house-hosted OpenAI-compatible model to a Claude model for a
// harder incident.
type Router struct {
	Anthropic Client
	OpenAI    Client
}

// NewRouter builds a Router. anthropic may be nil if that provider is
// not configured; Generate then sends every model, claude-* included,
// to the OpenAI backend. openai is not checked for nil.
func NewRouter(anthropic, openai Client) *Router {
	return &Router{Anthropic: anthropic, OpenAI: openai}
}

func isAnthropicModel(model string) bool {
	return strings.HasPrefix(model, "claude-")
}

// Generate implements Client, routing by GenerateInput.Model.
func (r *Router) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	if isAnthropicModel(input.Model) && r.Anthropic != nil {
		return r.Anthropic.Generate(ctx, input)
	}
	return r.OpenAI.Generate(ctx, input)
}
