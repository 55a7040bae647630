package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	name string
}

func (c *stubClient) Generate(context.Context, *GenerateInput) (*GenerateOutput, error) {
	return &GenerateOutput{Text: c.name}, nil
}

func TestRouterSendsClaudeModelsToAnthropic(t *testing.T) {
	r := NewRouter(&stubClient{name: "anthropic"}, &stubClient{name: "openai"})

	out, err := r.Generate(context.Background(), &GenerateInput{Model: "claude-3-5-sonnet-latest"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", out.Text)
}

func TestRouterSendsOtherModelsToOpenAI(t *testing.T) {
	r := NewRouter(&stubClient{name: "anthropic"}, &stubClient{name: "openai"})

	out, err := r.Generate(context.Background(), &GenerateInput{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", out.Text)
}

func TestRouterFallsBackToOpenAIWhenAnthropicUnconfigured(t *testing.T) {
	r := NewRouter(nil, &stubClient{name: "openai"})

	out, err := r.Generate(context.Background(), &GenerateInput{Model: "claude-3-5-sonnet-latest"})
	require.NoError(t, err)
	assert.Equal(t, "openai", out.Text)
}

func TestRouterPropagatesBackendError(t *testing.T) {
	r := NewRouter(nil, errClient{})

	_, err := r.Generate(context.Background(), &GenerateInput{Model: "gpt-4o"})
	require.Error(t, err)
}

type errClient struct{}

func (errClient) Generate(context.Context, *GenerateInput) (*GenerateOutput, error) {
	return nil, errors.New("boom")
}
