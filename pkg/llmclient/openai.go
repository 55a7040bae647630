package llmclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient implements Client against any OpenAI-compatible Chat
// Completions endpoint — the reference runtime's default is Azure AI
// Inference, LLM_API_BASE_URL also covers self-hosted gateways.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient constructs a Client pointed at baseURL with apiKey.
// When tokenSource is non-nil (Vertex AI ADC), its current token is
// used instead of apiKey and refreshed per call.
func NewOpenAIClient(baseURL, apiKey string, tokenSource TokenSource) *OpenAIClient {
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if tokenSource != nil {
		opts = append(opts, option.WithAPIKey(""), option.WithMiddleware(tokenRefreshMiddleware(tokenSource)))
	} else {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) Generate(ctx context.Context, input *GenerateInput) (*GenerateOutput, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input.Messages))
	for _, m := range input.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{
				Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.Content)},
				ToolCalls: calls,
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})
		case RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		}
	}

	tools := make([]openai.ChatCompletionToolParam, 0, len(input.Tools))
	for _, t := range input.Tools {
		var params map[string]any
		_ = json.Unmarshal([]byte(t.Schema), &params)
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     input.Model,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: openai.Int(int64(input.MaxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response")
	}

	choice := resp.Choices[0]
	out := &GenerateOutput{
		Text: choice.Message.Content,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}
