package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/courselens/courselens/internal/llm"
)

// Provider implements llm.Provider for OpenAI-compatible chat APIs.
type Provider struct {
	name   string
	client *goopenai.Client
}

// NewProvider constructs a Provider with sane defaults. baseURL may point at
// any OpenAI-compatible gateway.
func NewProvider(name, baseURL, apiKey string, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Provider{name: name, client: goopenai.NewClientWithConfig(cfg)}
}

// Name returns provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Chat executes a non-streaming chat completion with optional tools.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, fmt.Errorf("model is required")
	}

	request := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toChatMessages(req.System, req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 && req.ToolChoice != llm.ToolChoiceNone {
		request.Tools = toTools(req.Tools)
		request.ToolChoice = "auto"
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, fmt.Errorf("openai: empty choices")
	}

	choice := resp.Choices[0]
	msg := llm.Message{Role: llm.RoleAssistant}
	if choice.Message.Content != "" {
		msg.Content = append(msg.Content, llm.TextBlock(choice.Message.Content))
	}
	stop := llm.StopEndTurn
	for _, tc := range choice.Message.ToolCalls {
		input := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return llm.ChatResponse{}, fmt.Errorf("openai: decode tool arguments for %s: %w", tc.Function.Name, err)
			}
		}
		msg.Content = append(msg.Content, llm.ToolUseBlock(tc.ID, tc.Function.Name, input))
		stop = llm.StopToolUse
	}
	if stop != llm.StopToolUse && choice.FinishReason == goopenai.FinishReasonLength {
		stop = llm.StopMaxTokens
	}

	return llm.ChatResponse{
		Message:    msg,
		StopReason: stop,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		ProviderName: p.name,
		Model:        req.Model,
	}, nil
}

// toChatMessages flattens block-structured messages into the OpenAI wire
// shape: tool_use becomes assistant tool_calls, tool_result becomes a tool
// role message with the matching call id.
func toChatMessages(system string, messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			msg := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: m.Text(),
			}
			for _, b := range m.ToolUses() {
				args, _ := json.Marshal(b.Input)
				msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
					ID:   b.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      b.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)
		default:
			var text string
			for _, b := range m.Content {
				switch b.Type {
				case llm.BlockText:
					text += b.Text
				case llm.BlockToolResult:
					out = append(out, goopenai.ChatCompletionMessage{
						Role:       goopenai.ChatMessageRoleTool,
						Content:    b.Content,
						ToolCallID: b.ToolUseID,
					})
				}
			}
			if text != "" {
				out = append(out, goopenai.ChatCompletionMessage{
					Role:    goopenai.ChatMessageRoleUser,
					Content: text,
				})
			}
		}
	}
	return out
}

func toTools(tools []llm.ToolSchema) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
