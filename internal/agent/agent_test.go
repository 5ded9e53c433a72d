package agent

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courselens/courselens/internal/config"
	"github.com/courselens/courselens/internal/llm"
	llmmock "github.com/courselens/courselens/internal/llm/mock"
	"github.com/courselens/courselens/internal/tools"
)

type stubTool struct {
	name    string
	execute func(ctx context.Context, input map[string]any) (tools.Result, error)
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub" }
func (s *stubTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, input map[string]any) (tools.Result, error) {
	return s.execute(ctx, input)
}

func newGenerator(p llm.Provider, maxRounds int) *Generator {
	reg := llm.NewRegistry()
	reg.RegisterProvider("mock", p)
	reg.RegisterModel("default", llm.ModelRoute{Provider: "mock", Model: "m"}, true)
	return New(reg, config.AgentConfig{MaxRounds: maxRounds, MaxTokens: 800}, nil, nil)
}

func toolUseResponse(id, name string, input map[string]any) llm.ChatResponse {
	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: []llm.ContentBlock{llm.ToolUseBlock(id, name, input)},
		},
		StopReason: llm.StopToolUse,
	}
}

func textResponse(text string) llm.ChatResponse {
	return llm.ChatResponse{Message: llm.AssistantText(text), StopReason: llm.StopEndTurn}
}

func TestRespondWithoutToolsMakesOneCall(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{textResponse("plain answer")}}
	g := newGenerator(provider, 2)

	ans, err := g.Respond(context.Background(), Request{Query: "what is Go?"})
	require.NoError(t, err)
	require.Equal(t, "plain answer", ans.Text)
	require.Len(t, provider.Calls, 1)
	require.Empty(t, provider.Calls[0].Tools)
}

func TestRespondEmptyRegistryTakesToolFreePath(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{textResponse("answer")}}
	g := newGenerator(provider, 2)

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: tools.NewRegistry()})
	require.NoError(t, err)
	require.Equal(t, "answer", ans.Text)
	require.Len(t, provider.Calls, 1)
	require.Empty(t, provider.Calls[0].Tools)
}

func TestRespondFastExitWhenModelSkipsTools(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{textResponse("direct answer")}}
	g := newGenerator(provider, 2)

	dispatched := false
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) {
			dispatched = true
			return tools.Result{}, nil
		},
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "general question", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "direct answer", ans.Text)
	require.Len(t, provider.Calls, 1)
	require.NotEmpty(t, provider.Calls[0].Tools)
	require.Equal(t, llm.ToolChoiceAuto, provider.Calls[0].ToolChoice)
	require.False(t, dispatched)
}

func TestRespondOneToolRoundThenAnswer(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{
		toolUseResponse("call_1", "search_course_content", map[string]any{"query": "lesson 2"}),
		textResponse("synthesized answer"),
	}}
	g := newGenerator(provider, 2)

	executions := 0
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(_ context.Context, input map[string]any) (tools.Result, error) {
			executions++
			require.Equal(t, "lesson 2", input["query"])
			return tools.Result{
				Content: "[Course - Lesson 2]\nchunk",
				Sources: []string{"Course - Lesson 2"},
			}, nil
		},
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "what is in lesson 2?", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "synthesized answer", ans.Text)
	require.Equal(t, []string{"Course - Lesson 2"}, ans.Sources)
	require.Equal(t, 1, executions)
	require.Len(t, provider.Calls, 2)

	// Second call carries user query, assistant tool use, and tool results.
	second := provider.Calls[1]
	require.Len(t, second.Messages, 3)
	require.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	require.Equal(t, llm.RoleUser, second.Messages[2].Role)
	require.Equal(t, llm.BlockToolResult, second.Messages[2].Content[0].Type)
	require.Equal(t, "call_1", second.Messages[2].Content[0].ToolUseID)
	require.False(t, second.Messages[2].Content[0].IsError)
}

func TestRespondExhaustedBudgetForcesFinalNoToolCall(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{
		toolUseResponse("call_1", "search_course_content", map[string]any{"query": "a"}),
		toolUseResponse("call_2", "search_course_content", map[string]any{"query": "b"}),
		textResponse("final answer"),
	}}
	g := newGenerator(provider, 2)

	executions := 0
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) {
			executions++
			return tools.Result{Content: "chunk"}, nil
		},
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "needs many searches", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "final answer", ans.Text)
	require.Equal(t, 2, executions)

	// MaxRounds tool-enabled calls plus exactly one final no-tool call.
	require.Len(t, provider.Calls, 3)
	require.NotEmpty(t, provider.Calls[0].Tools)
	require.NotEmpty(t, provider.Calls[1].Tools)
	require.Empty(t, provider.Calls[2].Tools)
}

func TestRespondToolFailureShortCircuitsRounds(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{
		toolUseResponse("call_1", "search_course_content", map[string]any{"query": "a"}),
		textResponse("explained the failure"),
	}}
	g := newGenerator(provider, 3)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) {
			return tools.Result{}, errors.New("backend unreachable")
		},
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "explained the failure", ans.Text)

	// One tool-enabled call, one forced no-tool call; budget of 3 unused.
	require.Len(t, provider.Calls, 2)
	require.Empty(t, provider.Calls[1].Tools)

	results := provider.Calls[1].Messages[2].Content
	require.Len(t, results, 1)
	require.True(t, results[0].IsError)
	require.Contains(t, results[0].Content, "Tool execution failed: backend unreachable")
}

func TestRespondUnknownToolBecomesErrorResult(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{
		toolUseResponse("call_1", "nonexistent_tool", nil),
		textResponse("told the user"),
	}}
	g := newGenerator(provider, 2)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name:    "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) { return tools.Result{}, nil },
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "told the user", ans.Text)

	results := provider.Calls[1].Messages[2].Content
	require.True(t, results[0].IsError)
	require.Contains(t, results[0].Content, "unknown tool")
}

func TestRespondProviderFailureReturnsErrorText(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(context.Context, llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, errors.New("rate limited")
		},
	}
	g := newGenerator(provider, 2)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name:    "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) { return tools.Result{}, nil },
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "Error generating response: rate limited", ans.Text)
}

func TestRespondFinalCallFailureReturnsErrorText(t *testing.T) {
	calls := 0
	provider := &llmmock.Provider{
		ChatFn: func(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			calls++
			if len(req.Tools) > 0 {
				return toolUseResponse("call", "search_course_content", map[string]any{"query": "x"}), nil
			}
			return llm.ChatResponse{}, errors.New("provider down")
		},
	}
	g := newGenerator(provider, 1)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name:    "search_course_content",
		execute: func(context.Context, map[string]any) (tools.Result, error) { return tools.Result{Content: "chunk"}, nil },
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, "Error generating final response: provider down", ans.Text)
	require.Equal(t, 2, calls)
}

func TestRespondSystemPromptCarriesHistory(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{textResponse("ok")}}
	g := newGenerator(provider, 2)

	_, err := g.Respond(context.Background(), Request{
		Query:   "follow-up",
		History: "User: hello\nAssistant: hi",
	})
	require.NoError(t, err)
	require.Contains(t, provider.Calls[0].System, "Previous conversation:")
	require.Contains(t, provider.Calls[0].System, "User: hello")

	provider.Calls = nil
	_, err = g.Respond(context.Background(), Request{Query: "fresh"})
	require.NoError(t, err)
	require.NotContains(t, provider.Calls[0].System, "Previous conversation:")
}

func TestRespondLastSearchSourcesWin(t *testing.T) {
	provider := &llmmock.Provider{Responses: []llm.ChatResponse{
		toolUseResponse("c1", "search_course_content", map[string]any{"query": "first"}),
		toolUseResponse("c2", "search_course_content", map[string]any{"query": "second"}),
		textResponse("done"),
	}}
	g := newGenerator(provider, 2)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(_ context.Context, input map[string]any) (tools.Result, error) {
			q := input["query"].(string)
			return tools.Result{Content: q, Sources: []string{"source for " + q}}, nil
		},
	}))

	ans, err := g.Respond(context.Background(), Request{Query: "q", Tools: reg})
	require.NoError(t, err)
	require.Equal(t, []string{"source for second"}, ans.Sources)
}

func TestRespondConcurrentCallsKeepSourcesSeparate(t *testing.T) {
	provider := &llmmock.Provider{
		ChatFn: func(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			if len(req.Tools) > 0 && len(req.Messages) == 1 {
				query := req.Messages[0].Text()
				return toolUseResponse("c", "search_course_content", map[string]any{"query": query}), nil
			}
			return textResponse("answer"), nil
		},
	}
	g := newGenerator(provider, 2)

	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(&stubTool{
		name: "search_course_content",
		execute: func(_ context.Context, input map[string]any) (tools.Result, error) {
			q := input["query"].(string)
			return tools.Result{Content: q, Sources: []string{q}}, nil
		},
	}))

	var wg sync.WaitGroup
	answers := make([]Answer, 2)
	errs := make([]error, 2)
	for i, q := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			answers[i], errs[i] = g.Respond(context.Background(), Request{Query: q, Tools: reg})
		}(i, q)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.Equal(t, []string{"alpha"}, answers[0].Sources)
	require.Equal(t, []string{"beta"}, answers[1].Sources)
}

func TestRespondRequiresQuery(t *testing.T) {
	g := newGenerator(&llmmock.Provider{}, 2)
	_, err := g.Respond(context.Background(), Request{Query: "  "})
	require.Error(t, err)
}

func TestMaxRoundsDefault(t *testing.T) {
	g := newGenerator(&llmmock.Provider{}, 0)
	require.Equal(t, 2, g.MaxRounds())
	g = newGenerator(&llmmock.Provider{}, 5)
	require.Equal(t, 5, g.MaxRounds())
}

func TestBuildSystemPrompt(t *testing.T) {
	require.Contains(t, buildSystemPrompt(""), "course materials")
	withHistory := buildSystemPrompt("User: hi")
	require.Contains(t, withHistory, "Previous conversation:\nUser: hi")
}
