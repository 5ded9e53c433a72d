// Package agent drives the bounded, sequential tool-calling loop between the
// model and the tool registry.
package agent

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/courselens/courselens/internal/config"
	"github.com/courselens/courselens/internal/llm"
	"github.com/courselens/courselens/internal/tools"
)

// Metrics is the narrow observability surface the generator reports to.
type Metrics interface {
	RecordModelCall(provider, model string)
	RecordModelFailure(provider, model string)
	RecordToolExecution(tool, status string)
}

// Request is a single generation invocation. History is pre-formatted prior
// conversation text (may be empty). Tools may be nil for the tool-free path.
type Request struct {
	Model   string
	Query   string
	History string
	Tools   *tools.Registry
}

// Answer is the caller-visible outcome. Provider failures are reported in
// Text rather than as errors, so a degraded answer always reaches the user.
type Answer struct {
	Text    string
	Sources []string
}

// Generator orchestrates model rounds and tool dispatch for one request at a
// time; each invocation owns its message chain exclusively.
type Generator struct {
	registry *llm.Registry
	cfg      config.AgentConfig
	logger   *zap.Logger
	metrics  Metrics
}

// New creates a Generator. logger and metrics may be nil.
func New(registry *llm.Registry, cfg config.AgentConfig, logger *zap.Logger, metrics Metrics) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{registry: registry, cfg: cfg, logger: logger, metrics: metrics}
}

// MaxRounds returns the configured tool-round budget (>0).
func (g *Generator) MaxRounds() int {
	if g.cfg.MaxRounds > 0 {
		return g.cfg.MaxRounds
	}
	return 2
}

// Respond answers a query, running up to MaxRounds tool-enabled model calls.
// The returned error covers only invalid requests and unresolvable models;
// provider failures become the answer text.
func (g *Generator) Respond(ctx context.Context, req Request) (Answer, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Answer{}, errors.New("query is required")
	}

	provider, route, err := g.registry.Resolve(req.Model)
	if err != nil {
		return Answer{}, err
	}

	system := buildSystemPrompt(req.History)
	chain := []llm.Message{llm.UserText(req.Query)}

	// Tool-free path: a single call, no tool schemas.
	if req.Tools == nil || req.Tools.Len() == 0 {
		resp, err := g.chat(ctx, provider, route, system, chain, nil)
		if err != nil {
			return Answer{Text: "Error generating response: " + err.Error()}, nil
		}
		return Answer{Text: resp.Message.Text()}, nil
	}

	schemas := req.Tools.Schemas()
	var sources []string
	toolFailed := false

	for round := 0; round < g.MaxRounds(); round++ {
		resp, err := g.chat(ctx, provider, route, system, chain, schemas)
		if err != nil {
			return Answer{Text: "Error generating response: " + err.Error(), Sources: sources}, nil
		}

		if resp.StopReason != llm.StopToolUse {
			return Answer{Text: resp.Message.Text(), Sources: sources}, nil
		}

		var chainNext []llm.Message
		chainNext, sources, toolFailed = g.executeRound(ctx, req.Tools, chain, resp.Message, sources)
		chain = chainNext

		if toolFailed {
			// A failed tool ends the round loop; the model still gets to
			// explain the failure in one final tool-free call.
			break
		}
	}

	finalResp, err := g.chat(ctx, provider, route, system, chain, nil)
	if err != nil {
		if toolFailed {
			return Answer{Text: "Error generating response: " + err.Error(), Sources: sources}, nil
		}
		return Answer{Text: "Error generating final response: " + err.Error(), Sources: sources}, nil
	}
	return Answer{Text: finalResp.Message.Text(), Sources: sources}, nil
}

// executeRound appends the assistant's tool-use message, dispatches every
// tool_use block, and appends one user message carrying all tool results.
// It returns the grown chain, the updated sources, and whether any dispatch
// failed. The most recent search's sources replace earlier ones.
func (g *Generator) executeRound(ctx context.Context, reg *tools.Registry, chain []llm.Message, assistant llm.Message, sources []string) ([]llm.Message, []string, bool) {
	chain = append(chain, assistant)

	var results []llm.ContentBlock
	failed := false
	for _, use := range assistant.ToolUses() {
		res, err := reg.Execute(ctx, use.Name, use.Input)
		if err != nil {
			g.logger.Warn("tool execution failed", zap.String("tool", use.Name), zap.Error(err))
			if g.metrics != nil {
				g.metrics.RecordToolExecution(use.Name, "error")
			}
			results = append(results, llm.ToolResultBlock(use.ID, "Tool execution failed: "+err.Error(), true))
			failed = true
			continue
		}
		if g.metrics != nil {
			g.metrics.RecordToolExecution(use.Name, "ok")
		}
		if len(res.Sources) > 0 {
			sources = res.Sources
		}
		results = append(results, llm.ToolResultBlock(use.ID, res.Content, false))
	}

	if len(results) > 0 {
		chain = append(chain, llm.Message{Role: llm.RoleUser, Content: results})
	}
	return chain, sources, failed
}

func (g *Generator) chat(ctx context.Context, provider llm.Provider, route llm.ModelRoute, system string, chain []llm.Message, schemas []llm.ToolSchema) (llm.ChatResponse, error) {
	req := llm.ChatRequest{
		Model:       route.Model,
		System:      system,
		Messages:    chain,
		MaxTokens:   pickMaxTokens(g.cfg.MaxTokens, route.MaxTokens),
		Temperature: pickTemperature(g.cfg.Temperature, route.Temperature),
	}
	if len(schemas) > 0 {
		req.Tools = schemas
		req.ToolChoice = llm.ToolChoiceAuto
	}

	resp, err := provider.Chat(ctx, req)
	if err != nil {
		g.logger.Warn("model call failed",
			zap.String("provider", provider.Name()),
			zap.String("model", route.Model),
			zap.Error(err))
		if g.metrics != nil {
			g.metrics.RecordModelFailure(provider.Name(), route.Model)
		}
		return llm.ChatResponse{}, err
	}
	if g.metrics != nil {
		g.metrics.RecordModelCall(provider.Name(), route.Model)
	}
	return resp, nil
}

func pickTemperature(agentTemp, routeTemp float64) float64 {
	if agentTemp > 0 {
		return agentTemp
	}
	return routeTemp
}

func pickMaxTokens(agentMax, routeMax int) int {
	if agentMax > 0 {
		return agentMax
	}
	if routeMax > 0 {
		return routeMax
	}
	return 800
}
