package mock

import (
	"context"
	"sync"

	"github.com/courselens/courselens/internal/llm"
)

// Provider is a test double implementing llm.Provider.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)

	// Responses, when set, are returned in order; calls beyond the last
	// entry repeat it. Ignored when ChatFn is set.
	Responses []llm.ChatResponse

	mu    sync.Mutex
	Calls []llm.ChatRequest
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, req)
	idx := len(p.Calls) - 1
	p.mu.Unlock()

	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	if n := len(p.Responses); n > 0 {
		if idx >= n {
			idx = n - 1
		}
		return p.Responses[idx], nil
	}
	return llm.ChatResponse{
		Message:    llm.AssistantText("mock"),
		StopReason: llm.StopEndTurn,
	}, nil
}
