// Package tools defines the callable tools exposed to the model and the
// registry that dispatches tool executions by name.
package tools

import (
	"context"

	"github.com/courselens/courselens/internal/llm"
)

// Result is the outcome of one tool execution. Sources carries the
// human-readable citations backing Content, so callers can surface them
// alongside the final answer without shared mutable state on the tool.
type Result struct {
	Content string
	Sources []string
}

// Tool is a named, schema-described callable the model may request.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Execute(ctx context.Context, input map[string]any) (Result, error)
}

// Schema converts a tool into the schema shape handed to the model.
func Schema(t Tool) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: t.InputSchema(),
	}
}

func stringArg(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

// intArg reads an integer argument; JSON decoding yields float64 values.
func intArg(input map[string]any, key string) *int {
	switch v := input[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		n := v
		return &n
	default:
		return nil
	}
}
