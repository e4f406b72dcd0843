package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// RawClient is implemented by provider adapters.
type RawClient interface {
	Call(ctx context.Context, params CallParams) (RawResponse, error)
}

type CallParams struct {
	Model       string
	System      string
	Messages    []Message
	ToolDefs    []ToolDef
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// Message is one provider-neutral turn. Assistant turns may carry ToolCalls;
// tool turns carry ToolResults answering them by CallID.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolDef describes a tool in a provider-agnostic form.
// JSONSchema is a JSON Schema object describing the arguments.
type ToolDef struct {
	Name        string
	Description string
	JSONSchema  string
}

type RawResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type ToolCall struct {
	CallID string
	Name   string
	Args   json.RawMessage
}

type ToolResult struct {
	CallID string
	Name   string
	Result any
}

// ResultJSON renders a tool result as a JSON object. Values that do not
// encode to an object (strings, lists) are wrapped as {"result": ...}.
func (r ToolResult) ResultJSON() string {
	b, err := json.Marshal(r.Result)
	if err != nil {
		b, _ = json.Marshal(map[string]any{"error": fmt.Sprintf("unencodable tool result: %v", err)})
		return string(b)
	}
	if len(b) == 0 || b[0] != '{' {
		b, _ = json.Marshal(map[string]json.RawMessage{"result": b})
	}
	return string(b)
}

// HTTPStatusError is returned by provider adapters for non-2xx responses.
type HTTPStatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.Status, e.Body)
}
