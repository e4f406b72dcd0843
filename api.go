package citysense

import (
	"context"
	"encoding/json"
	"strings"
)

// Tool is implemented by any callable function the model can invoke.
// Parameters must return a pointer to a zero-value struct for JSON schema generation and unmarshalling.
type Tool interface {
	Name() string
	Description() string
	Parameters() any
	Execute(ctx context.Context, args any) (any, error)
}

// Runner executes one agent turn over a full transcript.
type Runner interface {
	Run(ctx context.Context, transcript Transcript) (*RunResult, error)
}

// MessageRole defines who authored a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one transcript turn. Assistant turns that request tools carry
// ToolCalls; the following tool turn carries the matching ToolResults.
type Message struct {
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Output  any    `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// Transcript is the ordered turn history handed to the agent on every run.
type Transcript []Message

// UserMessage returns a user turn with surrounding whitespace removed.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: strings.TrimSpace(text)}
}

// Clone returns a copy that shares no slice storage with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	for i, m := range t {
		m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		m.ToolResults = append([]ToolResult(nil), m.ToolResults...)
		out[i] = m
	}
	return out
}

// isFinal reports whether m is an assistant reply that ends a turn.
func (m Message) isFinal() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) == 0
}

// Usage accumulates token counts across the model calls of one run.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RunResult is the outcome of Agent.Run. History is the input transcript
// followed by every turn the run appended.
type RunResult struct {
	FinalOutput string     `json:"final_output"`
	History     Transcript `json:"history"`
	Usage       Usage      `json:"usage"`
}
