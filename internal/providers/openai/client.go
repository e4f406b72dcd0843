package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/core"
	"github.com/lizzyg/citysense/internal/util"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Client speaks the Chat Completions protocol to any compatible endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	model      string
}

func New(mc config.ModelConfig, hc *http.Client, logger *slog.Logger) *Client {
	base := strings.TrimRight(mc.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiKey:     mc.APIKey,
		baseURL:    base,
		httpClient: hc,
		logger:     logger,
		model:      mc.Model,
	}
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []map[string]any `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float32          `json:"temperature,omitempty"`
	TopP        float32          `json:"top_p,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   any `json:"content"`
			ToolCalls []struct {
				Type     string `json:"type"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *Client) Call(ctx context.Context, params core.CallParams) (core.RawResponse, error) {
	model := params.Model
	if model == "" {
		model = c.model
	}
	payload := chatRequest{
		Model:       model,
		Messages:    mapChatMessages(params.System, params.Messages),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	}
	if len(params.ToolDefs) > 0 {
		payload.Tools = mapTools(params.ToolDefs)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return core.RawResponse{}, fmt.Errorf("openai marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return core.RawResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "openai chat completion",
		slog.String("model", model),
		slog.Int("messages", len(payload.Messages)),
		slog.Int("tools", len(payload.Tools)),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.RawResponse{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return core.RawResponse{}, &core.HTTPStatusError{Provider: "openai", Status: resp.StatusCode, Body: string(b)}
	}
	var rr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return core.RawResponse{}, fmt.Errorf("openai decode response: %w", err)
	}

	out := core.RawResponse{
		Usage: core.Usage{
			PromptTokens:     rr.Usage.PromptTokens,
			CompletionTokens: rr.Usage.CompletionTokens,
			TotalTokens:      rr.Usage.TotalTokens,
		},
	}
	if len(rr.Choices) == 0 {
		return out, nil
	}
	msg := rr.Choices[0].Message
	out.Content = contentText(msg.Content)
	for _, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			CallID: id,
			Name:   tc.Function.Name,
			Args:   json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// contentText flattens string or text-part array content.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, p := range v {
			if m, ok := p.(map[string]any); ok && m["type"] == "text" {
				if s, ok := m["text"].(string); ok {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func mapChatMessages(system string, msgs []core.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs)+1)
	if system != "" {
		out = append(out, map[string]any{"role": "system", "content": system})
	}
	for _, m := range msgs {
		if len(m.ToolCalls) > 0 {
			tc := make([]map[string]any, 0, len(m.ToolCalls))
			for _, it := range m.ToolCalls {
				argsStr := "{}"
				if len(it.Args) > 0 {
					argsStr = string(it.Args)
				}
				tc = append(tc, map[string]any{
					"type": "function",
					"id":   it.CallID,
					"function": map[string]any{
						"name":      it.Name,
						"arguments": argsStr,
					},
				})
			}
			out = append(out, map[string]any{
				"role":       "assistant",
				"content":    m.Content,
				"tool_calls": tc,
			})
			continue
		}
		if len(m.ToolResults) > 0 {
			for _, tr := range m.ToolResults {
				out = append(out, map[string]any{
					"role":         "tool",
					"tool_call_id": tr.CallID,
					"name":         tr.Name,
					"content":      tr.ResultJSON(),
				})
			}
			continue
		}
		out = append(out, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	return out
}

func mapTools(defs []core.ToolDef) []map[string]any {
	out := make([]map[string]any, len(defs))
	for i, d := range defs {
		out[i] = map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  coerceOpenAIParams(d.JSONSchema),
			},
		}
	}
	return out
}

// coerceOpenAIParams ensures the parameters JSON meets Chat Completions expectations
// for a function JSON Schema (must be type: object at top-level).
func coerceOpenAIParams(schema string) map[string]any {
	m := util.SchemaMap(schema)
	m["type"] = "object"
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m
}
