package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/core"
	"github.com/lizzyg/citysense/internal/util"
)

// Client calls the Gemini API natively through the genai SDK.
type Client struct {
	models      *genai.Models
	logger      *slog.Logger
	model       string
	temperature float32
}

func New(mc config.ModelConfig, hc *http.Client, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cc := &genai.ClientConfig{
		APIKey:     mc.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if mc.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: mc.BaseURL}
	}
	// NewClient does not touch the network for the Gemini API backend.
	gc, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{models: gc.Models, logger: logger, model: mc.Model, temperature: mc.Temperature}, nil
}

func (c *Client) Call(ctx context.Context, params core.CallParams) (core.RawResponse, error) {
	model := params.Model
	if model == "" {
		model = c.model
	}
	cfg := &genai.GenerateContentConfig{}
	if params.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: params.System}}}
	}
	if params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(params.MaxTokens)
	}
	if params.Temperature > 0 {
		cfg.Temperature = genai.Ptr(params.Temperature)
	}
	if params.TopP > 0 {
		cfg.TopP = genai.Ptr(params.TopP)
	}
	if len(params.ToolDefs) > 0 {
		cfg.Tools = mapTools(params.ToolDefs)
	}

	contents, err := mapMessages(params.Messages)
	if err != nil {
		return core.RawResponse{}, err
	}
	c.logger.DebugContext(ctx, "gemini generate content",
		slog.String("model", model),
		slog.Int("contents", len(contents)),
		slog.Int("tools", len(params.ToolDefs)),
	)
	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return core.RawResponse{}, &core.HTTPStatusError{Provider: "gemini", Status: apiErr.Code, Body: apiErr.Message}
		}
		return core.RawResponse{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return mapResponse(resp), nil
}

func mapResponse(resp *genai.GenerateContentResponse) core.RawResponse {
	out := core.RawResponse{}
	if resp == nil {
		return out
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = core.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	var text []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil {
			continue
		}
		if p.FunctionCall != nil {
			args, _ := json.Marshal(p.FunctionCall.Args)
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{CallID: id, Name: p.FunctionCall.Name, Args: args})
			continue
		}
		if p.Text != "" && !p.Thought {
			text = append(text, p.Text)
		}
	}
	out.Content = strings.Join(text, "")
	return out
}

// mapMessages converts neutral turns into Gemini contents. Assistant turns
// use the "model" role; tool results travel as function responses in a
// "user" turn.
func mapMessages(msgs []core.Message) ([]*genai.Content, error) {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case len(m.ToolCalls) > 0:
			parts := make([]*genai.Part, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if len(tc.Args) > 0 {
					if err := json.Unmarshal(tc.Args, &args); err != nil {
						return nil, fmt.Errorf("gemini tool call %s args: %w", tc.Name, err)
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.CallID, Name: tc.Name, Args: args}})
			}
			out = append(out, &genai.Content{Role: "model", Parts: parts})
		case len(m.ToolResults) > 0:
			parts := make([]*genai.Part, 0, len(m.ToolResults))
			for _, tr := range m.ToolResults {
				resp := map[string]any{}
				_ = json.Unmarshal([]byte(tr.ResultJSON()), &resp)
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: tr.CallID, Name: tr.Name, Response: resp}})
			}
			out = append(out, &genai.Content{Role: "user", Parts: parts})
		default:
			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}
			out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return out, nil
}

func mapTools(defs []core.ToolDef) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toSchema(util.SchemaMap(d.JSONSchema)),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toSchema converts a JSON schema map into the OpenAPI subset Gemini accepts.
// Object schemas without properties return nil; Gemini rejects empty objects
// as function parameters.
func toSchema(m map[string]any) *genai.Schema {
	s := &genai.Schema{}
	if d, ok := m["description"].(string); ok {
		s.Description = d
	}
	switch t := m["type"].(type) {
	case string:
		s.Type = schemaType(t)
	case []any:
		// ["string","null"] style unions
		for _, v := range t {
			if ts, ok := v.(string); ok {
				if ts == "null" {
					s.Nullable = genai.Ptr(true)
					continue
				}
				s.Type = schemaType(ts)
			}
		}
	}
	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(e))
		}
	}
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				s.Properties[name] = toSchema(pm)
			}
		}
	}
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if s.Type == genai.TypeObject && len(s.Properties) == 0 {
		return nil
	}
	return s
}

func schemaType(t string) genai.Type {
	switch t {
	case "object":
		return genai.TypeObject
	case "array":
		return genai.TypeArray
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
