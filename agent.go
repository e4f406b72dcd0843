package citysense

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mutablelogic/go-client"

	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/core"
	"github.com/lizzyg/citysense/internal/metrics"
	provfactory "github.com/lizzyg/citysense/internal/providers"
	"github.com/lizzyg/citysense/internal/upstream"
)

// RawClient is implemented by provider adapters.
type RawClient = core.RawClient
type CallParams = core.CallParams
type RawResponse = core.RawResponse

const defaultMaxToolTurns = 10

// Agent binds a model, the tool registry and the system prompt.
// It is stateless across runs; the transcript carries all state.
type Agent struct {
	model        config.ModelConfig
	client       RawClient
	registry     *Registry
	instructions string
	logger       *slog.Logger
	metrics      *metrics.Metrics
	httpClient   *http.Client
	clientOpts   []client.ClientOpt
	maxToolTurns int
}

// Option allows functional configuration.
type Option func(*Agent)

// WithLogger sets a custom slog logger.
func WithLogger(l *slog.Logger) Option { return func(a *Agent) { a.logger = l } }

// WithHTTPClient sets the http.Client used by the model provider.
func WithHTTPClient(c *http.Client) Option { return func(a *Agent) { a.httpClient = c } }

// WithMaxToolTurns sets the maximum number of model calls per run.
func WithMaxToolTurns(n int) Option { return func(a *Agent) { a.maxToolTurns = n } }

// WithMetrics records tool and model calls.
func WithMetrics(m *metrics.Metrics) Option { return func(a *Agent) { a.metrics = m } }

// WithRawClient replaces the configured provider adapter.
func WithRawClient(c RawClient) Option { return func(a *Agent) { a.client = c } }

// WithTools replaces the default lookups.
func WithTools(tools ...Tool) Option {
	return func(a *Agent) { a.registry = NewRegistry(tools...) }
}

// WithInstructions overrides the system prompt.
func WithInstructions(s string) Option { return func(a *Agent) { a.instructions = s } }

// WithClientOptions passes options to the upstream REST clients.
func WithClientOptions(opts ...client.ClientOpt) Option {
	return func(a *Agent) { a.clientOpts = append(a.clientOpts, opts...) }
}

// NewFromFile loads config via internal/config.Load and returns an Agent.
func NewFromFile(opts ...Option) (*Agent, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewAgent(cfg, opts...)
}

// NewAgent validates credentials and builds the agent. Missing credentials
// return a *errors.ConfigError.
func NewAgent(cfg *config.Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mc, err := cfg.Active()
	if err != nil {
		return nil, err
	}
	a := &Agent{
		model:        mc,
		instructions: Instructions,
		logger:       slog.Default(),
		httpClient:   &http.Client{},
		maxToolTurns: cfg.MaxToolTurns,
	}
	if cfg.HTTP.Timeout > 0 {
		a.httpClient.Timeout = cfg.HTTP.Timeout
	}
	for _, o := range opts {
		o(a)
	}
	if a.maxToolTurns <= 0 {
		a.maxToolTurns = defaultMaxToolTurns
	}
	if a.client == nil {
		if a.client, err = provfactory.NewProviderClient(mc, a.httpClient, a.logger); err != nil {
			return nil, err
		}
	}
	if a.registry == nil {
		copts := append(upstream.Options(cfg.HTTP, os.Stderr, Tracer()), a.clientOpts...)
		tools, err := NewDefaultTools(cfg, copts...)
		if err != nil {
			return nil, err
		}
		a.registry = NewRegistry(tools...)
	}
	return a, nil
}

// Registry returns the tools bound to the agent.
func (a *Agent) Registry() *Registry { return a.registry }

// Run is the orchestrator (tool loop). It appends the model's turns to a
// copy of transcript and returns them with the final reply.
//
// Replaying a transcript is idempotent: if it already ends with a final
// assistant reply, that reply is returned without calling the model, and
// tool calls that already have results are never executed again.
func (a *Agent) Run(ctx context.Context, transcript Transcript) (*RunResult, error) {
	if len(transcript) == 0 {
		return nil, moderr.ErrEmptyMessage
	}
	history := transcript.Clone()
	if last := history[len(history)-1]; last.isFinal() {
		return &RunResult{FinalOutput: last.Content, History: history}, nil
	}

	span, ctx := startRunSpan(ctx, a.model.Model)
	res, err := a.run(ctx, history, span)
	span.end(err)
	return res, err
}

func (a *Agent) run(ctx context.Context, history Transcript, span *runSpan) (*RunResult, error) {
	answered := answeredCalls(history)

	// Finish tool calls left pending by an interrupted run.
	if last := history[len(history)-1]; last.Role == RoleAssistant && len(last.ToolCalls) > 0 {
		if results := a.executeCalls(ctx, last.ToolCalls, answered); len(results) > 0 {
			history = append(history, Message{Role: RoleTool, ToolResults: results})
		}
	}

	defs := a.toolDefs()
	var usage Usage
	for turn := 0; turn < a.maxToolTurns; turn++ {
		start := time.Now()
		resp, callErr := a.client.Call(ctx, CallParams{
			Model:       a.model.Model,
			System:      a.instructions,
			Messages:    toCoreMessages(history),
			ToolDefs:    defs,
			MaxTokens:   a.model.MaxOutputTokens,
			Temperature: a.model.Temperature,
		})
		duration := time.Since(start)

		a.logger.InfoContext(ctx, "llm call",
			slog.String("provider", a.model.Provider),
			slog.String("model", a.model.Model),
			slog.Int("turn", turn),
			slog.Int("prompt_tokens", resp.Usage.PromptTokens),
			slog.Int("completion_tokens", resp.Usage.CompletionTokens),
			slog.Int("total_tokens", resp.Usage.TotalTokens),
			slog.Int("tool_calls", len(resp.ToolCalls)),
			slog.Duration("latency", duration),
			slog.Bool("error", callErr != nil),
		)
		a.metrics.ModelCall(a.model.Provider, duration, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, callErr != nil)

		if callErr != nil {
			return nil, callErr
		}
		u := Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		span.addUsage(u)
		usage.PromptTokens += u.PromptTokens
		usage.CompletionTokens += u.CompletionTokens
		usage.TotalTokens += u.TotalTokens

		// STOP: No tool call → Final answer
		if len(resp.ToolCalls) == 0 {
			history = append(history, Message{Role: RoleAssistant, Content: resp.Content})
			return &RunResult{FinalOutput: resp.Content, History: history, Usage: usage}, nil
		}

		calls := make([]ToolCall, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			id := tc.CallID
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			calls[i] = ToolCall{ID: id, Name: tc.Name, Arguments: tc.Args}
		}
		history = append(history, Message{Role: RoleAssistant, Content: resp.Content, ToolCalls: calls})

		// EXECUTE TOOLS sequentially
		if results := a.executeCalls(ctx, calls, answered); len(results) > 0 {
			history = append(history, Message{Role: RoleTool, ToolResults: results})
		}
	}
	return nil, moderr.ErrMaxToolTurns
}

// executeCalls runs each call not already in answered and records it there.
// Failures become error results for the model; they never abort the run.
func (a *Agent) executeCalls(ctx context.Context, calls []ToolCall, answered map[string]bool) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		if answered[call.ID] {
			continue
		}
		answered[call.ID] = true

		out, err := startActiveToolSpan(ctx, call, func(ctx context.Context) (any, error) {
			return a.registry.Invoke(ctx, call.Name, call.Arguments)
		})
		failed := err != nil || failedOutput(out)
		logToolOutcome(ctx, a.logger, call, failed, err)
		a.metrics.ToolCall(call.Name, failed)

		if err != nil {
			results = append(results, ToolResult{CallID: call.ID, Name: call.Name, Output: map[string]string{"error": err.Error()}, IsError: true})
			continue
		}
		results = append(results, ToolResult{CallID: call.ID, Name: call.Name, Output: out, IsError: failed})
	}
	return results
}

func (a *Agent) toolDefs() []core.ToolDef {
	defs := a.registry.Definitions()
	out := make([]core.ToolDef, len(defs))
	for i, d := range defs {
		out[i] = core.ToolDef{Name: d.Name, Description: d.Description, JSONSchema: string(d.Parameters)}
	}
	return out
}

func answeredCalls(history Transcript) map[string]bool {
	answered := make(map[string]bool)
	for _, m := range history {
		for _, r := range m.ToolResults {
			answered[r.CallID] = true
		}
	}
	return answered
}

func toCoreMessages(msgs Transcript) []core.Message {
	out := make([]core.Message, len(msgs))
	for i, m := range msgs {
		cm := core.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, core.ToolCall{CallID: tc.ID, Name: tc.Name, Args: tc.Arguments})
		}
		for _, tr := range m.ToolResults {
			cm.ToolResults = append(cm.ToolResults, core.ToolResult{CallID: tr.CallID, Name: tr.Name, Result: tr.Output})
		}
		out[i] = cm
	}
	return out
}
