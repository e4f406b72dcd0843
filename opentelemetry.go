package citysense

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolved on each call so a provider installed after init is honored.
func tracer() trace.Tracer { return otel.Tracer("github.com/lizzyg/citysense") }

// Tracer exposes the package tracer for clients that instrument upstream calls.
func Tracer() trace.Tracer { return tracer() }

type runSpan struct {
	span  trace.Span
	usage Usage
}

func startRunSpan(ctx context.Context, model string) (*runSpan, context.Context) {
	ctx, span := tracer().Start(ctx, "citysense.run")
	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "invoke_agent"),
		attribute.String("gen_ai.agent.name", AgentName),
		attribute.String("gen_ai.request.model", model),
	)
	return &runSpan{span: span}, ctx
}

func (s *runSpan) addUsage(u Usage) {
	s.usage.PromptTokens += u.PromptTokens
	s.usage.CompletionTokens += u.CompletionTokens
	s.usage.TotalTokens += u.TotalTokens
}

func (s *runSpan) end(err error) {
	s.span.SetAttributes(
		attribute.Int64("gen_ai.usage.input_tokens", int64(s.usage.PromptTokens)),
		attribute.Int64("gen_ai.usage.output_tokens", int64(s.usage.CompletionTokens)),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// startActiveToolSpan wraps one tool execution in a span.
func startActiveToolSpan(ctx context.Context, call ToolCall, fn func(context.Context) (any, error)) (any, error) {
	spanCtx, span := tracer().Start(ctx, "citysense.tool")
	defer func() {
		span.SetAttributes(
			attribute.String("gen_ai.operation.name", "execute_tool"),
			attribute.String("gen_ai.tool.call.id", call.ID),
			attribute.String("gen_ai.tool.name", call.Name),
			attribute.String("gen_ai.tool.type", "function"),
		)
		span.End()
	}()

	out, err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
