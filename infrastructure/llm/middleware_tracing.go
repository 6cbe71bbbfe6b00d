package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/papernavigator/papernav/infrastructure/llm"

type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware wraps every request in an "llm.request" span from the
// global tracer provider.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithTracer(serviceName, otel.Tracer(tracerName))
}

// TracingMiddlewareWithTracer is TracingMiddleware with an explicit tracer.
func TracingMiddlewareWithTracer(serviceName string, tracer trace.Tracer) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, serviceName: serviceName, tracer: tracer}
	}
}

func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(prompt)),
		))
	defer span.End()

	response, in, out, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, in, out, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", in),
		attribute.Int("llm.tokens.output", out),
		attribute.Int("llm.response.length", len(response)),
	)
	span.SetStatus(codes.Ok, "")
	return response, in, out, nil
}

func (t *tracedLLM) GetModel() string  { return t.next.GetModel() }
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
