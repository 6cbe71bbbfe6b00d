// Package middleware provides comparator decorators and metrics adapters
// shared by the ranking engine and its command line front end.
package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

var _ ports.Comparator = (*PositionSwapComparator)(nil)

// PositionSwapComparator mitigates positional bias by judging every pair
// twice, once as (a, b) and once as (b, a). A win is only awarded when both
// orders name the same paper; any disagreement becomes a draw. The combined
// confidence is the arithmetic mean of the two runs.
//
// The comparator is stateless and safe for concurrent use. It doubles the
// number of judge calls per match.
type PositionSwapComparator struct {
	next   ports.Comparator
	name   string
	tracer trace.Tracer
}

// NewPositionSwapComparator wraps next. It panics when next is nil since a
// misconfigured decorator chain is a programming error.
func NewPositionSwapComparator(next ports.Comparator, name string) *PositionSwapComparator {
	if next == nil {
		panic("position swap comparator: next comparator is required")
	}
	if name == "" {
		name = "position_swap"
	}
	return &PositionSwapComparator{
		next:   next,
		name:   name,
		tracer: otel.Tracer("papernav/position-swap"),
	}
}

// Name returns the identifier used in span attributes.
func (p *PositionSwapComparator) Name() string { return p.name }

func (p *PositionSwapComparator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("middleware.name", p.name),
		attribute.String("middleware.type", "position_swap"),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

// Compare implements ports.Comparator. An error from either run fails the
// whole comparison so the engine records a single error outcome.
func (p *PositionSwapComparator) Compare(ctx context.Context, a, b domain.Paper, query string) (domain.Judgment, error) {
	ctx, span := p.startSpan(ctx, "PositionSwapComparator.Compare",
		attribute.String("paper.a", a.ID),
		attribute.String("paper.b", b.ID),
	)
	defer span.End()

	span.AddEvent("dual_execution_started")

	forward, err := p.run(ctx, a, b, query, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward run failed")
		return domain.Judgment{}, fmt.Errorf("forward comparison failed: %w", err)
	}

	reversed, err := p.run(ctx, b, a, query, 1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reversed run failed")
		return domain.Judgment{}, fmt.Errorf("reversed comparison failed: %w", err)
	}

	combined := combine(forward, reversed)
	span.AddEvent("bias_mitigation_completed", trace.WithAttributes(
		attribute.String("verdict", combined.Verdict.String()),
		attribute.Bool("orders_agree", forward.Verdict == reversed.Verdict.Flip()),
	))
	span.SetStatus(codes.Ok, "")
	return combined, nil
}

func (p *PositionSwapComparator) run(ctx context.Context, first, second domain.Paper, query string, idx int) (domain.Judgment, error) {
	ctx, span := p.startSpan(ctx, fmt.Sprintf("PositionSwapComparator.Run%d", idx),
		attribute.Int("run.index", idx),
		attribute.String("paper.first", first.ID),
	)
	defer span.End()

	j, err := p.next.Compare(ctx, first, second, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}
	if err := j.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Judgment{}, err
	}
	span.SetAttributes(
		attribute.String("run.verdict", j.Verdict.String()),
		attribute.Float64("run.confidence", j.Confidence),
	)
	return j, nil
}

// combine merges a forward judgment with one taken in swapped order.
func combine(forward, reversed domain.Judgment) domain.Judgment {
	second := reversed.Verdict.Flip()
	out := domain.Judgment{
		Confidence: (forward.Confidence + reversed.Confidence) / 2,
	}
	if forward.Verdict == second {
		out.Verdict = forward.Verdict
		out.Reasoning = forward.Reasoning
		return out
	}
	out.Verdict = domain.VerdictDraw
	out.Reasoning = fmt.Sprintf("orders disagree (forward=%s, swapped=%s): %s",
		forward.Verdict, second, forward.Reasoning)
	return out
}
