package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

var _ ports.Comparator = (*BudgetComparator)(nil)

// BudgetComparator caps the total number of judge calls made through it.
// Once MaxCalls calls have been admitted every further call fails with an
// error wrapping ports.ErrBudgetExceeded without reaching the wrapped
// comparator. The tournament records those as error outcomes, so ratings
// freeze while the run continues to its normal termination.
type BudgetComparator struct {
	next     ports.Comparator
	maxCalls int64
	used     atomic.Int64
	exceeded atomic.Int64
	metrics  ports.MetricsCollector
}

// NewBudgetComparator wraps next with a call budget. A non-positive
// maxCalls disables the limit. metrics may be nil.
func NewBudgetComparator(next ports.Comparator, maxCalls int, metrics ports.MetricsCollector) *BudgetComparator {
	if next == nil {
		panic("budget comparator: next comparator is required")
	}
	return &BudgetComparator{
		next:     next,
		maxCalls: int64(maxCalls),
		metrics:  metrics,
	}
}

// Compare implements ports.Comparator.
func (b *BudgetComparator) Compare(ctx context.Context, pa, pb domain.Paper, query string) (domain.Judgment, error) {
	n := b.used.Add(1)
	if b.maxCalls > 0 && n > b.maxCalls {
		b.used.Add(-1)
		b.exceeded.Add(1)
		b.onExceeded(ctx)
		return domain.Judgment{}, fmt.Errorf("%w: %d judge calls allowed", ports.ErrBudgetExceeded, b.maxCalls)
	}
	b.record("budget_calls_used", 1)
	if b.maxCalls > 0 {
		b.gauge("budget_remaining_calls", float64(b.maxCalls-n))
	}
	return b.next.Compare(ctx, pa, pb, query)
}

// Used returns the number of calls admitted so far.
func (b *BudgetComparator) Used() int { return int(b.used.Load()) }

// Rejected returns the number of calls refused because the budget was spent.
func (b *BudgetComparator) Rejected() int { return int(b.exceeded.Load()) }

// Remaining returns the calls left, or -1 when the budget is unlimited.
func (b *BudgetComparator) Remaining() int {
	if b.maxCalls <= 0 {
		return -1
	}
	return int(max(b.maxCalls-b.used.Load(), 0))
}

func (b *BudgetComparator) onExceeded(ctx context.Context) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent("budget_exceeded", trace.WithAttributes(
		attribute.Int64("budget.max_calls", b.maxCalls),
		attribute.Int64("budget.rejected", b.exceeded.Load()),
	))
	b.record("budget_exceeded_total", 1)
}

func (b *BudgetComparator) record(metric string, v float64) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordCounter(metric, v, map[string]string{
		"budget_limit": strconv.FormatInt(b.maxCalls, 10),
	})
}

func (b *BudgetComparator) gauge(metric string, v float64) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordGauge(metric, v, nil)
}
