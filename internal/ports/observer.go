package ports

import (
	"context"

	"github.com/papernavigator/papernav/internal/domain"
)

// ProgressObserver receives tournament progress. OnMatchComplete is called
// concurrently from executor goroutines; OnRoundComplete is called from the
// controller goroutine once per round. Implementations must not block for
// long since both run on the tournament's critical path.
type ProgressObserver interface {
	OnMatchComplete(ctx context.Context, outcome domain.MatchOutcome)
	OnRoundComplete(ctx context.Context, event domain.RoundEvent)
}

// ObserverFuncs adapts optional callbacks to ProgressObserver. Nil fields are
// skipped.
type ObserverFuncs struct {
	Match func(ctx context.Context, outcome domain.MatchOutcome)
	Round func(ctx context.Context, event domain.RoundEvent)
}

// OnMatchComplete implements ProgressObserver.
func (o ObserverFuncs) OnMatchComplete(ctx context.Context, outcome domain.MatchOutcome) {
	if o.Match != nil {
		o.Match(ctx, outcome)
	}
}

// OnRoundComplete implements ProgressObserver.
func (o ObserverFuncs) OnRoundComplete(ctx context.Context, event domain.RoundEvent) {
	if o.Round != nil {
		o.Round(ctx, event)
	}
}

// MultiObserver fans events out to every observer in order.
type MultiObserver []ProgressObserver

// OnMatchComplete implements ProgressObserver.
func (m MultiObserver) OnMatchComplete(ctx context.Context, outcome domain.MatchOutcome) {
	for _, o := range m {
		if o != nil {
			o.OnMatchComplete(ctx, outcome)
		}
	}
}

// OnRoundComplete implements ProgressObserver.
func (m MultiObserver) OnRoundComplete(ctx context.Context, event domain.RoundEvent) {
	for _, o := range m {
		if o != nil {
			o.OnRoundComplete(ctx, event)
		}
	}
}

// NopObserver discards all events.
type NopObserver struct{}

// OnMatchComplete implements ProgressObserver.
func (NopObserver) OnMatchComplete(context.Context, domain.MatchOutcome) {}

// OnRoundComplete implements ProgressObserver.
func (NopObserver) OnRoundComplete(context.Context, domain.RoundEvent) {}
