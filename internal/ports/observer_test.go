package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/papernavigator/papernav/internal/domain"
)

func TestMultiObserver_FansOutInOrder(t *testing.T) {
	var calls []string
	first := ObserverFuncs{
		Match: func(context.Context, domain.MatchOutcome) { calls = append(calls, "first-match") },
		Round: func(context.Context, domain.RoundEvent) { calls = append(calls, "first-round") },
	}
	second := ObserverFuncs{
		Round: func(context.Context, domain.RoundEvent) { calls = append(calls, "second-round") },
	}
	obs := MultiObserver{first, nil, second, NopObserver{}}

	obs.OnMatchComplete(context.Background(), domain.MatchOutcome{})
	obs.OnRoundComplete(context.Background(), domain.RoundEvent{})

	assert.Equal(t, []string{"first-match", "first-round", "second-round"}, calls)
}

func TestComparatorFunc_DelegatesToFunction(t *testing.T) {
	cmp := ComparatorFunc(func(_ context.Context, a, b domain.Paper, query string) (domain.Judgment, error) {
		if a.ID == b.ID {
			return domain.Judgment{}, errors.New("self match")
		}
		return domain.Judgment{Verdict: domain.VerdictA, Reasoning: query}, nil
	})

	j, err := cmp.Compare(context.Background(), domain.Paper{ID: "a"}, domain.Paper{ID: "b"}, "q")
	assert.NoError(t, err)
	assert.Equal(t, domain.VerdictA, j.Verdict)
	assert.Equal(t, "q", j.Reasoning)

	_, err = cmp.Compare(context.Background(), domain.Paper{ID: "a"}, domain.Paper{ID: "a"}, "q")
	assert.Error(t, err)
}

func TestLLMError_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", ErrRateLimited, true},
		{"unavailable", ErrServiceUnavailable, true},
		{"timeout", ErrTimeout, true},
		{"invalid response", ErrInvalidResponse, false},
		{"budget", ErrBudgetExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewLLMError("gpt-4o", "compare", tt.err)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, err.Error(), "model=gpt-4o")
		})
	}
}
