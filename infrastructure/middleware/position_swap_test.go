package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
	"github.com/papernavigator/papernav/internal/testutils"
)

// scripted returns the judgments in order and records the pairs it saw.
func scripted(js ...domain.Judgment) (ports.Comparator, *[][2]string) {
	var seen [][2]string
	i := 0
	return ports.ComparatorFunc(func(_ context.Context, a, b domain.Paper, _ string) (domain.Judgment, error) {
		seen = append(seen, [2]string{a.ID, b.ID})
		j := js[i]
		i++
		return j, nil
	}), &seen
}

func TestPositionSwapComparator_AgreementKeepsWinner(t *testing.T) {
	// Given a judge that prefers paper a in both orders
	stub := testutils.NewStubComparator(map[string]float64{"a": 2, "b": 1})
	psc := NewPositionSwapComparator(stub, "")
	papers := testutils.Papers("a", "b")

	// When the pair is compared
	j, err := psc.Compare(context.Background(), papers[0], papers[1], "q")

	// Then a wins and both orders were judged
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictA, j.Verdict)
	assert.InDelta(t, 0.9, j.Confidence, 1e-9)
	seen := stub.Seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "a", seen[0].PlayerA)
	assert.Equal(t, "b", seen[1].PlayerA)
}

func TestPositionSwapComparator_DisagreementIsDraw(t *testing.T) {
	// Given a judge that always prefers whichever paper is shown first
	judge, seen := scripted(
		domain.Judgment{Verdict: domain.VerdictA, Confidence: 0.8},
		domain.Judgment{Verdict: domain.VerdictA, Confidence: 0.6},
	)
	psc := NewPositionSwapComparator(judge, "swap")
	papers := testutils.Papers("a", "b")

	j, err := psc.Compare(context.Background(), papers[0], papers[1], "q")

	// Then the positional bias is neutralised into a draw
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictDraw, j.Verdict)
	assert.InDelta(t, 0.7, j.Confidence, 1e-9)
	assert.Contains(t, j.Reasoning, "orders disagree")
	assert.Equal(t, [][2]string{{"a", "b"}, {"b", "a"}}, *seen)
}

func TestPositionSwapComparator_SwappedWinForB(t *testing.T) {
	judge, _ := scripted(
		domain.Judgment{Verdict: domain.VerdictB, Confidence: 1},
		domain.Judgment{Verdict: domain.VerdictA, Confidence: 0.5},
	)
	psc := NewPositionSwapComparator(judge, "swap")
	papers := testutils.Papers("a", "b")

	j, err := psc.Compare(context.Background(), papers[0], papers[1], "q")

	require.NoError(t, err)
	assert.Equal(t, domain.VerdictB, j.Verdict)
	assert.InDelta(t, 0.75, j.Confidence, 1e-9)
}

func TestPositionSwapComparator_PropagatesErrors(t *testing.T) {
	boom := errors.New("judge unavailable")
	stub := testutils.NewStubComparator(nil)
	stub.FailPair("a", "b", boom)
	psc := NewPositionSwapComparator(stub, "swap")
	papers := testutils.Papers("a", "b")

	_, err := psc.Compare(context.Background(), papers[0], papers[1], "q")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "forward comparison failed")
	assert.Equal(t, 1, stub.Calls(), "the reversed run is skipped")
}

func TestPositionSwapComparator_RejectsInvalidRun(t *testing.T) {
	judge, _ := scripted(
		domain.Judgment{Verdict: domain.VerdictA, Confidence: 0.9},
		domain.Judgment{Verdict: domain.VerdictA, Confidence: 3},
	)
	psc := NewPositionSwapComparator(judge, "swap")
	papers := testutils.Papers("a", "b")

	_, err := psc.Compare(context.Background(), papers[0], papers[1], "q")

	assert.ErrorIs(t, err, domain.ErrInvalidJudgment)
	assert.Contains(t, err.Error(), "reversed comparison failed")
}

func TestNewPositionSwapComparator_RequiresNext(t *testing.T) {
	assert.Panics(t, func() { NewPositionSwapComparator(nil, "x") })
	assert.Equal(t, "position_swap", NewPositionSwapComparator(testutils.NewStubComparator(nil), "").Name())
}
