// Package testutils provides deterministic comparators, LLM clients and
// paper fixtures for tests across the module.
package testutils

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/ports"
)

var _ ports.Comparator = (*StubComparator)(nil)

// StubComparator decides matches from a fixed strength table: the stronger
// paper wins and equal strengths draw. Papers missing from the table have
// strength zero. Failure behaviour can be injected per pair.
type StubComparator struct {
	// Strength maps a paper ID to its hidden quality.
	Strength map[string]float64
	// Fail lists pairs (in either order) whose comparison always errors.
	Fail map[[2]string]error
	// FailFirst makes the first N calls for a pair error before succeeding.
	FailFirst int
	// Delay is slept before answering, honouring the context.
	Delay time.Duration
	// IgnoreContext makes Delay ignore cancellation, imitating a stuck judge.
	IgnoreContext bool
	// PanicOn lists pairs whose comparison panics.
	PanicOn map[[2]string]bool

	calls     atomic.Int64
	inFlight  atomic.Int64
	maxFlight atomic.Int64

	mu        sync.Mutex
	pairCalls map[[2]string]int
	seen      []domain.Match
}

// NewStubComparator returns a comparator using strength as its ground truth.
func NewStubComparator(strength map[string]float64) *StubComparator {
	return &StubComparator{
		Strength:  strength,
		Fail:      make(map[[2]string]error),
		PanicOn:   make(map[[2]string]bool),
		pairCalls: make(map[[2]string]int),
	}
}

// FailPair makes every comparison of a and b return err.
func (s *StubComparator) FailPair(a, b string, err error) {
	s.Fail[pairKey(a, b)] = err
}

// Compare implements ports.Comparator.
func (s *StubComparator) Compare(ctx context.Context, a, b domain.Paper, _ string) (domain.Judgment, error) {
	s.calls.Add(1)
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		prev := s.maxFlight.Load()
		if cur <= prev || s.maxFlight.CompareAndSwap(prev, cur) {
			break
		}
	}

	key := pairKey(a.ID, b.ID)
	s.mu.Lock()
	if s.pairCalls == nil {
		s.pairCalls = make(map[[2]string]int)
	}
	s.pairCalls[key]++
	n := s.pairCalls[key]
	s.seen = append(s.seen, domain.Match{PlayerA: a.ID, PlayerB: b.ID})
	s.mu.Unlock()

	if s.Delay > 0 {
		if s.IgnoreContext {
			time.Sleep(s.Delay)
		} else {
			select {
			case <-time.After(s.Delay):
			case <-ctx.Done():
				return domain.Judgment{}, ctx.Err()
			}
		}
	}

	if s.PanicOn[key] {
		panic(fmt.Sprintf("stub comparator panic for %s vs %s", a.ID, b.ID))
	}
	if err, ok := s.Fail[key]; ok {
		return domain.Judgment{}, err
	}
	if n <= s.FailFirst {
		return domain.Judgment{}, fmt.Errorf("transient failure %d for %s vs %s", n, a.ID, b.ID)
	}

	sa, sb := s.Strength[a.ID], s.Strength[b.ID]
	switch {
	case sa > sb:
		return domain.Judgment{Verdict: domain.VerdictA, Confidence: 0.9, Reasoning: a.ID + " is more relevant"}, nil
	case sb > sa:
		return domain.Judgment{Verdict: domain.VerdictB, Confidence: 0.9, Reasoning: b.ID + " is more relevant"}, nil
	default:
		return domain.Judgment{Verdict: domain.VerdictDraw, Confidence: 0.5, Reasoning: "equally relevant"}, nil
	}
}

// Calls returns the total number of Compare calls.
func (s *StubComparator) Calls() int { return int(s.calls.Load()) }

// MaxInFlight returns the highest number of concurrent Compare calls seen.
func (s *StubComparator) MaxInFlight() int { return int(s.maxFlight.Load()) }

// PairCalls returns how often a and b were compared, in either order.
func (s *StubComparator) PairCalls(a, b string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairCalls[pairKey(a, b)]
}

// Seen returns the ordered pairs passed to Compare.
func (s *StubComparator) Seen() []domain.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Match, len(s.seen))
	copy(out, s.seen)
	return out
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// Papers builds papers with the given IDs and titles derived from them.
func Papers(ids ...string) []domain.Paper {
	out := make([]domain.Paper, len(ids))
	for i, id := range ids {
		out[i] = domain.Paper{ID: id, Title: "Paper " + id, Abstract: "Abstract of " + id, Year: 2020 + i%5}
	}
	return out
}

// NumberedPapers builds n papers named p01, p02 and so on.
func NumberedPapers(n int) []domain.Paper {
	ids := make([]string, n)
	for i := range n {
		ids[i] = fmt.Sprintf("p%02d", i+1)
	}
	return Papers(ids...)
}
