// Package tournament implements the pairwise ELO tournament: the rating
// store, pairing strategies, the bounded concurrent match executor, the
// convergence detector and the controller that drives rounds.
package tournament

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/papernavigator/papernav/internal/domain"
)

// ExpectedScore returns the probability that a player rated ra beats a
// player rated rb under the logistic ELO model.
func ExpectedScore(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (rb-ra)/400.0))
}

// RatingStore owns every player of a tournament. All mutation goes through
// ApplyOutcome, RecordBye and CloseRound, which serialize on a single mutex
// so a match update is applied to both players or to neither.
type RatingStore struct {
	mu      sync.Mutex
	players []*domain.Player
	byID    map[string]*domain.Player
	// lastClose holds each player's rating at the previous CloseRound.
	lastClose []float64
}

// NewRatingStore creates one player per unique paper ID with the given
// starting rating. Duplicated IDs are dropped, keeping the first occurrence;
// the dropped IDs are returned so callers can report them.
func NewRatingStore(papers []domain.Paper, initialRating float64) (*RatingStore, []string) {
	s := &RatingStore{
		players: make([]*domain.Player, 0, len(papers)),
		byID:    make(map[string]*domain.Player, len(papers)),
	}
	var dropped []string
	for _, p := range papers {
		if _, dup := s.byID[p.ID]; dup {
			dropped = append(dropped, p.ID)
			continue
		}
		pl := domain.NewPlayer(p, initialRating, len(s.players))
		s.players = append(s.players, pl)
		s.byID[p.ID] = pl
	}
	s.lastClose = make([]float64, len(s.players))
	for i, pl := range s.players {
		s.lastClose[i] = pl.Rating
	}
	return s, dropped
}

// Len returns the number of players.
func (s *RatingStore) Len() int { return len(s.players) }

// Players returns the players in insertion order. The pointers are shared
// with the store: callers may read them only while no round is executing.
func (s *RatingStore) Players() []*domain.Player {
	out := make([]*domain.Player, len(s.players))
	copy(out, s.players)
	return out
}

// Paper returns the paper registered under id.
func (s *RatingStore) Paper(id string) (domain.Paper, bool) {
	pl, ok := s.byID[id]
	if !ok {
		return domain.Paper{}, false
	}
	return pl.Paper, true
}

// Rating returns the current rating of id.
func (s *RatingStore) Rating(id string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.byID[id]
	if !ok {
		return 0, false
	}
	return pl.Rating, true
}

// ApplyOutcome updates both players of a decided outcome with the standard
// ELO rule and records the match in their histories. Error outcomes are
// recorded in history only. Their ratings and opponent sets are left
// untouched so the pair may be drawn again later. The returned deltas are
// zero when applied is false.
func (s *RatingStore) ApplyOutcome(o domain.MatchOutcome, k float64) (deltaA, deltaB float64, applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[o.Match.PlayerA]
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, o.Match.PlayerA)
	}
	b, ok := s.byID[o.Match.PlayerB]
	if !ok {
		return 0, 0, false, fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, o.Match.PlayerB)
	}

	round := o.Match.Round
	sa, sb, decided := o.Scores()
	if !decided {
		a.Failed++
		b.Failed++
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		a.History = append(a.History, domain.MatchRecord{
			Round: round, OpponentID: b.ID(), Result: domain.ResultError,
			RatingBefore: a.Rating, RatingAfter: a.Rating, Error: msg,
		})
		b.History = append(b.History, domain.MatchRecord{
			Round: round, OpponentID: a.ID(), Result: domain.ResultError,
			RatingBefore: b.Rating, RatingAfter: b.Rating, Error: msg,
		})
		return 0, 0, false, nil
	}

	ea := ExpectedScore(a.Rating, b.Rating)
	eb := 1 - ea
	deltaA = k * (sa - ea)
	deltaB = k * (sb - eb)
	if !isFinite(a.Rating+deltaA) || !isFinite(b.Rating+deltaB) {
		return 0, 0, false, fmt.Errorf("rating update for %s produced a non-finite value", o.Match)
	}

	a.Opponents[b.ID()] = round
	b.Opponents[a.ID()] = round

	beforeA, beforeB := a.Rating, b.Rating
	a.Rating += deltaA
	b.Rating += deltaB

	ra, rb := resultsFor(o.Kind())
	countResult(a, ra)
	countResult(b, rb)
	a.History = append(a.History, domain.MatchRecord{
		Round: round, OpponentID: b.ID(), Result: ra,
		RatingBefore: beforeA, RatingAfter: a.Rating, Reasoning: o.Judgment.Reasoning,
	})
	b.History = append(b.History, domain.MatchRecord{
		Round: round, OpponentID: a.ID(), Result: rb,
		RatingBefore: beforeB, RatingAfter: b.Rating, Reasoning: o.Judgment.Reasoning,
	})
	return deltaA, deltaB, true, nil
}

// RecordBye notes that id sat out round.
func (s *RatingStore) RecordBye(id string, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownPlayer, id)
	}
	pl.Byes++
	pl.History = append(pl.History, domain.MatchRecord{
		Round: round, Result: domain.ResultBye, RatingBefore: pl.Rating, RatingAfter: pl.Rating,
	})
	return nil
}

// CloseRound appends every player's current rating to its history and
// returns the mean absolute rating change since the previous close. Players
// with a bye contribute a zero change.
func (s *RatingStore) CloseRound() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.players) == 0 {
		return 0
	}
	var total float64
	for i, pl := range s.players {
		total += math.Abs(pl.Rating - s.lastClose[i])
		s.lastClose[i] = pl.Rating
		pl.RatingHistory = append(pl.RatingHistory, pl.Rating)
	}
	return total / float64(len(s.players))
}

// Snapshot returns an immutable ranking: rating descending, then more wins,
// then fewer matches played, then insertion order.
func (s *RatingStore) Snapshot() []domain.Standing {
	s.mu.Lock()
	ordered := make([]*domain.Player, len(s.players))
	copy(ordered, s.players)
	sortPlayers(ordered)
	out := make([]domain.Standing, len(ordered))
	for i, pl := range ordered {
		out[i] = domain.StandingOf(pl, i+1)
	}
	s.mu.Unlock()
	return out
}

// sortPlayers orders players by the snapshot ranking rule.
func sortPlayers(players []*domain.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.MatchesPlayed() != b.MatchesPlayed() {
			return a.MatchesPlayed() < b.MatchesPlayed()
		}
		return a.Seed < b.Seed
	})
}

func resultsFor(kind domain.OutcomeKind) (a, b domain.Result) {
	switch kind {
	case domain.OutcomeWinA:
		return domain.ResultWin, domain.ResultLoss
	case domain.OutcomeWinB:
		return domain.ResultLoss, domain.ResultWin
	default:
		return domain.ResultDraw, domain.ResultDraw
	}
}

func countResult(p *domain.Player, r domain.Result) {
	switch r {
	case domain.ResultWin:
		p.Wins++
	case domain.ResultLoss:
		p.Losses++
	case domain.ResultDraw:
		p.Draws++
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
