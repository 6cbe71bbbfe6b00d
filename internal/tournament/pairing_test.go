package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papernavigator/papernav/internal/domain"
	"github.com/papernavigator/papernav/internal/testutils"
)

func playersWithRatings(ratings map[string]float64, order ...string) []*domain.Player {
	out := make([]*domain.Player, len(order))
	for i, id := range order {
		out[i] = domain.NewPlayer(domain.Paper{ID: id}, ratings[id], i)
	}
	return out
}

func matchIDs(matches []domain.Match) [][2]string {
	out := make([][2]string, len(matches))
	for i, m := range matches {
		out[i] = [2]string{m.PlayerA, m.PlayerB}
	}
	return out
}

func assertValidRound(t *testing.T, players []*domain.Player, matches []domain.Match) {
	t.Helper()
	seen := make(map[string]bool)
	for _, m := range matches {
		assert.NotEqual(t, m.PlayerA, m.PlayerB, "a player cannot meet itself")
		assert.False(t, seen[m.PlayerA], "%s paired twice", m.PlayerA)
		assert.False(t, seen[m.PlayerB], "%s paired twice", m.PlayerB)
		seen[m.PlayerA], seen[m.PlayerB] = true, true
	}
	assert.Len(t, matches, len(players)/2)
}

func TestSwissPairing_PairsAdjacentRatings(t *testing.T) {
	ratings := map[string]float64{"a": 1400, "b": 1600, "c": 1550, "d": 1450}
	players := playersWithRatings(ratings, "a", "b", "c", "d")

	matches := (&SwissPairing{}).NextRound(players, 3)

	assert.Equal(t, [][2]string{{"b", "c"}, {"d", "a"}}, matchIDs(matches))
	for _, m := range matches {
		assert.Equal(t, 3, m.Round)
	}
}

func TestSwissPairing_AvoidsRematches(t *testing.T) {
	ratings := map[string]float64{"a": 1600, "b": 1590, "c": 1500, "d": 1400}
	players := playersWithRatings(ratings, "a", "b", "c", "d")
	players[0].Opponents["b"] = 1
	players[1].Opponents["a"] = 1

	matches := (&SwissPairing{}).NextRound(players, 2)

	assert.Equal(t, [][2]string{{"a", "c"}, {"b", "d"}}, matchIDs(matches))
}

func TestSwissPairing_BacktracksToAvoidForcedRematch(t *testing.T) {
	// Given six players where a-b and e-f already met, so the greedy
	// choice b-d would leave e and f only each other
	ratings := map[string]float64{"a": 1600, "b": 1580, "c": 1560, "d": 1540, "e": 1520, "f": 1500}
	players := playersWithRatings(ratings, "a", "b", "c", "d", "e", "f")
	meet := func(x, y int) {
		players[x].Opponents[players[y].ID()] = 1
		players[y].Opponents[players[x].ID()] = 1
	}
	meet(0, 1)
	meet(4, 5)

	// When pairing the next round
	matches := (&SwissPairing{}).NextRound(players, 2)

	// Then a pairing without rematches is found
	assertValidRound(t, players, matches)
	assert.Equal(t, [][2]string{{"a", "c"}, {"b", "e"}, {"d", "f"}}, matchIDs(matches))
	byID := make(map[string]*domain.Player, len(players))
	for _, p := range players {
		byID[p.ID()] = p
	}
	for _, m := range matches {
		assert.False(t, byID[m.PlayerA].HasPlayed(m.PlayerB), "%s already met %s", m.PlayerA, m.PlayerB)
	}
}

func TestSwissPairing_AllowsRematchWhenUnavoidable(t *testing.T) {
	// Given two players who already met
	players := playersWithRatings(map[string]float64{"a": 1510, "b": 1490}, "a", "b")
	players[0].Opponents["b"] = 1
	players[1].Opponents["a"] = 1

	// When pairing the next round
	matches := (&SwissPairing{}).NextRound(players, 2)

	// Then the rematch is scheduled rather than stalling
	assert.Equal(t, [][2]string{{"a", "b"}}, matchIDs(matches))
}

func TestSwissPairing_RematchPolicies(t *testing.T) {
	// a has met everyone; b was met in round 3, c in round 1.
	build := func() []*domain.Player {
		ps := playersWithRatings(map[string]float64{"a": 1700, "b": 1600, "c": 1500, "x": 1000, "y": 1000}, "a", "b", "c", "x", "y")
		ps[0].Opponents["b"] = 3
		ps[0].Opponents["c"] = 1
		ps[0].Opponents["x"] = 2
		ps[0].Opponents["y"] = 2
		ps[3].Byes, ps[4].Byes = 1, 1 // keep the bye on c
		return ps
	}

	closest := (&SwissPairing{Policy: domain.RematchClosestRating}).NextRound(build(), 4)
	leastRecent := (&SwissPairing{Policy: domain.RematchLeastRecent}).NextRound(build(), 4)

	require.NotEmpty(t, closest)
	require.NotEmpty(t, leastRecent)
	assert.Equal(t, [2]string{"a", "b"}, matchIDs(closest)[0])
	assert.Equal(t, [2]string{"a", "x"}, matchIDs(leastRecent)[0], "c sits out, x was met before b")
}

func TestSwissPairing_OddPoolGivesByeToLowestWithFewestByes(t *testing.T) {
	ratings := map[string]float64{"a": 1600, "b": 1550, "c": 1500, "d": 1450, "e": 1400}
	players := playersWithRatings(ratings, "a", "b", "c", "d", "e")

	matches := (&SwissPairing{}).NextRound(players, 1)
	assertValidRound(t, players, matches)
	assert.Equal(t, []string{"e"}, Byes(players, matches))

	// Once e has had a bye the next lowest player sits out.
	players[4].Byes = 1
	matches = (&SwissPairing{}).NextRound(players, 2)
	assert.Equal(t, []string{"d"}, Byes(players, matches))
}

func TestPairing_FewerThanTwoPlayers(t *testing.T) {
	strategies := map[string]PairingStrategy{
		"swiss":  &SwissPairing{},
		"random": NewRandomPairing(1),
	}
	for name, s := range strategies {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, s.NextRound(nil, 1))
			assert.Empty(t, s.NextRound(playersWithRatings(map[string]float64{"a": 1500}, "a"), 1))
		})
	}
}

func TestRandomPairing_SameSeedSameRounds(t *testing.T) {
	papers := testutils.NumberedPapers(9)
	mk := func() []*domain.Player {
		store, _ := NewRatingStore(papers, 1500)
		return store.Players()
	}

	r1 := NewRandomPairing(42)
	r2 := NewRandomPairing(42)
	for round := 1; round <= 5; round++ {
		m1 := r1.NextRound(mk(), round)
		m2 := r2.NextRound(mk(), round)
		assert.Equal(t, m1, m2)
		assertValidRound(t, mk(), m1)
		assert.Len(t, Byes(mk(), m1), 1)
	}
}

func TestRandomPairing_IgnoresInputOrder(t *testing.T) {
	store, _ := NewRatingStore(testutils.NumberedPapers(6), 1500)
	players := store.Players()
	reversed := make([]*domain.Player, len(players))
	for i, p := range players {
		reversed[len(players)-1-i] = p
	}

	m1 := NewRandomPairing(5).NextRound(players, 1)
	m2 := NewRandomPairing(5).NextRound(reversed, 1)

	assert.Equal(t, m1, m2)
}

func TestCalibratedPairing_SwitchesAfterWarmup(t *testing.T) {
	var warmupRounds, mainRounds []int
	warmup := pairingFunc(func(_ []*domain.Player, round int) []domain.Match {
		warmupRounds = append(warmupRounds, round)
		return nil
	})
	main := pairingFunc(func(_ []*domain.Player, round int) []domain.Match {
		mainRounds = append(mainRounds, round)
		return nil
	})
	c := &CalibratedPairing{Rounds: 2, Warmup: warmup, Main: main}

	for round := 1; round <= 4; round++ {
		c.NextRound(nil, round)
	}

	assert.Equal(t, []int{1, 2}, warmupRounds)
	assert.Equal(t, []int{3, 4}, mainRounds)
}

func TestNewPairing_FromConfig(t *testing.T) {
	cfg := domain.DefaultTournamentConfig()
	cfg.Seed = 9
	assert.IsType(t, &SwissPairing{}, NewPairing(cfg))

	cfg.CalibrationRounds = 2
	assert.IsType(t, &CalibratedPairing{}, NewPairing(cfg))

	cfg.Pairing = domain.PairingRandom
	assert.IsType(t, &RandomPairing{}, NewPairing(cfg))
}

type pairingFunc func(players []*domain.Player, round int) []domain.Match

func (f pairingFunc) NextRound(players []*domain.Player, round int) []domain.Match {
	return f(players, round)
}
