package tournament

import (
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/papernavigator/papernav/internal/domain"
)

// PairingStrategy produces the matches of one round. Implementations are
// called only between rounds, so the players they receive are stable for the
// duration of the call. Fewer than two players always yields no matches.
type PairingStrategy interface {
	NextRound(players []*domain.Player, round int) []domain.Match
}

// NewPairing builds the strategy described by cfg, including the random
// calibration phase when calibration rounds are configured.
func NewPairing(cfg domain.TournamentConfig) PairingStrategy {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var main PairingStrategy
	switch cfg.Pairing {
	case domain.PairingRandom:
		main = NewRandomPairing(seed)
	default:
		main = &SwissPairing{Policy: cfg.RematchPolicy}
	}

	if cfg.CalibrationRounds > 0 && cfg.Pairing != domain.PairingRandom {
		return &CalibratedPairing{
			Rounds: cfg.CalibrationRounds,
			Warmup: NewRandomPairing(seed),
			Main:   main,
		}
	}
	return main
}

// SwissPairing pairs players of similar rating. Players are ordered as in a
// ranking snapshot; with an odd pool the lowest-ranked player with the fewest
// byes sits out. Each unpaired player, top-down, meets the closest-rated
// unpaired player it has not played yet, backtracking when a greedy choice
// would force a rematch further down. Only when no rematch-free pairing
// exists does Policy pick opponents among players already met.
type SwissPairing struct {
	Policy domain.RematchPolicy
}

// NextRound implements PairingStrategy.
func (s *SwissPairing) NextRound(players []*domain.Player, round int) []domain.Match {
	if len(players) < 2 {
		return nil
	}

	ordered := make([]*domain.Player, len(players))
	copy(ordered, players)
	sortPlayers(ordered)

	if len(ordered)%2 == 1 {
		bye := byeCandidate(ordered)
		ordered = append(ordered[:bye], ordered[bye+1:]...)
	}

	if pairs, ok := freshPairing(ordered); ok {
		matches := make([]domain.Match, 0, len(pairs))
		for _, pr := range pairs {
			matches = append(matches, domain.Match{
				PlayerA: ordered[pr[0]].ID(),
				PlayerB: ordered[pr[1]].ID(),
				Round:   round,
			})
		}
		return matches
	}

	paired := make([]bool, len(ordered))
	matches := make([]domain.Match, 0, len(ordered)/2)
	for i := range ordered {
		if paired[i] {
			continue
		}
		j := s.opponentFor(ordered, paired, i)
		if j < 0 {
			break
		}
		paired[i], paired[j] = true, true
		matches = append(matches, domain.Match{
			PlayerA: ordered[i].ID(),
			PlayerB: ordered[j].ID(),
			Round:   round,
		})
	}
	return matches
}

// opponentFor returns the index of the opponent for ordered[i], or -1 when
// nobody is left. Candidates below i are in descending rating order, so the
// first eligible one is also the closest rated.
func (s *SwissPairing) opponentFor(ordered []*domain.Player, paired []bool, i int) int {
	p := ordered[i]
	fallback := -1
	for j := i + 1; j < len(ordered); j++ {
		if paired[j] {
			continue
		}
		if !p.HasPlayed(ordered[j].ID()) {
			return j
		}
		if fallback < 0 {
			fallback = j
			continue
		}
		if s.Policy == domain.RematchLeastRecent &&
			p.LastMet(ordered[j].ID()) < p.LastMet(ordered[fallback].ID()) {
			fallback = j
		}
	}
	return fallback
}

// maxPairingSteps bounds the rematch-free search; past it the greedy pass
// with the rematch policy takes over.
const maxPairingSteps = 20000

// freshPairing searches for a full pairing of ordered without rematches.
// Each player, top-down, tries unplayed opponents closest in rating first,
// backtracking when the remaining players cannot all be paired. It reports
// false when no such pairing exists or the search gives up.
func freshPairing(ordered []*domain.Player) ([][2]int, bool) {
	paired := make([]bool, len(ordered))
	pairs := make([][2]int, 0, len(ordered)/2)
	steps := 0

	var search func() bool
	search = func() bool {
		i := 0
		for i < len(ordered) && paired[i] {
			i++
		}
		if i == len(ordered) {
			return true
		}
		paired[i] = true
		for j := i + 1; j < len(ordered); j++ {
			if paired[j] || ordered[i].HasPlayed(ordered[j].ID()) {
				continue
			}
			if steps++; steps > maxPairingSteps {
				break
			}
			paired[j] = true
			pairs = append(pairs, [2]int{i, j})
			if search() {
				return true
			}
			pairs = pairs[:len(pairs)-1]
			paired[j] = false
		}
		paired[i] = false
		return false
	}

	if !search() {
		return nil, false
	}
	return pairs, true
}

// byeCandidate picks, from the bottom of the ranking, the player with the
// fewest byes so far.
func byeCandidate(ordered []*domain.Player) int {
	best := len(ordered) - 1
	for i := len(ordered) - 2; i >= 0; i-- {
		if ordered[i].Byes < ordered[best].Byes {
			best = i
		}
	}
	return best
}

// RandomPairing shuffles the pool with a seeded source and pairs neighbours.
// With an odd pool the last player after the shuffle gets the bye. Two
// strategies built from the same seed produce the same sequence of rounds
// for the same sequence of inputs.
type RandomPairing struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPairing returns a RandomPairing seeded with seed.
func NewRandomPairing(seed int64) *RandomPairing {
	return &RandomPairing{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))}
}

// NextRound implements PairingStrategy.
func (r *RandomPairing) NextRound(players []*domain.Player, round int) []domain.Match {
	if len(players) < 2 {
		return nil
	}

	ordered := make([]*domain.Player, len(players))
	copy(ordered, players)
	// Shuffle from insertion order so the result depends only on the seed.
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seed < ordered[j].Seed })

	r.mu.Lock()
	r.rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	r.mu.Unlock()

	matches := make([]domain.Match, 0, len(ordered)/2)
	for i := 0; i+1 < len(ordered); i += 2 {
		matches = append(matches, domain.Match{
			PlayerA: ordered[i].ID(),
			PlayerB: ordered[i+1].ID(),
			Round:   round,
		})
	}
	return matches
}

// CalibratedPairing plays the first Rounds rounds with Warmup and every later
// round with Main.
type CalibratedPairing struct {
	Rounds int
	Warmup PairingStrategy
	Main   PairingStrategy
}

// NextRound implements PairingStrategy.
func (c *CalibratedPairing) NextRound(players []*domain.Player, round int) []domain.Match {
	if round <= c.Rounds {
		return c.Warmup.NextRound(players, round)
	}
	return c.Main.NextRound(players, round)
}

// Byes lists the IDs of players that do not appear in any match, in the
// order they appear in players.
func Byes(players []*domain.Player, matches []domain.Match) []string {
	inMatch := make(map[string]struct{}, len(matches)*2)
	for _, m := range matches {
		inMatch[m.PlayerA] = struct{}{}
		inMatch[m.PlayerB] = struct{}{}
	}
	var out []string
	for _, p := range players {
		if _, ok := inMatch[p.ID()]; !ok {
			out = append(out, p.ID())
		}
	}
	return out
}
