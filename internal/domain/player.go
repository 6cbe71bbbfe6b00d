package domain

// Player is a paper's mutable tournament record. Players are owned by the
// rating store; code outside the store only reads them between rounds.
type Player struct {
	Paper  Paper
	Rating float64

	Wins   int
	Losses int
	Draws  int
	Byes   int
	// Failed counts matches that ended in a comparator error.
	Failed int

	// RatingHistory holds the rating after each completed round.
	RatingHistory []float64
	// Opponents maps an opponent ID to the last round the two met.
	Opponents map[string]int
	History   []MatchRecord

	// Seed is the insertion index, used as the final ordering tie-break.
	Seed int
}

// NewPlayer creates a player for p with the given starting rating.
func NewPlayer(p Paper, rating float64, seed int) *Player {
	return &Player{
		Paper:     p,
		Rating:    rating,
		Opponents: make(map[string]int),
		Seed:      seed,
	}
}

// ID returns the identifier of the underlying paper.
func (p *Player) ID() string { return p.Paper.ID }

// MatchesPlayed returns the number of decided matches (errors excluded).
func (p *Player) MatchesPlayed() int { return p.Wins + p.Losses + p.Draws }

// HasPlayed reports whether the player has met opponentID in any round.
func (p *Player) HasPlayed(opponentID string) bool {
	_, ok := p.Opponents[opponentID]
	return ok
}

// LastMet returns the last round in which the player met opponentID, or 0.
func (p *Player) LastMet(opponentID string) int {
	return p.Opponents[opponentID]
}

// Standing is an immutable row of a ranking snapshot.
type Standing struct {
	Rank          int     `json:"rank" yaml:"rank"`
	PaperID       string  `json:"paper_id" yaml:"paper_id"`
	Title         string  `json:"title" yaml:"title"`
	Year          int     `json:"year,omitempty" yaml:"year,omitempty"`
	CitationCount int     `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	Rating        float64 `json:"elo_rating" yaml:"elo_rating"`
	Wins          int     `json:"wins" yaml:"wins"`
	Losses        int     `json:"losses" yaml:"losses"`
	Draws         int     `json:"draws" yaml:"draws"`
	MatchesPlayed int     `json:"matches_played" yaml:"matches_played"`

	// Paper keeps the full candidate for exporters that need more than the
	// summary fields above.
	Paper Paper `json:"-" yaml:"-"`
}

// StandingOf builds a Standing from the current state of p.
func StandingOf(p *Player, rank int) Standing {
	return Standing{
		Rank:          rank,
		PaperID:       p.Paper.ID,
		Title:         p.Paper.Title,
		Year:          p.Paper.Year,
		CitationCount: p.Paper.CitationCount,
		Rating:        p.Rating,
		Wins:          p.Wins,
		Losses:        p.Losses,
		Draws:         p.Draws,
		MatchesPlayed: p.MatchesPlayed(),
		Paper:         p.Paper,
	}
}
