package domain

import (
	"fmt"
	"time"
)

// Verdict identifies which side of a match the judge preferred.
type Verdict int

const (
	// VerdictDraw means the judge found the two papers equally relevant.
	VerdictDraw Verdict = iota
	// VerdictA means the first paper of the pair won.
	VerdictA
	// VerdictB means the second paper of the pair won.
	VerdictB
)

// String returns the wire name of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictA:
		return "A"
	case VerdictB:
		return "B"
	case VerdictDraw:
		return "draw"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	return v == VerdictDraw || v == VerdictA || v == VerdictB
}

// Flip returns the verdict as seen with the two papers swapped.
func (v Verdict) Flip() Verdict {
	switch v {
	case VerdictA:
		return VerdictB
	case VerdictB:
		return VerdictA
	default:
		return v
	}
}

// Judgment is the parsed decision of a comparator for one ordered pair.
// It is produced once at the comparator boundary; the engine never looks at
// raw judge output.
type Judgment struct {
	Verdict Verdict `json:"verdict" yaml:"verdict"`
	// Confidence is the judge's self-reported certainty in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Validate checks that the judgment carries a known verdict and a
// confidence inside [0, 1].
func (j Judgment) Validate() error {
	if !j.Verdict.Valid() {
		return fmt.Errorf("%w: unknown verdict %d", ErrInvalidJudgment, int(j.Verdict))
	}
	if j.Confidence < 0 || j.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidJudgment, j.Confidence)
	}
	return nil
}

// Match pairs two players for a single comparison in a given round.
type Match struct {
	PlayerA string
	PlayerB string
	Round   int
}

// String renders the match for logs.
func (m Match) String() string {
	return fmt.Sprintf("r%d:%s-vs-%s", m.Round, m.PlayerA, m.PlayerB)
}

// OutcomeKind is the tagged variant of a finished match.
type OutcomeKind int

const (
	// OutcomeError means the comparator failed and ratings were left untouched.
	OutcomeError OutcomeKind = iota
	// OutcomeWinA means PlayerA won.
	OutcomeWinA
	// OutcomeWinB means PlayerB won.
	OutcomeWinB
	// OutcomeDraw means the match was drawn.
	OutcomeDraw
)

// String returns a short label suitable for metrics and logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWinA:
		return "win_a"
	case OutcomeWinB:
		return "win_b"
	case OutcomeDraw:
		return "draw"
	default:
		return "error"
	}
}

// MatchOutcome is the result of executing a Match. Exactly one of Judgment
// and Err is meaningful: when Err is non-nil the outcome is an error outcome
// and must not change any rating.
type MatchOutcome struct {
	Match    Match
	Judgment Judgment
	Err      error
	Attempts int
	Latency  time.Duration
}

// Kind classifies the outcome.
func (o MatchOutcome) Kind() OutcomeKind {
	if o.Err != nil {
		return OutcomeError
	}
	switch o.Judgment.Verdict {
	case VerdictA:
		return OutcomeWinA
	case VerdictB:
		return OutcomeWinB
	case VerdictDraw:
		return OutcomeDraw
	default:
		return OutcomeError
	}
}

// Scores returns the actual scores (S_A, S_B) of a decided outcome.
// Error outcomes return ok=false.
func (o MatchOutcome) Scores() (sa, sb float64, ok bool) {
	switch o.Kind() {
	case OutcomeWinA:
		return 1, 0, true
	case OutcomeWinB:
		return 0, 1, true
	case OutcomeDraw:
		return 0.5, 0.5, true
	default:
		return 0, 0, false
	}
}

// Result is the per-player view of a match, recorded in player history.
type Result string

// Per-player results.
const (
	ResultWin   Result = "win"
	ResultLoss  Result = "loss"
	ResultDraw  Result = "draw"
	ResultError Result = "error"
	ResultBye   Result = "bye"
)

// MatchRecord is one entry of a player's audit history.
type MatchRecord struct {
	Round        int     `json:"round" yaml:"round"`
	OpponentID   string  `json:"opponent_id,omitempty" yaml:"opponent_id,omitempty"`
	Result       Result  `json:"result" yaml:"result"`
	RatingBefore float64 `json:"rating_before" yaml:"rating_before"`
	RatingAfter  float64 `json:"rating_after" yaml:"rating_after"`
	Reasoning    string  `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Error        string  `json:"error,omitempty" yaml:"error,omitempty"`
}
