package domain

import "time"

// Status is the lifecycle state of a tournament run.
type Status string

// Lifecycle states. A run moves INITIALIZED -> RUNNING -> TERMINATED and
// never goes back.
const (
	StatusInitialized Status = "INITIALIZED"
	StatusRunning     Status = "RUNNING"
	StatusTerminated  Status = "TERMINATED"
)

// TerminationReason explains why a run stopped.
type TerminationReason string

// Termination reasons.
const (
	ReasonConverged       TerminationReason = "CONVERGED"
	ReasonMaxRounds       TerminationReason = "MAX_ROUNDS_REACHED"
	ReasonNoPairsPossible TerminationReason = "NO_PAIRS_POSSIBLE"
	ReasonCanceled        TerminationReason = "CANCELED"
)

// TournamentState is the controller-owned view of a run in progress.
type TournamentState struct {
	RunID  string
	Round  int
	Status Status
	Reason TerminationReason
	Config TournamentConfig
}

// RoundSummary counts what happened during one round.
type RoundSummary struct {
	Round     int `json:"round" yaml:"round"`
	Scheduled int `json:"scheduled" yaml:"scheduled"`
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
	Draws     int `json:"draws" yaml:"draws"`
	Byes      int `json:"byes" yaml:"byes"`
	// MeanDelta is the mean absolute rating change across all players.
	MeanDelta float64       `json:"mean_delta" yaml:"mean_delta"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

// RoundEvent is published after every completed round.
type RoundEvent struct {
	RunID       string
	Summary     RoundSummary
	Leaderboard []Standing
}

// TournamentResult is the final output of a run. It is returned even when a
// run ends early.
type TournamentResult struct {
	RunID         string            `json:"run_id" yaml:"run_id"`
	Query         string            `json:"query" yaml:"query"`
	Reason        TerminationReason `json:"termination_reason" yaml:"termination_reason"`
	Rounds        int               `json:"rounds" yaml:"rounds"`
	MatchesPlayed int               `json:"matches_played" yaml:"matches_played"`
	MatchesFailed int               `json:"matches_failed" yaml:"matches_failed"`
	Byes          int               `json:"byes" yaml:"byes"`
	Standings     []Standing        `json:"standings" yaml:"standings"`
	RoundLog      []RoundSummary    `json:"round_log,omitempty" yaml:"round_log,omitempty"`
	Config        TournamentConfig  `json:"config" yaml:"config"`
	StartedAt     time.Time         `json:"started_at" yaml:"started_at"`
	Duration      time.Duration     `json:"duration" yaml:"duration"`
}

// Top returns at most n leading standings. A non-positive n returns them all.
func (r *TournamentResult) Top(n int) []Standing {
	if n <= 0 || n > len(r.Standings) {
		n = len(r.Standings)
	}
	return r.Standings[:n]
}
