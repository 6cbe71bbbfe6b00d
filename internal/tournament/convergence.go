package tournament

import "github.com/papernavigator/papernav/internal/domain"

// ConvergenceDetector decides when ratings have stopped moving.
//
// The primary criterion is a moving average: once at least Window rounds are
// recorded, the run is converged when the mean of the last Window per-round
// mean absolute deltas is below Threshold. When TopK is positive the top-K
// sets of the last two rounds must additionally overlap by at least
// MinOverlap, which guards against a calm average hiding churn at the top.
type ConvergenceDetector struct {
	Window     int
	Threshold  float64
	TopK       int
	MinOverlap float64

	deltas []float64
	tops   [][]string
}

// NewConvergenceDetector builds a detector from the early-stop settings of cfg.
func NewConvergenceDetector(cfg domain.TournamentConfig) *ConvergenceDetector {
	return &ConvergenceDetector{
		Window:     cfg.EarlyStopWindow,
		Threshold:  cfg.EarlyStopThreshold,
		TopK:       cfg.EarlyStopTopK,
		MinOverlap: cfg.EarlyStopOverlap,
	}
}

// Record stores the mean absolute rating change of a finished round together
// with the ranking at the end of that round.
func (d *ConvergenceDetector) Record(meanDelta float64, standings []domain.Standing) {
	d.deltas = append(d.deltas, meanDelta)
	if d.TopK > 0 {
		n := min(d.TopK, len(standings))
		ids := make([]string, n)
		for i := range n {
			ids[i] = standings[i].PaperID
		}
		d.tops = append(d.tops, ids)
	}
}

// Rounds returns how many rounds have been recorded.
func (d *ConvergenceDetector) Rounds() int { return len(d.deltas) }

// MovingAverage returns the mean of the last Window deltas, or false when
// fewer than Window rounds are recorded.
func (d *ConvergenceDetector) MovingAverage() (float64, bool) {
	if d.Window < 1 || len(d.deltas) < d.Window {
		return 0, false
	}
	var sum float64
	for _, v := range d.deltas[len(d.deltas)-d.Window:] {
		sum += v
	}
	return sum / float64(d.Window), true
}

// TopKOverlap returns the share of the latest top-K set that was also in the
// previous round's top-K set, or false when it cannot be computed yet.
func (d *ConvergenceDetector) TopKOverlap() (float64, bool) {
	if d.TopK <= 0 || len(d.tops) < 2 {
		return 0, false
	}
	prev := d.tops[len(d.tops)-2]
	cur := d.tops[len(d.tops)-1]
	if len(cur) == 0 {
		return 1, true
	}
	seen := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		seen[id] = struct{}{}
	}
	shared := 0
	for _, id := range cur {
		if _, ok := seen[id]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(cur)), true
}

// Converged reports whether the recorded history meets the stop criteria.
func (d *ConvergenceDetector) Converged() bool {
	avg, ok := d.MovingAverage()
	if !ok || avg >= d.Threshold {
		return false
	}
	if d.TopK <= 0 {
		return true
	}
	overlap, ok := d.TopKOverlap()
	return ok && overlap >= d.MinOverlap
}
