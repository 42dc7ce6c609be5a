package puzzle

// Scoring is a linear taper: Base for the first correct answer, Step less for each
// later one, never below Floor.
type Scoring struct {
	Base  int
	Step  int
	Floor int
}

func DefaultScoring() Scoring {
	return Scoring{Base: 10, Step: 2, Floor: 1}
}

// ScoreForRank is total, deterministic, non-negative and non-increasing in rank.
func (s Scoring) ScoreForRank(rank int) int {
	floor := s.Floor
	if floor < 0 {
		floor = 0
	}
	base := s.Base
	if base < floor {
		base = floor
	}
	if rank <= 0 || s.Step <= 0 {
		return base
	}
	// Beyond this rank the taper is under the floor; dividing avoids rank*Step overflow.
	if rank > (base-floor)/s.Step {
		return floor
	}
	return base - rank*s.Step
}
