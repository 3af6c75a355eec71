package lottery

// Outcome is the result of one draw decision
type Outcome struct {
	Won        bool
	PrizeIndex int // index into the snapshot's prize list; -1 when not won
}

// NoWin is the losing outcome
var NoWin = Outcome{Won: false, PrizeIndex: -1}

// PrizeSnapshot is the per-prize view a policy decides over
type PrizeSnapshot struct {
	Weight        int
	Remaining     int // UnlimitedQuantity means no cap
	MaxWinPerUser int // 0 = unlimited
	UserWins      int // how often the drawing user already won this prize
}

// eligible mirrors Prize.EligibleFor on the snapshot
func (ps *PrizeSnapshot) eligible() bool {
	if ps.Remaining != UnlimitedQuantity && ps.Remaining <= 0 {
		return false
	}
	if ps.MaxWinPerUser > 0 && ps.UserWins >= ps.MaxWinPerUser {
		return false
	}
	return true
}

// DrawSnapshot is the immutable view of lottery and participant state a
// policy decides over. Policies are pure functions of this snapshot and
// the injected random source.
type DrawSnapshot struct {
	BaseProbability float64
	Prizes          []PrizeSnapshot

	// RemainingAttempts estimates how many more attempts the campaign can
	// see under its participation limits; 0 means no estimate is possible.
	// Only exhaust mode consumes it.
	RemainingAttempts int
}

func (s *DrawSnapshot) eligibleIndices() []int {
	candidates := make([]int, 0, len(s.Prizes))
	for i := range s.Prizes {
		if s.Prizes[i].eligible() {
			candidates = append(candidates, i)
		}
	}
	return candidates
}

// pickWeighted selects among candidate snapshot indices by weight
func (s *DrawSnapshot) pickWeighted(candidates []int, r float64) int {
	prizes := make([]Prize, len(s.Prizes))
	for i := range s.Prizes {
		prizes[i].Weight = s.Prizes[i].Weight
	}
	return weightedPick(prizes, candidates, r)
}

// ProbabilityPolicy decides the outcome of one participation attempt
type ProbabilityPolicy interface {
	Decide(snap *DrawSnapshot, rnd RandomSource) (Outcome, error)
}

// PolicyFor returns the policy implementing the given mode
func PolicyFor(mode ProbabilityMode) ProbabilityPolicy {
	switch mode {
	case ModeExhaust:
		return exhaustPolicy{}
	case ModeDynamic:
		return dynamicPolicy{}
	default:
		return fixedPolicy{}
	}
}

// fixedPolicy draws against the base probability, then picks a prize by
// weighted choice over the eligible prizes
type fixedPolicy struct{}

func (fixedPolicy) Decide(snap *DrawSnapshot, rnd RandomSource) (Outcome, error) {
	return decideWithProbability(snap, rnd, snap.BaseProbability)
}

// dynamicPolicy is a placeholder reserved for future refinement. It must
// keep the exact numeric behavior of fixedPolicy.
type dynamicPolicy struct{}

func (dynamicPolicy) Decide(snap *DrawSnapshot, rnd RandomSource) (Outcome, error) {
	return decideWithProbability(snap, rnd, snap.BaseProbability)
}

// exhaustPolicy raises the win probability as the remaining finite supply
// grows relative to the remaining attempts budget, so supply is depleted
// by campaign end. Probability is base + (1-base)*min(1, supply/attempts):
// non-decreasing in the supply-to-opportunity ratio, bounded in [0,1], and
// deterministically NoWin once nothing is eligible.
type exhaustPolicy struct{}

func (exhaustPolicy) Decide(snap *DrawSnapshot, rnd RandomSource) (Outcome, error) {
	candidates := snap.eligibleIndices()
	if len(candidates) == 0 {
		return NoWin, nil
	}

	var supply int
	for _, idx := range candidates {
		if snap.Prizes[idx].Remaining != UnlimitedQuantity {
			supply += snap.Prizes[idx].Remaining
		}
	}

	p := snap.BaseProbability
	if supply > 0 {
		attempts := snap.RemainingAttempts
		if attempts <= 0 {
			attempts = DefaultExhaustHorizon
		}
		ratio := float64(supply) / float64(attempts)
		if ratio > 1 {
			ratio = 1
		}
		p = snap.BaseProbability + (1-snap.BaseProbability)*ratio
	}

	return decideAmong(snap, rnd, p, candidates)
}

func decideWithProbability(snap *DrawSnapshot, rnd RandomSource, p float64) (Outcome, error) {
	candidates := snap.eligibleIndices()
	return decideAmong(snap, rnd, p, candidates)
}

func decideAmong(snap *DrawSnapshot, rnd RandomSource, p float64, candidates []int) (Outcome, error) {
	r, err := rnd.Float64()
	if err != nil {
		return NoWin, err
	}
	if r >= p {
		return NoWin, nil
	}
	// The probability check passed but nothing may be awardable
	if len(candidates) == 0 {
		return NoWin, nil
	}

	pick, err := rnd.Float64()
	if err != nil {
		return NoWin, err
	}
	idx := snap.pickWeighted(candidates, pick)
	if idx < 0 {
		return NoWin, nil
	}
	return Outcome{Won: true, PrizeIndex: idx}, nil
}
