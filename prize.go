package lottery

// Prize represents one prize tier within a lottery
type Prize struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	// Weight is the relative share in the weighted choice, must be > 0
	Weight int `json:"weight"`

	// Quantity is the total supply; UnlimitedQuantity (-1) means no cap
	Quantity int `json:"quantity"`

	// MaxWinPerUser caps how often one user may win this prize; 0 = unlimited
	MaxWinPerUser int `json:"max_win_per_user"`

	// RemainingQuantity is the mutable remaining supply. Starts equal to
	// Quantity; stays at UnlimitedQuantity for unlimited prizes.
	RemainingQuantity int `json:"remaining_quantity"`
}

// Validate validates the prize configuration
func (p *Prize) Validate() error {
	if p.Name == "" {
		return ErrInvalidPrizeName
	}
	if p.Weight <= 0 {
		return ErrInvalidWeight.WithDetailsf("prize %q: weight %d", p.Name, p.Weight)
	}
	if p.Quantity < 0 && p.Quantity != UnlimitedQuantity {
		return ErrInvalidQuantity.WithDetailsf("prize %q: quantity %d", p.Name, p.Quantity)
	}
	if p.MaxWinPerUser < 0 {
		return ErrInvalidMaxWinPerUser.WithDetailsf("prize %q: max win per user %d", p.Name, p.MaxWinPerUser)
	}
	return nil
}

// Unlimited reports whether the prize has no supply cap
func (p *Prize) Unlimited() bool {
	return p.Quantity == UnlimitedQuantity
}

// Exhausted reports whether the supply is used up
func (p *Prize) Exhausted() bool {
	return !p.Unlimited() && p.RemainingQuantity <= 0
}

// EligibleFor reports whether the prize can be awarded to a user who has
// already won it userWins times
func (p *Prize) EligibleFor(userWins int) bool {
	if p.Exhausted() {
		return false
	}
	if p.MaxWinPerUser > 0 && userWins >= p.MaxWinPerUser {
		return false
	}
	return true
}

// ValidatePrizeList validates a slice of prizes
func ValidatePrizeList(prizes []Prize) error {
	if len(prizes) == 0 {
		return ErrEmptyPrizeList
	}
	for i := range prizes {
		if err := prizes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// weightedPick selects one index from candidates by weight. The random
// value r must be in [0, 1). Selection builds the cumulative distribution
// over the candidate weights and binary-searches it.
func weightedPick(prizes []Prize, candidates []int, r float64) int {
	if len(candidates) == 0 {
		return -1
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	var total int
	for _, idx := range candidates {
		total += prizes[idx].Weight
	}

	cumulative := make([]float64, len(candidates))
	var acc float64
	for i, idx := range candidates {
		acc += float64(prizes[idx].Weight) / float64(total)
		cumulative[i] = acc
	}
	// Force the last bucket to 1.0 so floating point drift cannot leave
	// r outside the distribution.
	cumulative[len(cumulative)-1] = 1.0

	left, right := 0, len(cumulative)-1
	for left <= right {
		mid := left + (right-left)/2
		if cumulative[mid] > r {
			if mid == 0 || cumulative[mid-1] <= r {
				return candidates[mid]
			}
			right = mid - 1
		} else {
			left = mid + 1
		}
	}

	return candidates[len(candidates)-1]
}
