package lottery

import (
	"encoding/json"
	"strings"
	"time"
)

// ProbabilityMode selects the win-probability policy of a lottery
type ProbabilityMode string

const (
	// ModeFixed draws against base_probability on every attempt
	ModeFixed ProbabilityMode = "fixed"

	// ModeDynamic is reserved for future refinement; currently identical to ModeFixed
	ModeDynamic ProbabilityMode = "dynamic"

	// ModeExhaust adapts the win probability so finite supply is depleted
	// by the end of the campaign
	ModeExhaust ProbabilityMode = "exhaust"
)

// Valid reports whether m is one of the recognized modes
func (m ProbabilityMode) Valid() bool {
	switch m {
	case ModeFixed, ModeDynamic, ModeExhaust:
		return true
	}
	return false
}

// ParticipationLimits caps participation per lottery; 0 means unlimited
type ParticipationLimits struct {
	MaxTotalParticipants int `json:"max_total_participants"`
	MaxAttemptsPerUser   int `json:"max_attempts_per_user"`
	MaxWinsPerUser       int `json:"max_wins_per_user"`
}

// Validate validates the participation limits
func (pl *ParticipationLimits) Validate() error {
	if pl.MaxTotalParticipants < 0 {
		return ErrInvalidLimit.WithDetailsf("max_total_participants: %d", pl.MaxTotalParticipants)
	}
	if pl.MaxAttemptsPerUser < 0 {
		return ErrInvalidLimit.WithDetailsf("max_attempts_per_user: %d", pl.MaxAttemptsPerUser)
	}
	if pl.MaxWinsPerUser < 0 {
		return ErrInvalidLimit.WithDetailsf("max_wins_per_user: %d", pl.MaxWinsPerUser)
	}
	return nil
}

// ProbabilitySettings configures the probability policy
type ProbabilitySettings struct {
	Mode            ProbabilityMode `json:"probability_mode"`
	BaseProbability float64         `json:"base_probability"`
}

// Validate validates the probability settings
func (ps *ProbabilitySettings) Validate() error {
	if !ps.Mode.Valid() {
		return ErrInvalidMode.WithDetailsf("probability_mode: %q", ps.Mode)
	}
	if ps.BaseProbability < 0 || ps.BaseProbability > 1 {
		return ErrInvalidProbability.WithDetailsf("base_probability: %v", ps.BaseProbability)
	}
	return nil
}

// LotteryData is the immutable configuration of one lottery campaign
type LotteryData struct {
	Name          string
	Description   string
	StartTime     time.Time
	EndTime       time.Time
	AllowedGroups []string
	Limits        ParticipationLimits
	Probability   ProbabilitySettings
	Prizes        []Prize
}

// lotteryPayload is the JSON wire shape of a creation request. Timestamps
// travel as ISO-8601 strings with a UTC designator.
type lotteryPayload struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	StartTime     string              `json:"start_time"`
	EndTime       string              `json:"end_time"`
	AllowedGroups []string            `json:"allowed_groups"`
	Limits        ParticipationLimits `json:"participation_limits"`
	Probability   ProbabilitySettings `json:"probability_settings"`
	Prizes        []Prize             `json:"prizes"`
}

// ParseLotteryData parses and validates a JSON creation payload. On any
// violation it returns a parse error naming the offending field; no
// partial configuration is ever returned.
func ParseLotteryData(raw []byte) (*LotteryData, error) {
	var payload lotteryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformedPayload.WithCause(err)
	}
	return buildLotteryData(&payload)
}

func buildLotteryData(payload *lotteryPayload) (*LotteryData, error) {
	if strings.TrimSpace(payload.Name) == "" {
		return nil, ErrEmptyName
	}

	start, err := parseTimestamp(payload.StartTime)
	if err != nil {
		return nil, ErrMalformedPayload.WithDetailsf("start_time: %q", payload.StartTime).WithCause(err)
	}
	end, err := parseTimestamp(payload.EndTime)
	if err != nil {
		return nil, ErrMalformedPayload.WithDetailsf("end_time: %q", payload.EndTime).WithCause(err)
	}
	if !start.Before(end) {
		return nil, ErrInvalidTimeRange.WithDetailsf("start %s, end %s",
			start.Format(TimestampLayout), end.Format(TimestampLayout))
	}

	if err := payload.Limits.Validate(); err != nil {
		return nil, err
	}
	if err := payload.Probability.Validate(); err != nil {
		return nil, err
	}
	if err := ValidatePrizeList(payload.Prizes); err != nil {
		return nil, err
	}

	prizes := make([]Prize, len(payload.Prizes))
	for i, p := range payload.Prizes {
		prizes[i] = p
		prizes[i].RemainingQuantity = p.Quantity
	}

	return &LotteryData{
		Name:          payload.Name,
		Description:   payload.Description,
		StartTime:     start,
		EndTime:       end,
		AllowedGroups: append([]string(nil), payload.AllowedGroups...),
		Limits:        payload.Limits,
		Probability:   payload.Probability,
		Prizes:        prizes,
	}, nil
}

// AllowsGroup reports whether the given group may participate. An empty
// filter allows every group; an empty group context is always allowed
// (the check belongs to the calling layer when it has group context).
func (d *LotteryData) AllowsGroup(group string) bool {
	if len(d.AllowedGroups) == 0 || group == "" {
		return true
	}
	for _, g := range d.AllowedGroups {
		if g == group {
			return true
		}
	}
	return false
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
