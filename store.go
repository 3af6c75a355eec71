package lottery

import "context"

// Store is the durable mirror of the registry: one metadata record plus
// one participant ledger per lottery. A successful SaveLottery must leave
// storage in a state from which LoadLottery reconstructs an equivalent
// lottery (same config, counters and ledger).
type Store interface {
	// SaveLottery writes the lottery's metadata record and participant ledger
	SaveLottery(ctx context.Context, l *Lottery) error

	// LoadLottery reconstructs one lottery; (nil, nil) when absent
	LoadLottery(ctx context.Context, id string) (*Lottery, error)

	// LoadAll reconstructs every stored lottery. A corrupt record is
	// skipped and reported through the store's logger; it never aborts
	// loading the remaining records.
	LoadAll(ctx context.Context) ([]*Lottery, error)

	// DeleteLottery removes both the metadata record and the ledger
	DeleteLottery(ctx context.Context, id string) error
}

// prizeRecord is the stored shape of one prize, config plus supply state
type prizeRecord struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ImageURL      string `json:"image_url,omitempty"`
	Weight        int    `json:"weight"`
	Quantity      int    `json:"quantity"`
	MaxWinPerUser int    `json:"max_win_per_user"`
	Remaining     int    `json:"remaining"`
}

// lotteryRecord is the stored metadata of one lottery
type lotteryRecord struct {
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	StartTime     string              `json:"start_time"`
	EndTime       string              `json:"end_time"`
	AllowedGroups []string            `json:"allowed_groups,omitempty"`
	Limits        ParticipationLimits `json:"participation_limits"`
	Probability   ProbabilitySettings `json:"probability_settings"`
	Prizes        []prizeRecord       `json:"prizes"`

	Status            LotteryStatus `json:"status"`
	TotalParticipants int           `json:"total_participants"`
	TotalAttempts     int           `json:"total_attempts"`
	CreatedAt         string        `json:"created_at"`
	CreatedBy         string        `json:"created_by,omitempty"`
}

// participantRecord is the stored shape of one ledger entry
type participantRecord struct {
	Attempts int      `json:"attempts"`
	Wins     []string `json:"wins"`
}

// exportRecord snapshots the lottery into its stored shapes under the
// read lock, so a store can serialize without blocking mutations
func (l *Lottery) exportRecord() (*lotteryRecord, map[string]participantRecord) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prizes := make([]prizeRecord, len(l.prizes))
	for i := range l.prizes {
		prizes[i] = prizeRecord{
			Name:          l.prizes[i].Name,
			Description:   l.prizes[i].Description,
			ImageURL:      l.prizes[i].ImageURL,
			Weight:        l.prizes[i].Weight,
			Quantity:      l.prizes[i].Quantity,
			MaxWinPerUser: l.prizes[i].MaxWinPerUser,
			Remaining:     l.prizes[i].RemainingQuantity,
		}
	}

	record := &lotteryRecord{
		Name:              l.data.Name,
		Description:       l.data.Description,
		StartTime:         l.data.StartTime.UTC().Format(TimestampLayout),
		EndTime:           l.data.EndTime.UTC().Format(TimestampLayout),
		AllowedGroups:     append([]string(nil), l.data.AllowedGroups...),
		Limits:            l.data.Limits,
		Probability:       l.data.Probability,
		Prizes:            prizes,
		Status:            l.status,
		TotalParticipants: l.totalParticipants,
		TotalAttempts:     l.totalAttempts,
		CreatedAt:         l.createdAt.UTC().Format(TimestampLayout),
		CreatedBy:         l.createdBy,
	}

	ledger := make(map[string]participantRecord, len(l.participants))
	for userID, p := range l.participants {
		ledger[userID] = participantRecord{
			Attempts: p.Attempts,
			Wins:     append([]string(nil), p.Wins...),
		}
	}

	return record, ledger
}

// restoreLottery rebuilds a lottery from its stored shapes, revalidating
// the configuration. Structural violations surface as ErrStateCorrupted.
func restoreLottery(id string, record *lotteryRecord, ledger map[string]participantRecord, rnd RandomSource, logger Logger) (*Lottery, error) {
	switch record.Status {
	case StatusPending, StatusActive, StatusEnded, StatusCancelled:
	default:
		return nil, ErrStateCorrupted.WithDetailsf("lottery %s: unknown status %q", id, record.Status)
	}

	payloadPrizes := make([]Prize, len(record.Prizes))
	for i, pr := range record.Prizes {
		payloadPrizes[i] = Prize{
			Name:          pr.Name,
			Description:   pr.Description,
			ImageURL:      pr.ImageURL,
			Weight:        pr.Weight,
			Quantity:      pr.Quantity,
			MaxWinPerUser: pr.MaxWinPerUser,
		}
	}

	data, err := buildLotteryData(&lotteryPayload{
		Name:          record.Name,
		Description:   record.Description,
		StartTime:     record.StartTime,
		EndTime:       record.EndTime,
		AllowedGroups: record.AllowedGroups,
		Limits:        record.Limits,
		Probability:   record.Probability,
		Prizes:        payloadPrizes,
	})
	if err != nil {
		return nil, ErrStateCorrupted.WithDetailsf("lottery %s", id).WithCause(err)
	}

	createdAt, err := parseTimestamp(record.CreatedAt)
	if err != nil {
		return nil, ErrStateCorrupted.WithDetailsf("lottery %s: created_at %q", id, record.CreatedAt)
	}

	l := newLottery(id, data, record.CreatedBy, createdAt, rnd, logger)
	l.status = record.Status
	l.createdAt = createdAt
	l.totalParticipants = record.TotalParticipants
	l.totalAttempts = record.TotalAttempts

	for i, pr := range record.Prizes {
		if pr.Quantity != UnlimitedQuantity && (pr.Remaining < 0 || pr.Remaining > pr.Quantity) {
			return nil, ErrStateCorrupted.WithDetailsf("lottery %s: prize %q remaining %d of %d",
				id, pr.Name, pr.Remaining, pr.Quantity)
		}
		l.prizes[i].RemainingQuantity = pr.Remaining
	}

	for userID, pr := range ledger {
		if userID == "" || pr.Attempts < 0 {
			return nil, ErrStateCorrupted.WithDetailsf("lottery %s: invalid ledger entry", id)
		}
		l.participants[userID] = &Participant{
			UserID:   userID,
			Attempts: pr.Attempts,
			Wins:     append([]string(nil), pr.Wins...),
		}
	}
	if l.totalParticipants < len(l.participants) {
		l.totalParticipants = len(l.participants)
	}

	return l, nil
}
