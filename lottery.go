package lottery

import (
	"fmt"
	"sync"
	"time"
)

// LotteryStatus is the lifecycle state of a lottery
type LotteryStatus string

const (
	StatusPending   LotteryStatus = "pending"
	StatusActive    LotteryStatus = "active"
	StatusEnded     LotteryStatus = "ended"
	StatusCancelled LotteryStatus = "cancelled"
)

// Terminal reports whether the status accepts no further mutation
func (s LotteryStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Participant is the per-user ledger entry within one lottery
type Participant struct {
	UserID   string   `json:"user_id"`
	Attempts int      `json:"attempts"`
	Wins     []string `json:"wins"` // prize names in win order
}

// prizeWins counts how often the participant has won the named prize
func (p *Participant) prizeWins(prizeName string) int {
	count := 0
	for _, w := range p.Wins {
		if w == prizeName {
			count++
		}
	}
	return count
}

// ParticipateResult is returned by one participation attempt
type ParticipateResult struct {
	Won     bool   `json:"won"`
	Prize   *Prize `json:"prize,omitempty"`
	Message string `json:"message"`
}

// PrizeInfo is the read-only prize view inside a lottery snapshot
type PrizeInfo struct {
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
	Unlimited bool   `json:"unlimited"`
}

// LotteryInfo is the read-only snapshot returned by Info
type LotteryInfo struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Status            LotteryStatus `json:"status"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	TotalParticipants int           `json:"total_participants"`
	TotalAttempts     int           `json:"total_attempts"`
	CreatedAt         time.Time     `json:"created_at"`
	CreatedBy         string        `json:"created_by"`
	Prizes            []PrizeInfo   `json:"prizes"`
}

// Lottery owns the mutable runtime state of one campaign. All mutation
// goes through its methods, serialized by one RWMutex per instance.
type Lottery struct {
	mu sync.RWMutex

	id        string
	data      *LotteryData
	status    LotteryStatus
	createdAt time.Time
	createdBy string

	totalParticipants int
	totalAttempts     int
	participants      map[string]*Participant
	prizes            []Prize // runtime supply state; config stays in data

	policy ProbabilityPolicy
	rnd    RandomSource
	logger Logger
}

func newLottery(id string, data *LotteryData, creator string, now time.Time, rnd RandomSource, logger Logger) *Lottery {
	if rnd == nil {
		rnd = NewSecureRandomSource()
	}
	if logger == nil {
		logger = &DefaultLogger{}
	}

	status := StatusPending
	if !now.Before(data.StartTime) {
		status = StatusActive
	}

	prizes := make([]Prize, len(data.Prizes))
	copy(prizes, data.Prizes)
	for i := range prizes {
		prizes[i].RemainingQuantity = prizes[i].Quantity
	}

	return &Lottery{
		id:           id,
		data:         data,
		status:       status,
		createdAt:    now.UTC(),
		createdBy:    creator,
		participants: make(map[string]*Participant),
		prizes:       prizes,
		policy:       PolicyFor(data.Probability.Mode),
		rnd:          rnd,
		logger:       logger,
	}
}

// ID returns the lottery id
func (l *Lottery) ID() string { return l.id }

// Name returns the configured name
func (l *Lottery) Name() string { return l.data.Name }

// CreatedBy returns the creator id
func (l *Lottery) CreatedBy() string { return l.createdBy }

// CreatedAt returns the creation timestamp
func (l *Lottery) CreatedAt() time.Time { return l.createdAt }

// AllowsGroup reports whether the given group context may participate
func (l *Lottery) AllowsGroup(group string) bool {
	return l.data.AllowsGroup(group)
}

// Status returns the current status, accounting for an elapsed end time
func (l *Lottery) Status() LotteryStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.effectiveStatusLocked(time.Now())
}

// effectiveStatusLocked derives the status at the given instant without
// mutating anything; callers hold at least the read lock
func (l *Lottery) effectiveStatusLocked(now time.Time) LotteryStatus {
	switch l.status {
	case StatusPending:
		if now.After(l.data.EndTime) {
			return StatusEnded
		}
		if !now.Before(l.data.StartTime) {
			return StatusActive
		}
	case StatusActive:
		if now.After(l.data.EndTime) {
			return StatusEnded
		}
	}
	return l.status
}

// refreshStatusLocked applies the time-driven transitions; callers hold
// the write lock
func (l *Lottery) refreshStatusLocked(now time.Time) {
	effective := l.effectiveStatusLocked(now)
	if effective != l.status {
		l.logger.Debug("lottery status transition: id=%s %s -> %s", l.id, l.status, effective)
		l.status = effective
	}
}

// Participate runs one draw attempt for the given user. Limit checks
// happen before any counter moves, so a rejected attempt leaves the
// lottery unchanged. The draw outcome and the win bookkeeping are applied
// as one atomic update under the write lock.
func (l *Lottery) Participate(userID string) (*ParticipateResult, error) {
	if userID == "" {
		return nil, ErrMalformedPayload.WithDetails("user id cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.refreshStatusLocked(now)

	switch l.status {
	case StatusPending:
		return nil, ErrNotActive.WithDetailsf("lottery %q starts at %s",
			l.data.Name, l.data.StartTime.Format(TimestampLayout)).WithUserID(userID)
	case StatusEnded:
		return nil, ErrAlreadyEnded.WithUserID(userID)
	case StatusCancelled:
		return nil, ErrAlreadyCancelled.WithUserID(userID)
	}

	participant, known := l.participants[userID]
	if !known {
		if max := l.data.Limits.MaxTotalParticipants; max > 0 && l.totalParticipants >= max {
			return nil, ErrParticipantLimit.WithDetailsf("current %d, limit %d",
				l.totalParticipants, max).WithUserID(userID)
		}
	}
	if max := l.data.Limits.MaxAttemptsPerUser; max > 0 && known && participant.Attempts >= max {
		return nil, ErrAttemptLimit.WithDetailsf("current %d, limit %d",
			participant.Attempts, max).WithUserID(userID)
	}

	if !known {
		participant = &Participant{UserID: userID}
		l.participants[userID] = participant
		l.totalParticipants++
	}
	participant.Attempts++
	l.totalAttempts++

	// A user at the global win cap keeps consuming attempts but can no
	// longer win anything.
	if max := l.data.Limits.MaxWinsPerUser; max > 0 && len(participant.Wins) >= max {
		l.logger.Debug("participate: id=%s user=%s at win cap, no draw", l.id, userID)
		return &ParticipateResult{Won: false, Message: "maximum wins reached"}, nil
	}

	outcome, err := l.policy.Decide(l.snapshotLocked(participant), l.rnd)
	if err != nil {
		return nil, err
	}

	if !outcome.Won {
		l.logger.Debug("participate: id=%s user=%s attempt=%d won=false",
			l.id, userID, participant.Attempts)
		return &ParticipateResult{Won: false, Message: "no win this time"}, nil
	}

	prize := &l.prizes[outcome.PrizeIndex]
	if !prize.Unlimited() {
		prize.RemainingQuantity--
	}
	participant.Wins = append(participant.Wins, prize.Name)

	l.logger.Info("participate: id=%s user=%s won=%q remaining=%d",
		l.id, userID, prize.Name, prize.RemainingQuantity)

	awarded := *prize
	return &ParticipateResult{
		Won:     true,
		Prize:   &awarded,
		Message: fmt.Sprintf("congratulations, you won %s", prize.Name),
	}, nil
}

// Start activates a pending lottery before its start time. Idempotent
// when already active.
func (l *Lottery) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshStatusLocked(time.Now())

	switch l.status {
	case StatusActive:
		return nil
	case StatusPending:
		l.status = StatusActive
		l.logger.Info("lottery started early: id=%s name=%s", l.id, l.data.Name)
		return nil
	case StatusEnded:
		return ErrAlreadyEnded
	default:
		return ErrAlreadyCancelled
	}
}

// End terminates the lottery. Idempotent when already ended.
func (l *Lottery) End() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshStatusLocked(time.Now())

	switch l.status {
	case StatusEnded:
		return nil
	case StatusCancelled:
		return ErrInvalidTransition.WithDetails("cannot end a cancelled lottery")
	}

	l.status = StatusEnded
	l.logger.Info("lottery ended: id=%s name=%s attempts=%d", l.id, l.data.Name, l.totalAttempts)
	return nil
}

// Cancel aborts a pending or active lottery. Idempotent when already
// cancelled.
func (l *Lottery) Cancel() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshStatusLocked(time.Now())

	switch l.status {
	case StatusCancelled:
		return nil
	case StatusEnded:
		return ErrInvalidTransition.WithDetails("cannot cancel an ended lottery")
	}

	l.status = StatusCancelled
	l.logger.Info("lottery cancelled: id=%s name=%s", l.id, l.data.Name)
	return nil
}

// Info returns a read-only snapshot. Safe under concurrent reads; the
// stored status is not mutated, an elapsed end time is reflected in the
// reported status only.
func (l *Lottery) Info() *LotteryInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prizes := make([]PrizeInfo, len(l.prizes))
	for i := range l.prizes {
		prizes[i] = PrizeInfo{
			Name:      l.prizes[i].Name,
			Remaining: l.prizes[i].RemainingQuantity,
			Total:     l.prizes[i].Quantity,
			Unlimited: l.prizes[i].Unlimited(),
		}
	}

	return &LotteryInfo{
		ID:                l.id,
		Name:              l.data.Name,
		Description:       l.data.Description,
		Status:            l.effectiveStatusLocked(time.Now()),
		StartTime:         l.data.StartTime,
		EndTime:           l.data.EndTime,
		TotalParticipants: l.totalParticipants,
		TotalAttempts:     l.totalAttempts,
		CreatedAt:         l.createdAt,
		CreatedBy:         l.createdBy,
		Prizes:            prizes,
	}
}

// Participant returns a copy of the ledger entry for the user, or nil
func (l *Lottery) Participant(userID string) *Participant {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.participants[userID]
	if !ok {
		return nil
	}
	cp := *p
	cp.Wins = append([]string(nil), p.Wins...)
	return &cp
}

// snapshotLocked builds the policy input for one drawing user; callers
// hold the write lock
func (l *Lottery) snapshotLocked(participant *Participant) *DrawSnapshot {
	prizes := make([]PrizeSnapshot, len(l.prizes))
	for i := range l.prizes {
		prizes[i] = PrizeSnapshot{
			Weight:        l.prizes[i].Weight,
			Remaining:     l.prizes[i].RemainingQuantity,
			MaxWinPerUser: l.prizes[i].MaxWinPerUser,
			UserWins:      participant.prizeWins(l.prizes[i].Name),
		}
	}

	return &DrawSnapshot{
		BaseProbability:   l.data.Probability.BaseProbability,
		Prizes:            prizes,
		RemainingAttempts: l.remainingAttemptsLocked(),
	}
}

// remainingAttemptsLocked estimates how many more attempts the campaign
// can see under its limits; 0 when the limits give no bound
func (l *Lottery) remainingAttemptsLocked() int {
	perUser := l.data.Limits.MaxAttemptsPerUser
	maxTotal := l.data.Limits.MaxTotalParticipants
	if perUser == 0 || maxTotal == 0 {
		return 0
	}

	remaining := (maxTotal - l.totalParticipants) * perUser
	for _, p := range l.participants {
		if left := perUser - p.Attempts; left > 0 {
			remaining += left
		}
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}
