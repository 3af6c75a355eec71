package lottery

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLottery(t *testing.T, payload map[string]any, rnd RandomSource) *Lottery {
	t.Helper()
	data := mustParse(t, payload)
	return newLottery("test-id", data, "creator-1", time.Now(), rnd, NewSilentLogger())
}

func TestLotteryInitialStatus(t *testing.T) {
	t.Run("active when start time has passed", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		assert.Equal(t, StatusActive, l.Status())
	})

	t.Run("pending when start time is in the future", func(t *testing.T) {
		payload := validPayloadMap()
		payload["start_time"] = time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
		l := newTestLottery(t, payload, nil)
		assert.Equal(t, StatusPending, l.Status())
	})
}

func TestParticipateAttemptLimit(t *testing.T) {
	payload := validPayloadMap()
	payload["participation_limits"] = map[string]any{"max_attempts_per_user": 2}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 0.0,
	}
	l := newTestLottery(t, payload, nil)

	for i := 0; i < 2; i++ {
		result, err := l.Participate("user-1")
		require.NoError(t, err)
		assert.False(t, result.Won)
	}

	_, err := l.Participate("user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptLimit)
	assert.True(t, IsOperationError(err))

	// The rejected attempt leaves the counters unchanged
	info := l.Info()
	assert.Equal(t, 2, info.TotalAttempts)
	assert.Equal(t, 1, info.TotalParticipants)
	assert.Equal(t, 2, l.Participant("user-1").Attempts)
}

func TestParticipateTotalParticipantLimit(t *testing.T) {
	payload := validPayloadMap()
	payload["participation_limits"] = map[string]any{"max_total_participants": 2}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 0.0,
	}
	l := newTestLottery(t, payload, nil)

	_, err := l.Participate("user-1")
	require.NoError(t, err)
	_, err = l.Participate("user-2")
	require.NoError(t, err)

	// Known users may keep attempting
	_, err = l.Participate("user-1")
	require.NoError(t, err)

	// A third distinct user is refused
	_, err = l.Participate("user-3")
	assert.ErrorIs(t, err, ErrParticipantLimit)
	assert.Equal(t, 2, l.Info().TotalParticipants)
}

func TestParticipateWinCap(t *testing.T) {
	payload := validPayloadMap()
	payload["participation_limits"] = map[string]any{"max_wins_per_user": 1}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 1.0,
	}
	l := newTestLottery(t, payload, nil)

	result, err := l.Participate("user-1")
	require.NoError(t, err)
	require.True(t, result.Won)

	// The attempt is consumed but no further win is possible
	result, err = l.Participate("user-1")
	require.NoError(t, err)
	assert.False(t, result.Won)
	assert.Len(t, l.Participant("user-1").Wins, 1)
	assert.Equal(t, 2, l.Participant("user-1").Attempts)
}

func TestParticipateStatusChecks(t *testing.T) {
	t.Run("pending lottery refuses participation", func(t *testing.T) {
		payload := validPayloadMap()
		payload["start_time"] = time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
		l := newTestLottery(t, payload, nil)

		_, err := l.Participate("user-1")
		assert.ErrorIs(t, err, ErrNotActive)
	})

	t.Run("elapsed end time lazily ends the lottery", func(t *testing.T) {
		payload := validPayloadMap()
		payload["start_time"] = time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339)
		payload["end_time"] = time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
		l := newTestLottery(t, payload, nil)

		_, err := l.Participate("user-1")
		assert.ErrorIs(t, err, ErrAlreadyEnded)
		assert.Equal(t, StatusEnded, l.Status())
	})

	t.Run("cancelled lottery refuses participation", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		require.NoError(t, l.Cancel())

		_, err := l.Participate("user-1")
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
	})
}

func TestPrizeSupplyNeverOverdrawn(t *testing.T) {
	payload := validPayloadMap()
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 1.0,
	}
	payload["prizes"] = []map[string]any{
		{"name": "gold", "weight": 1, "quantity": 3},
	}
	l := newTestLottery(t, payload, nil)

	wins := 0
	for i := 0; i < 10; i++ {
		result, err := l.Participate("user-1")
		require.NoError(t, err)
		if result.Won {
			wins++
		}
	}

	assert.Equal(t, 3, wins, "wins cannot exceed the prize quantity")
	info := l.Info()
	require.Len(t, info.Prizes, 1)
	assert.Equal(t, 0, info.Prizes[0].Remaining)
	assert.GreaterOrEqual(t, info.Prizes[0].Remaining, 0)
}

func TestTwoPrizeExhaustionScenario(t *testing.T) {
	payload := validPayloadMap()
	payload["participation_limits"] = map[string]any{"max_attempts_per_user": 2}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 1.0,
	}
	payload["prizes"] = []map[string]any{
		{"name": "first", "weight": 1, "quantity": 1},
		{"name": "second", "weight": 3, "quantity": 1},
	}
	l := newTestLottery(t, payload, nil)

	result1, err := l.Participate("user-1")
	require.NoError(t, err)
	require.True(t, result1.Won)

	result2, err := l.Participate("user-1")
	require.NoError(t, err)
	require.True(t, result2.Won, "the remaining prize must be awarded")
	assert.NotEqual(t, result1.Prize.Name, result2.Prize.Name)

	for _, p := range l.Info().Prizes {
		assert.Equal(t, 0, p.Remaining)
	}
}

func TestConcurrentParticipationSingleWinner(t *testing.T) {
	payload := validPayloadMap()
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 1.0,
	}
	payload["prizes"] = []map[string]any{
		{"name": "jackpot", "weight": 1, "quantity": 1},
	}
	l := newTestLottery(t, payload, nil)

	const callers = 50
	var wg sync.WaitGroup
	winners := make(chan string, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n)
			result, err := l.Participate(userID)
			if err == nil && result.Won {
				winners <- userID
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	assert.Equal(t, 1, count, "exactly one caller wins the single prize")

	info := l.Info()
	assert.Equal(t, 0, info.Prizes[0].Remaining)
	assert.Equal(t, callers, info.TotalAttempts)
}

func TestTerminalTransitions(t *testing.T) {
	t.Run("end is idempotent", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		require.NoError(t, l.End())
		require.NoError(t, l.End())
		assert.Equal(t, StatusEnded, l.Status())
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		require.NoError(t, l.Cancel())
		require.NoError(t, l.Cancel())
		assert.Equal(t, StatusCancelled, l.Status())
	})

	t.Run("cancel after end fails", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		require.NoError(t, l.End())
		err := l.Cancel()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("end after cancel fails", func(t *testing.T) {
		l := newTestLottery(t, validPayloadMap(), nil)
		require.NoError(t, l.Cancel())
		err := l.End()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestStartActivatesPendingLottery(t *testing.T) {
	payload := validPayloadMap()
	payload["start_time"] = time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	l := newTestLottery(t, payload, nil)
	require.Equal(t, StatusPending, l.Status())

	require.NoError(t, l.Start())
	assert.Equal(t, StatusActive, l.Status())

	// Idempotent while active
	require.NoError(t, l.Start())

	require.NoError(t, l.End())
	assert.ErrorIs(t, l.Start(), ErrAlreadyEnded)
}

func TestInfoReflectsConfig(t *testing.T) {
	payload := validPayloadMap()
	payload["name"] = "年终大抽奖"
	payload["description"] = "desc"
	l := newTestLottery(t, payload, nil)

	info := l.Info()
	assert.Equal(t, "年终大抽奖", info.Name)
	assert.Equal(t, "desc", info.Description)
	assert.Equal(t, StatusActive, info.Status)
	assert.Equal(t, "creator-1", info.CreatedBy)
	assert.Zero(t, info.TotalAttempts)
	require.Len(t, info.Prizes, 1)
	assert.Equal(t, "gold", info.Prizes[0].Name)
	assert.Equal(t, 10, info.Prizes[0].Total)
	assert.Equal(t, 10, info.Prizes[0].Remaining)
}

func TestRemainingAttemptsEstimate(t *testing.T) {
	payload := validPayloadMap()
	payload["participation_limits"] = map[string]any{
		"max_total_participants": 3,
		"max_attempts_per_user":  2,
	}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "fixed",
		"base_probability": 0.0,
	}
	l := newTestLottery(t, payload, nil)

	l.mu.Lock()
	assert.Equal(t, 6, l.remainingAttemptsLocked())
	l.mu.Unlock()

	_, err := l.Participate("user-1")
	require.NoError(t, err)

	l.mu.Lock()
	// user-1 has one attempt left, two free slots remain
	assert.Equal(t, 5, l.remainingAttemptsLocked())
	l.mu.Unlock()
}
