package lottery

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// seqSource replays a fixed sequence of draws, then repeats the last value
type seqSource struct {
	vals []float64
	i    int
}

func (s *seqSource) Float64() (float64, error) {
	if len(s.vals) == 0 {
		return 0.5, nil
	}
	if s.i >= len(s.vals) {
		return s.vals[len(s.vals)-1], nil
	}
	v := s.vals[s.i]
	s.i++
	return v, nil
}

func validPayloadMap() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"name":        "spring-festival",
		"description": "test campaign",
		"start_time":  now.Add(-time.Hour).Format(time.RFC3339),
		"end_time":    now.Add(24 * time.Hour).Format(time.RFC3339),
		"participation_limits": map[string]any{
			"max_total_participants": 0,
			"max_attempts_per_user":  0,
			"max_wins_per_user":      0,
		},
		"probability_settings": map[string]any{
			"probability_mode": "fixed",
			"base_probability": 0.5,
		},
		"prizes": []map[string]any{
			{"name": "gold", "weight": 1, "quantity": 10, "max_win_per_user": 0},
		},
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func mustParse(t *testing.T, payload map[string]any) *LotteryData {
	t.Helper()
	data, err := ParseLotteryData(mustJSON(t, payload))
	require.NoError(t, err)
	return data
}
