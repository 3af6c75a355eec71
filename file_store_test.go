package lottery

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStoreWithLogger(t.TempDir(), NewSilentLogger())
	require.NoError(t, err)
	return store
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	payload := validPayloadMap()
	payload["name"] = "新年抽奖"
	payload["allowed_groups"] = []string{"vip"}
	payload["probability_settings"] = map[string]any{
		"probability_mode": "exhaust",
		"base_probability": 0.2,
	}
	payload["prizes"] = []map[string]any{
		{"name": "金奖", "weight": 1, "quantity": 2, "max_win_per_user": 1},
		{"name": "sticker", "weight": 5, "quantity": UnlimitedQuantity},
	}
	l := newTestLottery(t, payload, &seqSource{vals: []float64{0.0, 0.0}})

	result, err := l.Participate("user-甲")
	require.NoError(t, err)
	require.True(t, result.Won)

	require.NoError(t, store.SaveLottery(ctx, l))

	loaded, err := store.LoadLottery(ctx, l.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)

	want, got := l.Info(), loaded.Info()
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.TotalAttempts, got.TotalAttempts)
	assert.Equal(t, want.TotalParticipants, got.TotalParticipants)
	assert.Equal(t, want.Prizes, got.Prizes)
	assert.True(t, want.StartTime.Equal(got.StartTime))
	assert.True(t, want.EndTime.Equal(got.EndTime))
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, l.CreatedBy(), loaded.CreatedBy())
	assert.Equal(t, []string{"vip"}, loaded.data.AllowedGroups)

	p := loaded.Participant("user-甲")
	require.NotNil(t, p)
	assert.Equal(t, l.Participant("user-甲"), p)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := newTestFileStore(t)
	loaded, err := store.LoadLottery(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStoreStatusSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	l := newTestLottery(t, validPayloadMap(), nil)
	require.NoError(t, l.Cancel())
	require.NoError(t, store.SaveLottery(ctx, l))

	loaded, err := store.LoadLottery(ctx, l.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, loaded.Status())
}

func TestFileStoreLoadAllSkipsCorruptRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	good := newTestLottery(t, validPayloadMap(), nil)
	require.NoError(t, store.SaveLottery(ctx, good))

	// Inject a structurally invalid record alongside the good one
	path := filepath.Join(store.Dir(), LotteriesFileName)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	all := make(map[string]json.RawMessage)
	require.NoError(t, json.Unmarshal(raw, &all))
	all["broken"] = json.RawMessage(`{"name":"","start_time":"bad"}`)
	raw, err = json.Marshal(all)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	lotteries, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, lotteries, 1)
	assert.Equal(t, good.ID(), lotteries[0].ID())

	t.Run("loading the corrupt record directly fails loudly", func(t *testing.T) {
		_, err := store.LoadLottery(ctx, "broken")
		require.Error(t, err)
		assert.True(t, IsPersistenceError(err))
		assert.ErrorIs(t, err, ErrStateCorrupted)
	})
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	l := newTestLottery(t, validPayloadMap(), nil)
	require.NoError(t, store.SaveLottery(ctx, l))

	ledger := filepath.Join(store.Dir(), ParticipantsDirName, l.ID()+".json")
	_, err := os.Stat(ledger)
	require.NoError(t, err)

	require.NoError(t, store.DeleteLottery(ctx, l.ID()))

	loaded, err := store.LoadLottery(ctx, l.ID())
	require.NoError(t, err)
	assert.Nil(t, loaded)
	_, err = os.Stat(ledger)
	assert.True(t, os.IsNotExist(err))

	// Deleting an absent record is not an error
	assert.NoError(t, store.DeleteLottery(ctx, l.ID()))
}

func TestFileStoreTimestampEncoding(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	l := newTestLottery(t, validPayloadMap(), nil)
	require.NoError(t, store.SaveLottery(ctx, l))

	raw, err := os.ReadFile(filepath.Join(store.Dir(), LotteriesFileName))
	require.NoError(t, err)

	all := make(map[string]lotteryRecord)
	require.NoError(t, json.Unmarshal(raw, &all))
	record := all[l.ID()]

	parsed, err := time.Parse(time.RFC3339, record.CreatedAt)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}
