package lottery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore persists lotteries in Redis: one metadata key and one ledger
// key per lottery, plus a set of all stored ids for rehydration.
type RedisStore struct {
	client        *redis.Client
	retryAttempts int
	retryInterval time.Duration
	rnd           RandomSource
	logger        Logger
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return NewRedisStoreWithLogger(client, nil)
}

// NewRedisStoreWithLogger creates a Redis-backed store with a custom logger
func NewRedisStoreWithLogger(client *redis.Client, logger Logger) *RedisStore {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	return &RedisStore{
		client:        client,
		retryAttempts: DefaultRetryAttempts,
		retryInterval: DefaultRetryInterval,
		rnd:           NewSecureRandomSource(),
		logger:        logger,
	}
}

// SaveLottery writes the metadata record, the ledger and the id set entry
func (s *RedisStore) SaveLottery(ctx context.Context, l *Lottery) error {
	record, ledger := l.exportRecord()

	recordRaw, err := json.Marshal(record)
	if err != nil {
		return ErrSerializationFailed.WithDetailsf("lottery %s", l.ID()).WithCause(err)
	}
	ledgerRaw, err := json.Marshal(ledger)
	if err != nil {
		return ErrSerializationFailed.WithDetailsf("lottery %s ledger", l.ID()).WithCause(err)
	}
	if len(recordRaw) > MaxSerializationSize || len(ledgerRaw) > MaxSerializationSize {
		return ErrRecordTooLarge.WithDetailsf("lottery %s", l.ID())
	}

	err = s.executeWithRetry(ctx, "save", func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, RecordKeyPrefix+l.ID(), recordRaw, 0)
		pipe.Set(ctx, LedgerKeyPrefix+l.ID(), ledgerRaw, 0)
		pipe.SAdd(ctx, IDSetKey, l.ID())
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	if err != nil {
		return ErrStateSaveFailure.WithDetailsf("lottery %s", l.ID()).WithCause(err)
	}

	s.logger.Debug("redis store: saved lottery id=%s participants=%d", l.ID(), len(ledger))
	return nil
}

// LoadLottery reads one lottery back; (nil, nil) when absent
func (s *RedisStore) LoadLottery(ctx context.Context, id string) (*Lottery, error) {
	var recordRaw string
	err := s.executeWithRetry(ctx, "load", func() error {
		var getErr error
		recordRaw, getErr = s.client.Get(ctx, RecordKeyPrefix+id).Result()
		return getErr
	})
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, ErrStateLoadFailure.WithDetailsf("lottery %s", id).WithCause(err)
	}

	var record lotteryRecord
	if err := json.Unmarshal([]byte(recordRaw), &record); err != nil {
		return nil, ErrStateCorrupted.WithDetailsf("lottery %s", id).WithCause(err)
	}

	ledger := make(map[string]participantRecord)
	ledgerRaw, err := s.client.Get(ctx, LedgerKeyPrefix+id).Result()
	switch {
	case err == redis.Nil:
		// No ledger key, nobody participated
	case err != nil:
		return nil, ErrStateLoadFailure.WithDetailsf("lottery %s ledger", id).WithCause(err)
	default:
		if err := json.Unmarshal([]byte(ledgerRaw), &ledger); err != nil {
			return nil, ErrStateCorrupted.WithDetailsf("lottery %s ledger", id).WithCause(err)
		}
	}

	return restoreLottery(id, &record, ledger, s.rnd, s.logger)
}

// LoadAll reads every stored lottery, skipping corrupt records
func (s *RedisStore) LoadAll(ctx context.Context) ([]*Lottery, error) {
	ids, err := s.client.SMembers(ctx, IDSetKey).Result()
	if err != nil {
		return nil, ErrStateLoadFailure.WithDetails("list stored ids").WithCause(err)
	}

	lotteries := make([]*Lottery, 0, len(ids))
	for _, id := range ids {
		l, loadErr := s.LoadLottery(ctx, id)
		if loadErr != nil {
			s.logger.Error("redis store: skipping corrupt record id=%s: %v", id, loadErr)
			continue
		}
		if l == nil {
			s.logger.Error("redis store: id set references missing record id=%s", id)
			continue
		}
		lotteries = append(lotteries, l)
	}

	s.logger.Info("redis store: loaded %d of %d lotteries", len(lotteries), len(ids))
	return lotteries, nil
}

// DeleteLottery removes the metadata record, the ledger and the id set entry
func (s *RedisStore) DeleteLottery(ctx context.Context, id string) error {
	err := s.executeWithRetry(ctx, "delete", func() error {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, RecordKeyPrefix+id, LedgerKeyPrefix+id)
		pipe.SRem(ctx, IDSetKey, id)
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	if err != nil {
		return ErrStateSaveFailure.WithDetailsf("delete lottery %s", id).WithCause(err)
	}

	s.logger.Info("redis store: deleted lottery id=%s", id)
	return nil
}

// executeWithRetry retries transient Redis failures with exponential
// backoff; non-retryable errors surface immediately
func (s *RedisStore) executeWithRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn()
		if lastErr == nil || lastErr == redis.Nil {
			return lastErr
		}
		if !IsRetryableError(lastErr) {
			return lastErr
		}

		if attempt < s.retryAttempts {
			delay := retryDelay(s.retryInterval, attempt+1)
			s.logger.Debug("redis store: %s failed, retrying in %v (attempt %d/%d): %v",
				op, delay, attempt+1, s.retryAttempts, lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
