package lottery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cm := NewConfigManager()
	config, err := cm.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendFile, config.Storage.Backend)
	assert.Equal(t, DefaultDataDir, config.Storage.Dir)
	assert.True(t, config.Storage.AutoSave)

	assert.Equal(t, DefaultRedisAddr, config.Redis.Addr)
	assert.Equal(t, DefaultRedisPoolSize, config.Redis.PoolSize)

	assert.True(t, config.CircuitBreaker.Enabled)
	assert.Equal(t, DefaultCircuitBreakerFailureRatio, config.CircuitBreaker.FailureRatio)

	assert.Same(t, config, cm.GetConfig())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LOTTERY_STORAGE_BACKEND", StorageBackendRedis)
	t.Setenv("LOTTERY_REDIS_ADDR", "redis.internal:6380")

	cm := NewConfigManager()
	config, err := cm.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StorageBackendRedis, config.Storage.Backend)
	assert.Equal(t, "redis.internal:6380", config.Redis.Addr)
}

func TestConfigValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("file backend requires a directory", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Dir = ""
		err := config.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})

	t.Run("unknown backend", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = "etcd"
		assert.ErrorIs(t, config.Validate(), ErrConfigInvalid)
	})

	t.Run("redis backend requires an address", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = StorageBackendRedis
		config.Redis.Addr = ""
		assert.ErrorIs(t, config.Validate(), ErrConfigInvalid)
	})

	t.Run("redis backend requires a positive pool size", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = StorageBackendRedis
		config.Redis.PoolSize = 0
		assert.ErrorIs(t, config.Validate(), ErrConfigInvalid)
	})

	t.Run("failure ratio outside (0, 1]", func(t *testing.T) {
		config := DefaultConfig()
		config.CircuitBreaker.FailureRatio = 1.5
		assert.ErrorIs(t, config.Validate(), ErrConfigInvalid)
	})

	t.Run("disabled breaker skips ratio validation", func(t *testing.T) {
		config := DefaultConfig()
		config.CircuitBreaker.Enabled = false
		config.CircuitBreaker.FailureRatio = 1.5
		assert.NoError(t, config.Validate())
	})
}

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("file backend", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Dir = t.TempDir()
		config.CircuitBreaker.Enabled = false

		store, err := NewStoreFromConfig(config, NewSilentLogger())
		require.NoError(t, err)
		assert.IsType(t, &FileStore{}, store)
	})

	t.Run("file backend wrapped by the breaker", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Dir = t.TempDir()

		store, err := NewStoreFromConfig(config, NewSilentLogger())
		require.NoError(t, err)
		require.IsType(t, &BreakerStore{}, store)
		assert.Equal(t, "closed", store.(*BreakerStore).State())
	})

	t.Run("redis backend", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = StorageBackendRedis
		config.CircuitBreaker.Enabled = false

		store, err := NewStoreFromConfig(config, NewSilentLogger())
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
	})

	t.Run("invalid config is refused", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Backend = "etcd"
		_, err := NewStoreFromConfig(config, NewSilentLogger())
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})
}
