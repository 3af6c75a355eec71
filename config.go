package lottery

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Storage backend identifiers
const (
	StorageBackendFile  = "file"
	StorageBackendRedis = "redis"
)

// Config is the production configuration tree
type Config struct {
	Storage *StorageConfig `mapstructure:"storage"`

	Redis *RedisConfig `mapstructure:"redis"`

	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageBackendFile:
		if c.Storage.Dir == "" {
			return ErrConfigInvalid.WithDetails("storage.dir is required for the file backend")
		}
	case StorageBackendRedis:
		if c.Redis == nil || c.Redis.Addr == "" {
			return ErrConfigInvalid.WithDetails("redis.addr is required for the redis backend")
		}
		if c.Redis.PoolSize <= 0 {
			return ErrConfigInvalid.WithDetails("redis.pool_size must be positive")
		}
	default:
		return ErrConfigInvalid.WithDetailsf("storage.backend: %q", c.Storage.Backend)
	}

	if cb := c.CircuitBreaker; cb != nil && cb.Enabled {
		if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
			return ErrConfigInvalid.WithDetailsf("circuit_breaker.failure_ratio: %v", cb.FailureRatio)
		}
	}

	return nil
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	AutoSave bool   `mapstructure:"auto_save"`
}

// DefaultStorageConfig returns the default storage configuration
func DefaultStorageConfig() *StorageConfig {
	return &StorageConfig{
		Backend:  StorageBackendFile,
		Dir:      DefaultDataDir,
		AutoSave: true,
	}
}

// RedisConfig configures the Redis connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`

	ClusterMode  bool     `mapstructure:"cluster_mode"`
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	TLSEnabled bool   `mapstructure:"tls_enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
}

// DefaultRedisConfig returns the default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
		ClusterMode:  DefaultRedisClusterMode,
		TLSEnabled:   DefaultRedisTLSEnabled,
	}
}

// CircuitBreakerConfig configures the store circuit breaker
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig returns the default circuit breaker configuration
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// DefaultConfig returns the full default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage:        DefaultStorageConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
	}
}

// ConfigManager loads and watches the configuration
type ConfigManager struct {
	viper  *viper.Viper
	config *Config
}

// NewConfigManager creates a configuration manager. Config is read from
// config.yaml in the usual locations; every key can be overridden through
// LOTTERY_-prefixed environment variables.
func NewConfigManager() *ConfigManager {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lottery")
	v.AddConfigPath("$HOME/.lottery")

	v.SetEnvPrefix("LOTTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigManager{
		viper: v,
	}
}

// LoadConfig reads, unmarshals and validates the configuration. A missing
// config file falls back to defaults.
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	cm.setDefaults()

	if err := cm.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cm.config = config
	return config, nil
}

func (cm *ConfigManager) setDefaults() {
	cm.viper.SetDefault("storage.backend", StorageBackendFile)
	cm.viper.SetDefault("storage.dir", DefaultDataDir)
	cm.viper.SetDefault("storage.auto_save", true)

	cm.viper.SetDefault("redis.addr", DefaultRedisAddr)
	cm.viper.SetDefault("redis.password", DefaultRedisPassword)
	cm.viper.SetDefault("redis.db", DefaultRedisDB)
	cm.viper.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	cm.viper.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", "5s")
	cm.viper.SetDefault("redis.read_timeout", "3s")
	cm.viper.SetDefault("redis.write_timeout", "3s")
	cm.viper.SetDefault("redis.pool_timeout", "4s")
	cm.viper.SetDefault("redis.cluster_mode", DefaultRedisClusterMode)
	cm.viper.SetDefault("redis.tls_enabled", DefaultRedisTLSEnabled)

	cm.viper.SetDefault("circuit_breaker.enabled", true)
	cm.viper.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	cm.viper.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", "60s")
	cm.viper.SetDefault("circuit_breaker.timeout", "30s")
	cm.viper.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", DefaultCircuitBreakerOnStateChange)
}

// WatchConfig reloads the configuration on file changes and invokes the
// callback with every valid new config. Invalid updates are ignored.
func (cm *ConfigManager) WatchConfig(callback func(*Config)) error {
	cm.viper.WatchConfig()
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config := &Config{}
		if err := cm.viper.Unmarshal(config); err != nil {
			return
		}
		if err := config.Validate(); err != nil {
			return
		}

		cm.config = config
		if callback != nil {
			callback(config)
		}
	})

	return nil
}

// GetConfig returns the most recently loaded configuration
func (cm *ConfigManager) GetConfig() *Config { return cm.config }

// ReloadConfig re-reads the configuration from disk
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }

// NewRedisClientFromConfig builds a Redis client from the configuration
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// NewStoreFromConfig builds the configured persistence backend and wraps
// it with the circuit breaker when enabled
func NewStoreFromConfig(config *Config, logger Logger) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Storage == nil {
		config.Storage = DefaultStorageConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var store Store
	switch config.Storage.Backend {
	case StorageBackendFile:
		fs, err := NewFileStoreWithLogger(config.Storage.Dir, logger)
		if err != nil {
			return nil, err
		}
		store = fs
	case StorageBackendRedis:
		store = NewRedisStoreWithLogger(NewRedisClientFromConfig(config.Redis), logger)
	}

	if cb := config.CircuitBreaker; cb != nil && cb.Enabled {
		store = NewBreakerStore(store, cb, logger)
	}
	return store, nil
}
