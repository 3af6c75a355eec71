package lottery

import "time"

const (
	// UnlimitedQuantity is the sentinel quantity for prizes with no supply cap
	UnlimitedQuantity = -1

	// TimestampLayout is the wire format for all persisted timestamps (UTC)
	TimestampLayout = time.RFC3339

	// DefaultDataDir is the default storage root for the file store
	DefaultDataDir = "data"

	// LotteriesFileName is the aggregate metadata file inside the storage root
	LotteriesFileName = "lotteries.json"

	// ParticipantsDirName holds one ledger file per lottery inside the storage root
	ParticipantsDirName = "participants"

	// RecordKeyPrefix is the prefix for Redis lottery metadata keys
	RecordKeyPrefix = "lottery:record:"

	// LedgerKeyPrefix is the prefix for Redis participant ledger keys
	LedgerKeyPrefix = "lottery:ledger:"

	// IDSetKey is the Redis set holding every stored lottery id
	IDSetKey = "lottery:ids"

	// DefaultRetryAttempts is the default number of retry attempts for store writes
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default base interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// MaxRetryBackoff caps the exponential retry backoff
	MaxRetryBackoff = 5 * time.Second

	// MaxSerializationSize limits a single serialized record (10MB)
	MaxSerializationSize = 10 * 1024 * 1024

	// DefaultExhaustHorizon is the assumed remaining-attempts budget for
	// exhaust mode when the participation limits give no estimate
	DefaultExhaustHorizon = 100

	// ProbabilityEpsilon is the tolerance for probability comparisons
	ProbabilityEpsilon = 1e-9
)

const (
	// DefaultCircuitBreakerName is the default name for the store circuit breaker
	DefaultCircuitBreakerName = "lottery-store"

	// DefaultCircuitBreakerMaxRequests is the default max requests in half-open state
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default counting interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default open-state timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default trip threshold
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default minimum request count before tripping
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange controls state change logging by default
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 50
	DefaultRedisMinIdleConns = 10
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
	DefaultRedisClusterMode  = false
	DefaultRedisTLSEnabled   = false
)
