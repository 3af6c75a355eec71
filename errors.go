package lottery

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode identifies one failure class
type ErrorCode string

// Error code constants. The numeric band encodes the taxonomy:
// 1xxx system, 2xxx parse/validation, 3xxx duplicate name,
// 4xxx operation/state, 5xxx circuit breaker, 6xxx persistence.
const (
	// System errors (1000-1999)
	ErrCodeSystem          ErrorCode = "LOTTERY_1000"
	ErrCodeConfigInvalid   ErrorCode = "LOTTERY_1001"
	ErrCodeRedisConnection ErrorCode = "LOTTERY_1002"

	// Parse errors (2000-2999)
	ErrCodeMalformedPayload    ErrorCode = "LOTTERY_2000"
	ErrCodeEmptyName           ErrorCode = "LOTTERY_2001"
	ErrCodeInvalidTimeRange    ErrorCode = "LOTTERY_2002"
	ErrCodeInvalidWeight       ErrorCode = "LOTTERY_2003"
	ErrCodeInvalidQuantity     ErrorCode = "LOTTERY_2004"
	ErrCodeInvalidMode         ErrorCode = "LOTTERY_2005"
	ErrCodeInvalidProbability  ErrorCode = "LOTTERY_2006"
	ErrCodeEmptyPrizeList      ErrorCode = "LOTTERY_2007"
	ErrCodeInvalidPrizeName    ErrorCode = "LOTTERY_2008"
	ErrCodeInvalidLimit        ErrorCode = "LOTTERY_2009"
	ErrCodeInvalidMaxWinPerUser ErrorCode = "LOTTERY_2010"

	// Duplicate name errors (3000-3999)
	ErrCodeDuplicateName ErrorCode = "LOTTERY_3000"

	// Operation errors (4000-4999)
	ErrCodeLotteryNotFound   ErrorCode = "LOTTERY_4000"
	ErrCodeNotActive         ErrorCode = "LOTTERY_4001"
	ErrCodeAlreadyEnded      ErrorCode = "LOTTERY_4002"
	ErrCodeAlreadyCancelled  ErrorCode = "LOTTERY_4003"
	ErrCodeInvalidTransition ErrorCode = "LOTTERY_4004"
	ErrCodeParticipantLimit  ErrorCode = "LOTTERY_4005"
	ErrCodeAttemptLimit      ErrorCode = "LOTTERY_4006"
	ErrCodeWinLimit          ErrorCode = "LOTTERY_4007"
	ErrCodeGroupNotAllowed   ErrorCode = "LOTTERY_4008"

	// Circuit breaker errors (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "LOTTERY_5000"

	// Persistence errors (6000-6999)
	ErrCodeStateSaveFailure      ErrorCode = "LOTTERY_6000"
	ErrCodeStateLoadFailure      ErrorCode = "LOTTERY_6001"
	ErrCodeStateCorrupted        ErrorCode = "LOTTERY_6002"
	ErrCodeSerializationFailed   ErrorCode = "LOTTERY_6003"
	ErrCodeDeserializationFailed ErrorCode = "LOTTERY_6004"
	ErrCodeRecordTooLarge        ErrorCode = "LOTTERY_6005"
)

// ErrorSeverity indicates how serious an error is
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
)

// LotteryError is the structured error type used across the package
type LotteryError struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	Details    string        `json:"details,omitempty"`
	Severity   ErrorSeverity `json:"severity"`
	Timestamp  time.Time     `json:"timestamp"`
	UserID     string        `json:"user_id,omitempty"`
	Operation  string        `json:"operation,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
	Cause      error         `json:"-"`
	Retryable  bool          `json:"retryable"`
}

// Error implements the error interface
func (e *LotteryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LotteryError) Unwrap() error {
	return e.Cause
}

// Is matches on the error code, so errors.Is works against the predefined instances
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone copies the receiver so the With* builders never mutate the
// predefined shared instances
func (e *LotteryError) clone() *LotteryError {
	ne := *e
	ne.Timestamp = time.Now()
	return &ne
}

// WithCause attaches the underlying error
func (e *LotteryError) WithCause(cause error) *LotteryError {
	ne := e.clone()
	ne.Cause = cause
	return ne
}

// WithDetails attaches human-readable detail (which constraint, current vs. limit)
func (e *LotteryError) WithDetails(details string) *LotteryError {
	ne := e.clone()
	ne.Details = details
	return ne
}

// WithDetailsf formats and attaches detail
func (e *LotteryError) WithDetailsf(format string, args ...any) *LotteryError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithUserID attaches the user the failure relates to
func (e *LotteryError) WithUserID(userID string) *LotteryError {
	ne := e.clone()
	ne.UserID = userID
	return ne
}

// WithOperation attaches the operation name
func (e *LotteryError) WithOperation(operation string) *LotteryError {
	ne := e.clone()
	ne.Operation = operation
	return ne
}

// WithStackTrace captures the current goroutine stack
func (e *LotteryError) WithStackTrace() *LotteryError {
	ne := e.clone()
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	ne.StackTrace = string(buf[:n])
	return ne
}

// NewError creates a new error
func NewError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError creates an error callers may retry
func NewRetryableError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: true,
	}
}

// NewCriticalError creates a critical error with a captured stack
func NewCriticalError(code ErrorCode, message string) *LotteryError {
	err := &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityCritical,
		Timestamp: time.Now(),
		Retryable: false,
	}
	return err.WithStackTrace()
}

// Predefined error instances
var (
	// System errors
	ErrSystemError           = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrConfigInvalid         = NewCriticalError(ErrCodeConfigInvalid, "configuration is invalid")
	ErrRedisConnectionFailed = NewRetryableError(ErrCodeRedisConnection, "Redis connection failed")

	// Parse errors
	ErrMalformedPayload    = NewError(ErrCodeMalformedPayload, "lottery configuration is not valid JSON")
	ErrEmptyName           = NewError(ErrCodeEmptyName, "lottery name cannot be empty")
	ErrInvalidTimeRange    = NewError(ErrCodeInvalidTimeRange, "start time must be before end time")
	ErrInvalidWeight       = NewError(ErrCodeInvalidWeight, "prize weight must be greater than 0")
	ErrInvalidQuantity     = NewError(ErrCodeInvalidQuantity, "prize quantity must be non-negative or the unlimited sentinel")
	ErrInvalidMode         = NewError(ErrCodeInvalidMode, "probability mode must be fixed, dynamic or exhaust")
	ErrInvalidProbability  = NewError(ErrCodeInvalidProbability, "base probability must be within [0, 1]")
	ErrEmptyPrizeList      = NewError(ErrCodeEmptyPrizeList, "prize list cannot be empty")
	ErrInvalidPrizeName    = NewError(ErrCodeInvalidPrizeName, "prize name cannot be empty")
	ErrInvalidLimit        = NewError(ErrCodeInvalidLimit, "participation limit cannot be negative")
	ErrInvalidMaxWinPerUser = NewError(ErrCodeInvalidMaxWinPerUser, "prize max win per user cannot be negative")

	// Duplicate name errors
	ErrDuplicateName = NewError(ErrCodeDuplicateName, "a live lottery with this name already exists")

	// Operation errors
	ErrLotteryNotFound   = NewError(ErrCodeLotteryNotFound, "lottery not found")
	ErrNotActive         = NewError(ErrCodeNotActive, "lottery is not active")
	ErrAlreadyEnded      = NewError(ErrCodeAlreadyEnded, "lottery has already ended")
	ErrAlreadyCancelled  = NewError(ErrCodeAlreadyCancelled, "lottery has been cancelled")
	ErrInvalidTransition = NewError(ErrCodeInvalidTransition, "status transition is not allowed")
	ErrParticipantLimit  = NewError(ErrCodeParticipantLimit, "maximum number of participants reached")
	ErrAttemptLimit      = NewError(ErrCodeAttemptLimit, "maximum attempts per user reached")
	ErrWinLimit          = NewError(ErrCodeWinLimit, "maximum wins per user reached")
	ErrGroupNotAllowed   = NewError(ErrCodeGroupNotAllowed, "group is not allowed to participate")

	// Circuit breaker errors
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// Persistence errors
	ErrStateSaveFailure      = NewRetryableError(ErrCodeStateSaveFailure, "failed to save lottery state")
	ErrStateLoadFailure      = NewRetryableError(ErrCodeStateLoadFailure, "failed to load lottery state")
	ErrStateCorrupted        = NewError(ErrCodeStateCorrupted, "stored lottery record is corrupted")
	ErrSerializationFailed   = NewError(ErrCodeSerializationFailed, "serialization failed")
	ErrDeserializationFailed = NewError(ErrCodeDeserializationFailed, "deserialization failed")
	ErrRecordTooLarge        = NewError(ErrCodeRecordTooLarge, "serialized record exceeds size limit")
)

// codeInBand reports whether the error carries a code in [lo, hi]
func codeInBand(err error, lo, hi int) bool {
	le, ok := err.(*LotteryError)
	if !ok {
		return false
	}
	var n int
	if _, scanErr := fmt.Sscanf(string(le.Code), "LOTTERY_%d", &n); scanErr != nil {
		return false
	}
	return n >= lo && n <= hi
}

// IsParseError reports whether err is a configuration validation failure
func IsParseError(err error) bool { return codeInBand(err, 2000, 2999) }

// IsDuplicateNameError reports whether err is a name collision
func IsDuplicateNameError(err error) bool { return codeInBand(err, 3000, 3999) }

// IsOperationError reports whether err is a disallowed state mutation
func IsOperationError(err error) bool { return codeInBand(err, 4000, 4999) }

// IsPersistenceError reports whether err is a durable storage failure
func IsPersistenceError(err error) bool { return codeInBand(err, 6000, 6999) }

// IsRetryableError checks whether an arbitrary error looks transient
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if le, ok := err.(*LotteryError); ok && le.Retryable {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"no route to host",
		"connection aborted",
		"redis: connection pool timeout",
		"redis: client is closed",
		"context deadline exceeded",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// retryDelay computes the exponential backoff for the given attempt (1-based)
func retryDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > MaxRetryBackoff {
			return MaxRetryBackoff
		}
	}
	if delay > MaxRetryBackoff {
		delay = MaxRetryBackoff
	}
	return delay
}
