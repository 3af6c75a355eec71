package lottery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLotteryErrorFormatting(t *testing.T) {
	err := NewError(ErrCodeNotActive, "lottery is not active")
	assert.Equal(t, "[LOTTERY_4001] lottery is not active", err.Error())

	withDetails := err.WithDetails("status is pending")
	assert.Equal(t, "[LOTTERY_4001] lottery is not active: status is pending", withDetails.Error())
}

func TestLotteryErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStateSaveFailure.WithDetails("lottery abc").WithCause(cause)

	assert.ErrorIs(t, err, ErrStateSaveFailure)
	assert.NotErrorIs(t, err, ErrStateLoadFailure)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestBuildersDoNotMutateSharedInstances(t *testing.T) {
	derived := ErrAttemptLimit.WithDetails("current 3, limit 3").WithUserID("user-1").WithOperation("participate")

	assert.Empty(t, ErrAttemptLimit.Details)
	assert.Empty(t, ErrAttemptLimit.UserID)
	assert.Empty(t, ErrAttemptLimit.Operation)

	assert.Equal(t, "current 3, limit 3", derived.Details)
	assert.Equal(t, "user-1", derived.UserID)
	assert.Equal(t, "participate", derived.Operation)
	assert.Equal(t, ErrAttemptLimit.Code, derived.Code)
}

func TestErrorBandPredicates(t *testing.T) {
	assert.True(t, IsParseError(ErrInvalidWeight))
	assert.True(t, IsParseError(ErrMalformedPayload.WithDetails("x")))
	assert.False(t, IsParseError(ErrAttemptLimit))

	assert.True(t, IsDuplicateNameError(ErrDuplicateName))
	assert.False(t, IsDuplicateNameError(ErrEmptyName))

	assert.True(t, IsOperationError(ErrLotteryNotFound))
	assert.True(t, IsOperationError(ErrInvalidTransition))
	assert.False(t, IsOperationError(ErrStateCorrupted))

	assert.True(t, IsPersistenceError(ErrStateCorrupted))
	assert.True(t, IsPersistenceError(ErrRecordTooLarge))
	assert.False(t, IsPersistenceError(ErrCircuitBreakerOpen))

	assert.False(t, IsParseError(errors.New("plain error")))
	assert.False(t, IsParseError(nil))
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(ErrStateSaveFailure))
	assert.True(t, IsRetryableError(ErrCircuitBreakerOpen))
	assert.False(t, IsRetryableError(ErrStateCorrupted))
	assert.False(t, IsRetryableError(ErrAttemptLimit))

	assert.True(t, IsRetryableError(errors.New("dial tcp 10.0.0.1:6379: connection refused")))
	assert.True(t, IsRetryableError(errors.New("i/o timeout")))
	assert.True(t, IsRetryableError(errors.New("redis: connection pool timeout")))
	assert.False(t, IsRetryableError(errors.New("boom")))
}

func TestRetryDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, retryDelay(base, 1))
	assert.Equal(t, 200*time.Millisecond, retryDelay(base, 2))
	assert.Equal(t, 400*time.Millisecond, retryDelay(base, 3))
	assert.Equal(t, MaxRetryBackoff, retryDelay(base, 20))
}

func TestNewCriticalErrorCapturesStack(t *testing.T) {
	err := NewCriticalError(ErrCodeSystem, "boom")
	require.Equal(t, SeverityCritical, err.Severity)
	assert.NotEmpty(t, err.StackTrace)
	assert.False(t, err.Retryable)
}
