package helpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"rank-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type RankObserverError struct {
	Message string
	Cause   error
}

func (e *RankObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RankObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error kinds for errors.As
type ConfigurationError struct{ RankObserverError }
type DataSourceError struct{ RankObserverError }
type DatabaseError struct{ RankObserverError }
type PublishError struct{ RankObserverError }

// NetworkError is raised by the session layer after retries are exhausted.
type NetworkError struct {
	RankObserverError
	StatusCode int
}

// SchemaError rejects a snapshot that lacks required columns.
type SchemaError struct {
	RankObserverError
	Missing []string
}

// -----------------------------------------------------------------------------

func NewSchemaError(missing []string) *SchemaError {
	return &SchemaError{
		RankObserverError: RankObserverError{
			Message: fmt.Sprintf("the following required columns are missing: %s", strings.Join(missing, ", ")),
		},
		Missing: missing,
	}
}

func NewNetworkError(message string, status int, cause error) *NetworkError {
	return &NetworkError{RankObserverError: RankObserverError{Message: message, Cause: cause}, StatusCode: status}
}

func NewDataSourceError(message string, cause error) *DataSourceError {
	return &DataSourceError{RankObserverError{Message: message, Cause: cause}}
}

func NewDatabaseError(message string, cause error) *DatabaseError {
	return &DatabaseError{RankObserverError{Message: message, Cause: cause}}
}

func NewPublishError(message string, cause error) *PublishError {
	return &PublishError{RankObserverError{Message: message, Cause: cause}}
}

func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{RankObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts fn up to maxRetries times with exponential backoff.
// The wait between attempts is interrupted by ctx.
func RetryWithBackoff[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func() (T, error)) (T, error) {
	return RetryWithBackoffIf(ctx, operation, maxRetries, baseDelay, log, nil, fn)
}

// RetryWithBackoffIf is RetryWithBackoff that gives up at once on errors
// retryable rejects. A nil retryable retries every error.
func RetryWithBackoffIf[T any](ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	if maxRetries <= 0 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 || (retryable != nil && !retryable(err)) {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// -----------------------------------------------------------------------------
// Error Handler
// -----------------------------------------------------------------------------

// ErrorHandler counts consecutive failures of a recurring operation.
type ErrorHandler struct {
	Logger              *logger.Logger
	ErrorCount          int
	MaxConsecutiveError int
	mu                  sync.Mutex
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{
		Logger:              log,
		MaxConsecutiveError: 10,
	}
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) ResetErrorCount() {
	e.mu.Lock()
	e.ErrorCount = 0
	e.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Handle logs err and reports whether the failure streak crossed the limit.
func (e *ErrorHandler) Handle(err error, context string) bool {
	if err == nil {
		return false
	}

	e.mu.Lock()
	e.ErrorCount++
	count := e.ErrorCount
	e.mu.Unlock()

	e.Logger.Error("Error in %s: %v", context, err)
	if count >= e.MaxConsecutiveError {
		e.Logger.Warning("%s failed %d times in a row", context, count)
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

func (e *ErrorHandler) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ErrorCount
}
