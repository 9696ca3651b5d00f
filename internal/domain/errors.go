package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// FeedError represents a failure talking to an external price feed.
// Most feed failures are retriable; the engine absorbs them locally.
type FeedError struct {
	Op        string // Operation that failed (e.g., "quote", "history", "dial")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *FeedError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FeedError) IsRetriable() bool {
	return e.Retriable
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new retriable feed error
func NewFeedError(op string, err error) *FeedError {
	return &FeedError{Op: op, Err: err, Retriable: true}
}

// NewFatalFeedError creates a non-retriable feed error
func NewFatalFeedError(op string, err error) *FeedError {
	return &FeedError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// AdvanceError reports a failed engine tick. The series buffer is guaranteed
// to be untouched; the caller should log it and retry on the next tick.
type AdvanceError struct {
	Err error
}

func (e *AdvanceError) Error() string {
	return "advance failed: " + e.Err.Error()
}

func (e *AdvanceError) Unwrap() error {
	return e.Err
}

func (e *AdvanceError) IsRetriable() bool {
	return true
}

var (
	// ErrQuoteUnavailable is returned when no reference price can be produced:
	// the external source kept failing past the threshold, or no seed value
	// exists for the random-walk fallback.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrNoData is returned when a historical source answers with an empty series.
	ErrNoData = errors.New("no data returned")

	// ErrInvalidSymbol is returned when a symbol is not supported or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")
)
