package errors

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the query and order pipelines. Callers match them
// with errors.Is; everything below the top-level responders wraps one of these.

var (
	// ErrNotFound indicates a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid user input
	ErrInvalidInput = errors.New("invalid input")

	// ErrSynthesis indicates the completion service produced no usable query
	ErrSynthesis = errors.New("query synthesis failed")

	// ErrInvalidQuery indicates a candidate query failed validation or parsing
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExecution indicates the store rejected or failed a query
	ErrExecution = errors.New("query execution failed")

	// ErrTimeout indicates an external call exceeded its deadline
	ErrTimeout = errors.New("operation timed out")

	// ErrDatabaseOperation indicates a database operation failed
	ErrDatabaseOperation = errors.New("database operation failed")

	// ErrLLMCommunication indicates LLM communication failed
	ErrLLMCommunication = errors.New("llm communication failed")
)

// WrapError wraps an error with context message
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapErrorf wraps an error with formatted context message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Kind attaches a sentinel kind to err while keeping err itself in the chain,
// so both errors.Is(err, kind) and errors.Is(err, cause) hold.
func Kind(kind error, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
