package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks input that could not be read as CSV.
	ErrDecode = errors.New("survey: decode failed")
	// ErrEmptyInput marks input without any header to derive questions from.
	ErrEmptyInput = errors.New("survey: no questions in input")
	// ErrInvocation marks a failed model call for a single question.
	ErrInvocation = errors.New("survey: analysis invocation failed")
)

// DecodeError is returned by the tabular decoder. Line is 0 when the
// failure is not tied to a specific line.
type DecodeError struct {
	Line  int
	Cause error
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode csv: line %d: %v", e.Line, e.Cause)
	}
	return fmt.Sprintf("decode csv: %v", e.Cause)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Cause} }

// EmptyInputError is returned when no question set can be derived.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	return "empty input: " + e.Reason
}

func (e *EmptyInputError) Unwrap() error { return ErrEmptyInput }

// InvocationError wraps a failed, timed out or empty model call.
type InvocationError struct {
	Question Question
	Cause    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("analyze %q: %v", string(e.Question), e.Cause)
}

func (e *InvocationError) Unwrap() []error { return []error{ErrInvocation, e.Cause} }
