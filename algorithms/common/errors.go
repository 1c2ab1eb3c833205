package common

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the sentinel every rejected argument unwraps to
var ErrInvalidInput = errors.New("invalid input")

// InputError describes an argument an analysis operation refused to process
type InputError struct {
	Op      string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Message)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInputError creates an InputError for operation op
func NewInputError(op, format string, args ...any) error {
	return &InputError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err was caused by a rejected argument
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
