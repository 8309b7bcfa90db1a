package document

import (
	"errors"
	"fmt"
)

// ErrInvalidDocument is matched by every structural parse failure.
var ErrInvalidDocument = errors.New("invalid content document")

// Error names the offending part of a rejected document.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrInvalidDocument, e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidDocument) hold.
func (e *Error) Unwrap() error { return ErrInvalidDocument }

func invalid(field, reason string, args ...any) error {
	return &Error{Field: field, Reason: fmt.Sprintf(reason, args...)}
}
