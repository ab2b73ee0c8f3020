package store

import "errors"

var (
	// ErrNotFound is returned when a row is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique-constraint violations (user name/email).
	ErrConflict = errors.New("conflict")
)

// ValidationError rejects a task or user draft before any state is committed.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
