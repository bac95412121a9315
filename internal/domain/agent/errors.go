package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the backing store could not be reached.
	ErrStoreUnavailable = errors.New("agent store unavailable")
	// ErrNotFound means a referenced agent id no longer exists.
	ErrNotFound = errors.New("agent not found")
)

// ValidationError reports a malformed create/edit payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrStoreUnavailable) }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
