package recurring

import (
	"errors"
	"fmt"

	"recurpay/internal/recurrence"
)

// ErrNotFound is returned (possibly wrapped) when a definition, account or
// other row does not exist.
var ErrNotFound = errors.New("not found")

// errLostRace aborts a transaction whose schedule compare-and-set matched no row.
var errLostRace = errors.New("schedule advanced concurrently")

// ValidationError reports bad input for a definition field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func fromRuleError(err error) error {
	var fe *recurrence.FieldError
	if errors.As(err, &fe) {
		return &ValidationError{Field: "rule." + fe.Field, Reason: fe.Reason}
	}
	return err
}
