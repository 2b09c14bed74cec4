package customer

import (
	"errors"
	"sort"
	"strings"

	"github.com/jmehdipour/customers-api/internal/validation"
)

var ErrNotFound = errors.New("customer not found")

// ValidationError carries per-field violations; nothing was written.
type ValidationError struct {
	Errors validation.Errors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid " + strings.Join(fields, ", ")
}

func newFieldError(field, msg string) *ValidationError {
	return &ValidationError{Errors: validation.Errors{field: {msg}}}
}

// outcome labels err for the ops counter.
func outcome(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
