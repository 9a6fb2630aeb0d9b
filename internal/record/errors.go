package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/simlog/internal/schema"
	"github.com/roach88/simlog/internal/value"
)

var (
	// ErrNotFound means the simulation log file does not exist.
	ErrNotFound = errors.New("simulation log not found")

	// ErrRecordNotFound means a condition, run or output key is not in the document.
	ErrRecordNotFound = errors.New("record not found")

	// ErrPathNotFound is returned (wrapped) by lookups that miss.
	ErrPathNotFound = value.ErrPathNotFound

	// ErrDeletionDeclined means the confirmer answered no to the first prompt.
	ErrDeletionDeclined = errors.New("deletion declined")

	// ErrConfirmationRequired means a delete was requested without Force
	// and without a Confirmer.
	ErrConfirmationRequired = errors.New("deletion requires confirmation or force")

	// ErrStaleDocument means the file on disk changed since it was loaded.
	ErrStaleDocument = errors.New("simulation log changed on disk since it was loaded")

	// ErrInvalidActionLog means a record's action_log is not an object.
	ErrInvalidActionLog = errors.New("invalid action log")

	// ErrInvalidLevel means a search level other than "ic" or "sim".
	ErrInvalidLevel = errors.New("invalid level")
)

// MalformedDocumentError reports a simulation log that is not a JSON object.
type MalformedDocumentError struct {
	Path string
	Err  error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed simulation log %s: %v", e.Path, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error {
	return e.Err
}

// SchemaViolation reports an entry rejected by its level's template.
type SchemaViolation struct {
	Level      string
	Key        string
	Violations []schema.Violation
}

func (e *SchemaViolation) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("%s entry %q does not match template: %s", e.Level, e.Key, strings.Join(msgs, "; "))
}

// LookupError reports a nested path that does not resolve.
type LookupError struct {
	Path []string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", strings.Join(e.Path, "."), e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsSchemaViolation reports whether err is or wraps a *SchemaViolation.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolation
	return errors.As(err, &sv)
}

// IsNotFound reports whether err means a missing file, record or path.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrRecordNotFound) || errors.Is(err, ErrPathNotFound)
}
