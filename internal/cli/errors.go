package cli

import (
	"errors"
	"io/fs"

	"github.com/roach88/simlog/internal/config"
	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/schema"
)

// Error codes reported in the JSON envelope and text output.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeInvalidInput    = "E002" // Bad argument, flag or value
	ErrCodeSchemaViolation = "E003" // Entry does not match its template
	ErrCodeLoadFailed      = "E004" // Malformed document, config or template file
	ErrCodeNotFound        = "E005" // File, record or path not found
	ErrCodeConflict        = "E006" // File exists or changed on disk
	ErrCodeWriteFailed     = "E007" // Save, delete or index write error
	ErrCodeDeclined        = "E008" // Deletion declined or not confirmed
)

// classify maps an error to an error code and exit code. fallback is used
// when err carries no recognizable cause.
func classify(err error, fallback string) (string, int) {
	var (
		malformed  *record.MalformedDocumentError
		compileErr *schema.CompileError
	)
	switch {
	case record.IsSchemaViolation(err), errors.Is(err, record.ErrInvalidActionLog):
		return ErrCodeSchemaViolation, ExitFailure
	case errors.Is(err, record.ErrDeletionDeclined):
		return ErrCodeDeclined, ExitFailure
	case errors.Is(err, record.ErrConfirmationRequired):
		return ErrCodeDeclined, ExitCommandError
	case record.IsNotFound(err), errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, record.ErrStaleDocument), errors.Is(err, fs.ErrExist):
		return ErrCodeConflict, ExitCommandError
	case errors.As(err, &malformed), errors.As(err, &compileErr), errors.Is(err, config.ErrInvalid):
		return ErrCodeLoadFailed, ExitCommandError
	case errors.Is(err, record.ErrInvalidLevel), errors.Is(err, errInvalidInput):
		return ErrCodeInvalidInput, ExitCommandError
	}
	return fallback, ExitCommandError
}

// errInvalidInput marks argument and flag parsing errors.
var errInvalidInput = errors.New("invalid input")

// fail reports err through the formatter and returns the matching ExitError.
func fail(f *OutputFormatter, fallback, message string, err error) error {
	code, exit := classify(err, fallback)
	full := message
	if err != nil {
		full = message + ": " + err.Error()
	}
	_ = f.Error(code, full, nil)
	return WrapExitError(exit, code+": "+message, err)
}
