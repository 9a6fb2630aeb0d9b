package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/schema"
	"github.com/roach88/simlog/internal/value"
)

// ValidationIssue is one template violation found in a stored record.
type ValidationIssue struct {
	Record  string `json:"record"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Records int               `json:"records"`
	Issues  []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every record against the templates",
		Long: `Check every condition, run and output record against its level's
template. Records added with --force or edited by hand may not conform.

Exits with status 1 when any record has a violation.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	result := validateDocument(st.Document(), st.Templates())
	f.VerboseLog("Checked %d record(s) in %s", result.Records, st.Path())

	if result.Valid {
		if f.JSON() {
			return f.Success(result)
		}
		return f.Success(fmt.Sprintf("\u2713 All %d records valid", result.Records))
	}
	return outputValidationIssues(f, result)
}

// validateDocument walks every record level by level.
func validateDocument(doc value.Object, tmpl *schema.Templates) ValidationResult {
	var result ValidationResult
	check := func(level string, t schema.Object, rec value.Value, keys ...string) {
		result.Records++
		name := keys[0]
		if len(keys) > 1 {
			name = record.Hit{Condition: keys[0], Run: keys[1]}.String()
		}
		if len(keys) > 2 {
			name += " :: " + keys[2]
		}
		for _, v := range schema.Conform(t, rec) {
			result.Issues = append(result.Issues, ValidationIssue{Record: name, Level: level, Message: v.Error()})
		}
	}

	for _, icKey := range doc.SortedKeys() {
		check("condition", tmpl.Condition, doc[icKey], icKey)
		ic, _ := doc.Object(icKey)
		sims, _ := ic.Object("simulations")
		for _, runKey := range sims.SortedKeys() {
			check("run", tmpl.Run, sims[runKey], icKey, runKey)
			run, _ := sims.Object(runKey)
			outputs, _ := run.Object("outputs")
			for _, dir := range outputs.SortedKeys() {
				check("output", tmpl.Output, outputs[dir], icKey, runKey, dir)
			}
		}
	}

	result.Valid = len(result.Issues) == 0
	return result
}

// outputValidationIssues outputs every violation and returns exit code 1.
func outputValidationIssues(f *OutputFormatter, result ValidationResult) error {
	err := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))

	if f.JSON() {
		first := result.Issues[0]
		if encErr := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeSchemaViolation,
				Message: first.Record + ": " + first.Message,
			},
		}); encErr != nil {
			return encErr
		}
		return err
	}

	// Text format
	fmt.Fprintln(f.Writer, "\u2717 Validation failed")
	fmt.Fprintln(f.Writer)
	for _, issue := range result.Issues {
		fmt.Fprintf(f.Writer, "%s (%s)\n", issue.Record, issue.Level)
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", ErrCodeSchemaViolation, issue.Message)
	}
	return err
}
