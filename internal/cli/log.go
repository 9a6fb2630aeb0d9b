package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Action  string
	Message string
	Output  string
	Fields  []string
}

// LogResult is the JSON payload of log.
type LogResult struct {
	Condition string `json:"condition"`
	Run       string `json:"run,omitempty"`
	Output    string `json:"output,omitempty"`
	Key       string `json:"key"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log <ic> [run]",
		Short: "Append an action log entry",
		Long: `Append a timestamped entry to the action log of a condition or run.

Run entries are also recorded in the parent condition's log, tagged with
the run key. With --output the entry is recorded in that output's log too.

Examples:
  simlog log ic_a.dat --action generated --message "made with MUSIC"
  simlog log ic_a.dat run1.nml --action submitted --message "job 4242" --field job=4242`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "action name (required)")
	_ = cmd.MarkFlagRequired("action")
	cmd.Flags().StringVar(&opts.Message, "message", "", "log message")
	cmd.Flags().StringVar(&opts.Output, "output", "", "output directory the entry concerns (runs only)")
	cmd.Flags().StringArrayVar(&opts.Fields, "field", nil, "extra entry field as key=value (repeatable)")

	return cmd
}

func runLog(opts *LogOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	fields, err := parseAssignments(opts.Fields)
	if err != nil {
		return fail(f, ErrCodeInvalidInput, "invalid --field", err)
	}
	if opts.Output != "" && len(args) < 2 {
		return fail(f, ErrCodeInvalidInput, "--output requires a run", errInvalidInput)
	}

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}
	c, err := st.Condition(args[0])
	if err != nil {
		return fail(f, ErrCodeNotFound, "unknown condition", err)
	}

	logOpts := record.LogOptions{Output: opts.Output, Fields: fields}
	result := LogResult{Condition: c.Name(), Output: opts.Output}
	if len(args) == 1 {
		result.Key, err = c.Log(opts.Message, opts.Action, logOpts)
	} else {
		var r record.Run
		if r, err = c.Run(args[1]); err != nil {
			return fail(f, ErrCodeNotFound, "unknown run", err)
		}
		result.Run = r.Name()
		result.Key, err = r.Log(opts.Message, opts.Action, logOpts)
	}
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to log action", err)
	}

	if f.JSON() {
		return f.Success(result)
	}
	return f.Success(fmt.Sprintf("Logged %s as %s", opts.Action, result.Key))
}
