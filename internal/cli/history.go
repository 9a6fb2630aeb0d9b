package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/index"
	"github.com/roach88/simlog/internal/record"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database  string
	Condition string
	Run       string
	Action    string
	Limit     int
}

// HistoryResult is the JSON payload of history.
type HistoryResult struct {
	Stale   bool           `json:"stale"`
	Actions []index.Action `json:"actions"`
}

var errIndexNotBuilt = errors.New("index has not been built")

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show action history from the index",
		Long: `Show action log entries across every record, oldest first, from the
SQLite index. Run "simlog index" first; a warning is printed when the
simulation log changed since the index was built.

Examples:
  simlog history --limit 20
  simlog history --condition ic_a.dat --run run1.nml
  simlog history --action submitted --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the index database (default from config)")
	cmd.Flags().StringVar(&opts.Condition, "condition", "", "only entries of this condition")
	cmd.Flags().StringVar(&opts.Run, "run", "", "only entries of this run")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only entries with this action")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "most recent N entries (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	if opts.Limit < 0 {
		return fail(f, ErrCodeInvalidInput, "invalid --limit", fmt.Errorf("%w: %d is negative", errInvalidInput, opts.Limit))
	}

	dbPath := opts.indexPath(opts.Database)
	if _, err := os.Stat(dbPath); err != nil {
		return fail(f, ErrCodeNotFound, "index not found, run simlog index", err)
	}
	idx, err := index.Open(dbPath)
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open index", err)
	}
	defer idx.Close()

	src, built, err := idx.BuiltFrom(ctx)
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to read index", err)
	}
	if !built {
		return fail(f, ErrCodeNotFound, "index is empty, run simlog index", errIndexNotBuilt)
	}

	stale := opts.indexStale(src)
	if stale {
		f.Warnf("index is out of date with %s, run simlog index", src.Path)
	}

	actions, err := idx.History(ctx, index.HistoryFilter{
		Condition: opts.Condition,
		Run:       opts.Run,
		Action:    opts.Action,
		Limit:     opts.Limit,
	})
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to query history", err)
	}

	if f.JSON() {
		return f.Success(HistoryResult{Stale: stale, Actions: actions})
	}
	if len(actions) == 0 {
		f.Textf("No actions recorded")
		return nil
	}
	now := opts.now()
	for _, a := range actions {
		when := "unknown time"
		if !a.LoggedAt.IsZero() {
			when = humanize.RelTime(a.LoggedAt, now, "ago", "from now")
		}
		f.Textf("%s  %-24s  %-12s  %s (%s)", a.Key, record.Hit{Condition: a.Condition, Run: a.Run}, a.Action, a.Message, when)
	}
	return nil
}

// indexStale reports whether the simulation log the index was built from
// has changed. An unreadable log counts as stale.
func (o *RootOptions) indexStale(src index.Source) bool {
	opts, err := o.storeOptions()
	if err != nil {
		return true
	}
	st, err := record.Open(src.Path, opts...)
	if err != nil {
		o.Logger.Debug("cannot open indexed simulation log", "path", src.Path, "error", err)
		return true
	}
	return st.Digest() != src.Digest
}
