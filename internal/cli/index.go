package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/index"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Database string
}

// IndexResult is the JSON payload of index.
type IndexResult struct {
	Database string      `json:"database"`
	Source   string      `json:"source"`
	Digest   string      `json:"digest"`
	Stats    index.Stats `json:"stats"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the SQLite index of the simulation log",
		Long: `Rebuild the SQLite mirror used by history. The simulation log stays
the source of truth; the index is replaced wholesale on every run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the index database (default from config)")

	return cmd
}

func (o *RootOptions) indexPath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.Config.Directories.Index
}

func runIndex(opts *IndexOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	dbPath := opts.indexPath(opts.Database)
	idx, err := index.Open(dbPath)
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to open index", err)
	}
	defer idx.Close()

	stats, err := idx.Rebuild(ctx, st.Document(), index.Source{Path: st.Path(), Digest: st.Digest()})
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to rebuild index", err)
	}
	opts.Logger.Info("rebuilt index", "db", dbPath, "conditions", stats.Conditions, "runs", stats.Runs, "actions", stats.Actions)

	if f.JSON() {
		return f.Success(IndexResult{Database: dbPath, Source: st.Path(), Digest: st.Digest(), Stats: stats})
	}
	return f.Success(fmt.Sprintf("Indexed %d conditions, %d runs, %d outputs, %d actions into %s",
		stats.Conditions, stats.Runs, stats.Outputs, stats.Actions, dbPath))
}
