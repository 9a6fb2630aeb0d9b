package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Where     []string
	SearchFor string
	ReturnBy  string
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find records by field values",
		Long: `Find conditions or runs whose fields match every --where predicate.

A predicate is key=value or key=v1,v2 (any of the values). A dotted key is
a path into the record (meta.software); a bare key is looked up on the
record, then in its meta, then in its core. --for picks the level searched
and --return the level reported.

Examples:
  simlog search --where software=RAMSES
  simlog search --where type=merger,isolated --for ic --return sim`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "predicate key=value[,value...] (repeatable)")
	cmd.Flags().StringVar(&opts.SearchFor, "for", string(record.LevelRun), "level to search (ic|sim)")
	cmd.Flags().StringVar(&opts.ReturnBy, "return", string(record.LevelRun), "level to return (ic|sim)")

	return cmd
}

func runSearch(opts *SearchOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	where, err := parseWhere(opts.Where)
	if err != nil {
		return fail(f, ErrCodeInvalidInput, "invalid --where", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	hits, err := st.Search(record.Query{
		Where:     where,
		SearchFor: record.Level(opts.SearchFor),
		ReturnBy:  record.Level(opts.ReturnBy),
	})
	if err != nil {
		return fail(f, ErrCodeInvalidInput, "search failed", err)
	}

	if f.JSON() {
		items := make([]ListItem, len(hits))
		for i, h := range hits {
			items[i] = ListItem(h)
		}
		return f.Success(items)
	}
	if len(hits) == 0 {
		f.Textf("No matches")
		return nil
	}
	for _, h := range hits {
		f.Textf("%s", h)
	}
	return nil
}
