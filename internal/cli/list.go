package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Level string
}

// ListItem is one listed record. Run is empty at condition level.
type ListItem struct {
	Condition string `json:"condition"`
	Run       string `json:"run,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List condition or run keys",
		Long: `List the keys of every initial condition (--level ic) or every
simulation run as "condition :: run" (--level sim).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Level, "level", string(record.LevelCondition), "record level (ic|sim)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	level, err := record.ParseLevel(opts.Level)
	if err != nil {
		return fail(f, ErrCodeInvalidInput, "invalid --level", err)
	}
	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	items := []ListItem{}
	if level == record.LevelCondition {
		for _, c := range st.Conditions() {
			items = append(items, ListItem{Condition: c.Name()})
		}
	} else {
		for _, r := range st.Runs() {
			items = append(items, ListItem{Condition: r.Parent().Name(), Run: r.Name()})
		}
	}

	if f.JSON() {
		return f.Success(items)
	}
	for _, it := range items {
		f.Textf("%s", record.Hit(it).String())
	}
	return nil
}
