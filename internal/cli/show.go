package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/value"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [key...]",
		Short: "Print a value from the simulation log",
		Long: `Print the value found by following the given keys from the top of the
simulation log. With no keys the whole log is printed.

Examples:
  simlog show ic_a.dat
  simlog show ic_a.dat simulations run1.nml meta software
  simlog show ic_a.dat core --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args, cmd)
		},
	}
}

func runShow(opts *RootOptions, path []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	var v value.Value = st.Document()
	if len(path) > 0 {
		if v, err = st.Get(path...); err != nil {
			return fail(f, ErrCodeNotFound, "no value at path", err)
		}
	}

	if f.JSON() {
		return f.Success(v)
	}
	writeTree(f.Writer, v, 0)
	return nil
}

// writeTree prints v as an indented key/value tree with keys in order.
func writeTree(w io.Writer, v value.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := v.(type) {
	case value.Object:
		for _, k := range v.SortedKeys() {
			child := v[k]
			if isLeaf(child) {
				fmt.Fprintf(w, "%s%s: %s\n", indent, k, scalarText(child))
				continue
			}
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeTree(w, child, depth+1)
		}
	case value.Array:
		for _, elem := range v {
			if isLeaf(elem) {
				fmt.Fprintf(w, "%s- %s\n", indent, scalarText(elem))
				continue
			}
			fmt.Fprintf(w, "%s-\n", indent)
			writeTree(w, elem, depth+1)
		}
	default:
		fmt.Fprintf(w, "%s%s\n", indent, scalarText(v))
	}
}

// isLeaf reports whether v prints on one line. Empty containers do.
func isLeaf(v value.Value) bool {
	switch v := v.(type) {
	case value.Object:
		return len(v) == 0
	case value.Array:
		return len(v) == 0
	}
	return true
}

func scalarText(v value.Value) string {
	if s, ok := v.(value.String); ok {
		return string(s)
	}
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
