package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/value"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Value string
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <key...> --value JSON",
		Short: "Set a nested value",
		Long: `Store a JSON value at the given key path. Every key but the last must
already exist. A value that is not valid JSON is stored as a string.

Examples:
  simlog set ic_a.dat core mass --value 1e14
  simlog set ic_a.dat simulations run1.nml meta software --value RAMSES`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Value, "value", "", "JSON value to store (required)")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func runSet(opts *SetOptions, path []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	v := parseScalar(opts.Value)
	if err := st.Set(path, v, record.SaveOptions{}); err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to set value", err)
	}

	if f.JSON() {
		return f.Success(map[string]value.Value{"path": toArray(path), "value": v})
	}
	return f.Success(fmt.Sprintf("Set %s", strings.Join(path, " > ")))
}

func toArray(ss []string) value.Array {
	arr := make(value.Array, len(ss))
	for i, s := range ss {
		arr[i] = value.String(s)
	}
	return arr
}
