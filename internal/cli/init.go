package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Force bool
}

// InitResult is the JSON payload of init.
type InitResult struct {
	Path        string `json:"path"`
	Overwritten bool   `json:"overwritten"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty simulation log",
		Long: `Create an empty simulation log at the configured path.

Fails if the file already exists unless --force is given, in which case
the existing log is replaced. Recorded materials on disk are untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an existing simulation log")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	storeOpts, err := opts.storeOptions()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to prepare store", err)
	}

	overwritten := false
	if opts.Force {
		_, overwritten, err = record.Replace(opts.SimulationLog, storeOpts...)
	} else {
		_, err = record.Create(opts.SimulationLog, storeOpts...)
	}
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to create simulation log", err)
	}

	if f.JSON() {
		return f.Success(InitResult{Path: opts.SimulationLog, Overwritten: overwritten})
	}
	return f.Success(fmt.Sprintf("Created simulation log at %s", opts.SimulationLog))
}
