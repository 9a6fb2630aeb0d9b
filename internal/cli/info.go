package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// InfoResult is the JSON payload of info.
type InfoResult struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Conditions int    `json:"conditions"`
	Runs       int    `json:"runs"`
	Outputs    int    `json:"outputs"`
	Digest     string `json:"digest"`
}

// NewInfoCommand creates the info command.
func NewInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info",
		Short:         "Summarize the simulation log",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(rootOpts, cmd)
		},
	}
}

func runInfo(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}
	fi, err := os.Stat(st.Path())
	if err != nil {
		return fail(f, ErrCodeNotFound, "failed to stat simulation log", err)
	}

	result := InfoResult{
		Path:       st.Path(),
		Size:       fi.Size(),
		Conditions: st.Len(),
		Digest:     st.Digest(),
	}
	for _, r := range st.Runs() {
		result.Runs++
		result.Outputs += len(r.Outputs())
	}

	if f.JSON() {
		return f.Success(result)
	}

	w := f.Writer
	fmt.Fprintf(w, "Path:       %s\n", result.Path)
	fmt.Fprintf(w, "Size:       %s\n", humanize.Bytes(uint64(result.Size)))
	fmt.Fprintf(w, "Conditions: %d\n", result.Conditions)
	fmt.Fprintf(w, "Runs:       %d\n", result.Runs)
	fmt.Fprintf(w, "Outputs:    %d\n", result.Outputs)
	fmt.Fprintf(w, "Digest:     %s\n", result.Digest)
	return nil
}
