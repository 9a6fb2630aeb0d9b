package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Force bool
}

// DeleteResult is the JSON payload of delete.
type DeleteResult struct {
	Condition string            `json:"condition"`
	Run       string            `json:"run,omitempty"`
	Removed   []string          `json:"removed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <ic> [run]",
		Short: "Delete a condition or run and its materials",
		Long: `Delete a condition (with all of its runs) or a single run.

Two questions are asked: whether to delete the record, then whether to also
delete the materials on disk (output directories and the files named by the
record keys). Answering no to the second keeps the files. --force deletes
everything without asking and is required when stdin is not a terminal.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "delete without confirmation")

	return cmd
}

func runDelete(opts *DeleteOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	delOpts := record.DeleteOptions{Force: opts.Force}
	if !opts.Force {
		confirmer, err := opts.confirmer(cmd)
		if err != nil {
			return fail(f, ErrCodeDeclined, "cannot confirm deletion", err)
		}
		delOpts.Confirm = confirmer
	}

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}
	c, err := st.Condition(args[0])
	if err != nil {
		return fail(f, ErrCodeNotFound, "unknown condition", err)
	}

	result := DeleteResult{Condition: c.Name()}
	var report record.DeleteReport
	if len(args) == 1 {
		report, err = c.Delete(delOpts)
	} else {
		var r record.Run
		if r, err = c.Run(args[1]); err != nil {
			return fail(f, ErrCodeNotFound, "unknown run", err)
		}
		result.Run = r.Name()
		report, err = r.Delete(delOpts)
	}
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to delete", err)
	}

	result.Removed = append([]string{}, report.Removed...)
	if len(report.Failed) > 0 {
		result.Failed = make(map[string]string, len(report.Failed))
		for path, ferr := range report.Failed {
			result.Failed[path] = ferr.Error()
			f.Warnf("could not remove %s: %v", path, ferr)
		}
	}

	if f.JSON() {
		return f.Success(result)
	}
	target := result.Condition
	if result.Run != "" {
		target = record.Hit{Condition: result.Condition, Run: result.Run}.String()
	}
	f.Textf("Deleted %s", target)
	for _, path := range result.Removed {
		f.Textf("  removed %s", path)
	}
	return nil
}

// confirmer prompts on stdin. A stdin that is a file but not a terminal
// cannot answer, so deletion then requires --force.
func (o *RootOptions) confirmer(cmd *cobra.Command) (record.Confirmer, error) {
	in := o.Stdin
	if in == nil {
		in = cmd.InOrStdin()
	}
	if file, ok := in.(*os.File); ok && !isTerminal(file) {
		return nil, fmt.Errorf("%w: stdin is not a terminal, use --force", record.ErrConfirmationRequired)
	}
	return &promptConfirmer{in: bufio.NewReader(in), out: cmd.ErrOrStderr()}, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var promptPrefix = color.New(color.FgYellow, color.Bold).SprintFunc()

// promptConfirmer asks y/N questions. Anything but "y" or "yes" is no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(p.out, "%s%s ", promptPrefix("[Simulation Management]: "), prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
