package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/value"
)

// AddOptions holds flags shared by the add subcommands.
type AddOptions struct {
	*RootOptions
	Information string
	File        string
	Meta        []string
	Core        []string
	Force       bool
}

// AddResult is the JSON payload of add.
type AddResult struct {
	Level  string       `json:"level"`
	Path   []string     `json:"path"`
	Record value.Object `json:"record"`
}

// NewAddCommand creates the add command and its level subcommands.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a condition, run or output record",
		Long: `Add a record at one of three levels. The body is built from --file
(YAML or JSON), then --information, --meta and --core are applied on top.

Missing headers and dates are filled in and the result is checked against
the level's template. --force stores the body exactly as given.

Examples:
  simlog add condition ic_a.dat --information "cluster merger" --meta type=merger
  simlog add run ic_a.dat run1.nml --information "low res" --meta software=RAMSES
  simlog add output ic_a.dat run1.nml out_001 --information "z=0 snapshot"`,
	}

	cmd.AddCommand(newAddLevelCommand(rootOpts, "condition <ic>", "Add an initial condition record", 1, addCondition))
	cmd.AddCommand(newAddLevelCommand(rootOpts, "run <ic> <run>", "Add a simulation run to a condition", 2, addRun))
	cmd.AddCommand(newAddLevelCommand(rootOpts, "output <ic> <run> <dir>", "Add an output to a run", 3, addOutput))

	return cmd
}

type addFunc func(st *record.Store, keys []string, body value.Object, opts record.AddOptions) (value.Object, error)

func newAddLevelCommand(rootOpts *RootOptions, use, short string, nargs int, add addFunc) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, cmd, args, add)
		},
	}

	cmd.Flags().StringVar(&opts.Information, "information", "", "description of the record")
	cmd.Flags().StringVar(&opts.File, "file", "", "YAML or JSON file holding the record body")
	cmd.Flags().StringArrayVar(&opts.Meta, "meta", nil, "meta field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Core, "core", nil, "core field as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "skip default filling and template checks")

	return cmd
}

func runAdd(opts *AddOptions, cmd *cobra.Command, keys []string, add addFunc) error {
	f := opts.formatter(cmd)

	body, err := opts.body(cmd)
	if err != nil {
		return fail(f, ErrCodeInvalidInput, "invalid record body", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return fail(f, ErrCodeLoadFailed, "failed to open simulation log", err)
	}

	rec, err := add(st, keys, body, record.AddOptions{Force: opts.Force})
	if err != nil {
		return fail(f, ErrCodeWriteFailed, "failed to add record", err)
	}

	level := cmd.Name()
	if f.JSON() {
		return f.Success(AddResult{Level: level, Path: keys, Record: rec})
	}
	return f.Success(fmt.Sprintf("Added %s %s", level, strings.Join(keys, " :: ")))
}

// body assembles the record body from the flags.
func (o *AddOptions) body(cmd *cobra.Command) (value.Object, error) {
	body := value.Object{}
	if o.File != "" {
		var err error
		if body, err = readBody(o.File); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("information") {
		body["information"] = value.String(o.Information)
	}

	meta, err := parseAssignments(o.Meta)
	if err != nil {
		return nil, err
	}
	core, err := parseAssignments(o.Core)
	if err != nil {
		return nil, err
	}
	mergeInto(body, "meta", meta)
	mergeInto(body, "core", core)
	return body, nil
}

func addCondition(st *record.Store, keys []string, body value.Object, opts record.AddOptions) (value.Object, error) {
	if err := st.Add(value.Object{keys[0]: body}, opts); err != nil {
		return nil, err
	}
	c, err := st.Condition(keys[0])
	if err != nil {
		return nil, err
	}
	return c.Record(), nil
}

func addRun(st *record.Store, keys []string, body value.Object, opts record.AddOptions) (value.Object, error) {
	c, err := st.Condition(keys[0])
	if err != nil {
		return nil, err
	}
	if err := c.Add(value.Object{keys[1]: body}, opts); err != nil {
		return nil, err
	}
	r, err := c.Run(keys[1])
	if err != nil {
		return nil, err
	}
	return r.Record(), nil
}

func addOutput(st *record.Store, keys []string, body value.Object, opts record.AddOptions) (value.Object, error) {
	c, err := st.Condition(keys[0])
	if err != nil {
		return nil, err
	}
	r, err := c.Run(keys[1])
	if err != nil {
		return nil, err
	}
	if err := r.Add(value.Object{keys[2]: body}, opts); err != nil {
		return nil, err
	}
	return r.Output(keys[2])
}
