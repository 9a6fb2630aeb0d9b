package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/simlog/internal/config"
	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose       bool
	Format        string // "json" | "text"
	SimulationLog string
	ConfigPath    string
	SchemaPath    string

	// Loaded from ConfigPath when nil.
	Config *config.Config

	// Built from Config when nil.
	Logger *slog.Logger

	// Overrides for tests. Nil means the system clock, UUIDv7 IDs and
	// the command's stdin.
	Clock record.Clock
	IDs   record.IDGenerator
	Stdin io.Reader

	logFile io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the simlog CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the simlog CLI under ctx.
func Execute(ctx context.Context) error {
	opts := &RootOptions{}
	return execute(ctx, newRootCommand(opts), opts)
}

// execute runs cmd and releases the log file on every exit path, including
// failed commands that skip the post-run hooks.
func execute(ctx context.Context, cmd *cobra.Command, opts *RootOptions) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := opts.close(); cerr != nil && err == nil {
		err = fmt.Errorf("close log file: %w", cerr)
	}
	return err
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simlog",
		Short: "simlog - simulation record keeping",
		Long: `Keep a hierarchical record of initial conditions, simulation runs and
their outputs in a single JSON simulation log.

Every record is checked against a template on insert and carries an
action log of timestamped entries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				err := fmt.Errorf("%w: format %q must be one of %v", errInvalidInput, opts.Format, ValidFormats)
				return fail(opts.formatter(cmd), ErrCodeInvalidInput, "invalid --format", err)
			}
			if err := opts.setup(cmd); err != nil {
				return fail(opts.formatter(cmd), ErrCodeLoadFailed, "failed to load settings", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.SimulationLog, "simulation_log", "", "path to the simulation log (default from config)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to the config file (default $"+config.EnvVar+" or the user config dir)")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "", "CUE or JSON template file (default from config, else built in)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setup loads the config and builds the logger. It is safe to call more
// than once.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.Config == nil {
		cfg, err := config.Load(o.ConfigPath)
		if err != nil {
			return err
		}
		o.Config = cfg
	}
	if o.SimulationLog == "" {
		o.SimulationLog = o.Config.Directories.SimulationLog
	}
	if o.SchemaPath == "" {
		o.SchemaPath = o.Config.Store.Schema
	}
	if o.Logger == nil {
		logger, closer, err := newLogger(o.Config.Logging, o.Verbose, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		o.Logger = logger
		o.logFile = closer
	}
	return nil
}

func (o *RootOptions) close() error {
	if o.logFile == nil {
		return nil
	}
	err := o.logFile.Close()
	o.logFile = nil
	return err
}

// newLogger builds the slog logger described by cfg. Verbose forces debug.
func newLogger(cfg config.Logging, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler), closer, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Warnings go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) now() time.Time {
	if o.Clock != nil {
		return o.Clock.Now()
	}
	return time.Now()
}

// storeOptions translates settings into record store options.
func (o *RootOptions) storeOptions() ([]record.Option, error) {
	opts := []record.Option{
		record.WithLogger(o.Logger),
		record.WithConflictCheck(o.Config.Store.ConflictCheck),
		record.WithLockTimeout(o.Config.Store.LockTimeout.Duration),
	}
	if o.Clock != nil {
		opts = append(opts, record.WithClock(o.Clock))
	}
	if o.IDs != nil {
		opts = append(opts, record.WithIDGenerator(o.IDs))
	}
	if o.SchemaPath != "" {
		tmpl, err := schema.LoadFile(o.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		o.Logger.Debug("loaded templates", "path", o.SchemaPath)
		opts = append(opts, record.WithTemplates(tmpl))
	}
	return opts, nil
}

// openStore opens the configured simulation log.
func (o *RootOptions) openStore() (*record.Store, error) {
	opts, err := o.storeOptions()
	if err != nil {
		return nil, err
	}
	return record.Open(o.SimulationLog, opts...)
}
