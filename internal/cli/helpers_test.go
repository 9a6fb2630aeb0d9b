package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/simlog/internal/config"
	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/testutil"
)

// testEnv runs commands against a simulation log in a temp directory with
// a deterministic clock and IDs.
type testEnv struct {
	t     *testing.T
	dir   string
	cfg   *config.Config
	clock *testutil.DeterministicClock
	ids   *testutil.SequentialIDs
	stdin io.Reader
}

type result struct {
	stdout string
	stderr string
	err    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Directories.SimulationLog = filepath.Join(dir, "Simlog.json")
	cfg.Directories.Index = filepath.Join(dir, "index.db")
	return &testEnv{
		t:     t,
		dir:   dir,
		cfg:   cfg,
		clock: testutil.NewDeterministicClock(),
		ids:   testutil.NewSequentialIDs(""),
	}
}

func (e *testEnv) logPath() string { return e.cfg.Directories.SimulationLog }

func (e *testEnv) run(args ...string) result {
	e.t.Helper()
	return e.runContext(context.Background(), args...)
}

func (e *testEnv) runContext(ctx context.Context, args ...string) result {
	e.t.Helper()
	opts := &RootOptions{
		Config: e.cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  e.clock,
		IDs:    e.ids,
		Stdin:  e.stdin,
	}
	cmd := newRootCommand(opts)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := execute(ctx, cmd, opts)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// mustRun runs a command that is expected to succeed.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	res := e.run(args...)
	require.NoError(e.t, res.err, "simlog %v\nstdout: %s\nstderr: %s", args, res.stdout, res.stderr)
	return res.stdout
}

// seed creates a log with two conditions and three runs.
func (e *testEnv) seed() {
	e.t.Helper()
	e.mustRun("init")
	e.mustRun("add", "condition", "ic_a.dat", "--information", "cluster merger", "--meta", "type=merger", "--core", "mass=1e14")
	e.mustRun("add", "condition", "ic_b.dat", "--information", "isolated halo", "--meta", "type=isolated", "--core", "mass=5e13")
	e.mustRun("add", "run", "ic_a.dat", "run1.nml", "--information", "ramses low res", "--meta", "software=RAMSES")
	e.mustRun("add", "run", "ic_a.dat", "run2.nml", "--information", "gadget", "--meta", "software=GADGET")
	e.mustRun("add", "run", "ic_b.dat", "run3.nml", "--information", "ramses high res", "--meta", "software=RAMSES")
}

func (e *testEnv) open() *record.Store {
	e.t.Helper()
	st, err := record.Open(e.logPath(), record.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(e.t, err)
	return st
}

// decode parses a JSON envelope and returns it with Data left raw.
func decode(t *testing.T, out string) (CLIResponse, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope), "output: %s", out)
	return CLIResponse{Status: envelope.Status, Error: envelope.Error}, envelope.Data
}
