package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simlog/internal/record"
	"github.com/roach88/simlog/internal/value"
)

func TestInit(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun("init")
	assert.Equal(t, "Created simulation log at "+env.logPath()+"\n", out)

	data, err := os.ReadFile(env.logPath())
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestInitRefusesExisting(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("init")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "E006")
	assert.Equal(t, 2, env.open().Len(), "existing log untouched")
}

func TestInitForceReplaces(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("--format", "json", "init", "--force")
	require.NoError(t, res.err)

	resp, data := decode(t, res.stdout)
	assert.Equal(t, "ok", resp.Status)
	var got InitResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, got.Overwritten)
	assert.Equal(t, 0, env.open().Len())
}

func TestInitForceKeepsLogOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed()
	before, err := os.ReadFile(env.logPath())
	require.NoError(t, err)

	res := env.run("init", "--force", "--schema", filepath.Join(env.dir, "nope.cue"))
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "E004")

	after, err := os.ReadFile(env.logPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, 2, env.open().Len())
}

func TestInitForceCreatesMissing(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("--format", "json", "init", "--force")
	require.NoError(t, res.err)

	_, data := decode(t, res.stdout)
	var got InitResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.False(t, got.Overwritten)
	assert.Equal(t, 0, env.open().Len())
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t)
	env.seed()
	env.mustRun("add", "output", "ic_a.dat", "run1.nml", "out_001", "--information", "z=0")

	out := env.mustRun("info")
	assert.Contains(t, out, "Path:       "+env.logPath())
	assert.Contains(t, out, "Conditions: 2\n")
	assert.Contains(t, out, "Runs:       3\n")
	assert.Contains(t, out, "Outputs:    1\n")
	assert.Contains(t, out, " kB\n", "size is humanized")

	res := env.run("--format", "json", "info")
	require.NoError(t, res.err)
	_, data := decode(t, res.stdout)
	var info InfoResult
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, env.open().Digest(), info.Digest)
	assert.Positive(t, info.Size)
}

func TestInfoMissingLog(t *testing.T) {
	env := newTestEnv(t)

	res := env.run("info")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, record.ErrNotFound)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [E005]")
}

func TestInfoMalformedLog(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.logPath(), []byte("[1, 2]"), 0o644))

	res := env.run("info")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E004]")
}

func TestListJSON(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("--format", "json", "list", "--level", "sim")
	require.NoError(t, res.err)
	_, data := decode(t, res.stdout)
	var items []ListItem
	require.NoError(t, json.Unmarshal(data, &items))
	assert.Equal(t, []ListItem{
		{Condition: "ic_a.dat", Run: "run1.nml"},
		{Condition: "ic_a.dat", Run: "run2.nml"},
		{Condition: "ic_b.dat", Run: "run3.nml"},
	}, items)
}

func TestListInvalidLevel(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("list", "--level", "output")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, record.ErrInvalidLevel)
	assert.Contains(t, res.stdout, "E002")
}

func TestShowValue(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	assert.Equal(t, "RAMSES\n", env.mustRun("show", "ic_a.dat", "simulations", "run1.nml", "meta", "software"))
	assert.Equal(t, "1e+14\n", env.mustRun("show", "ic_a.dat", "core", "mass"))

	res := env.run("--format", "json", "show", "ic_b.dat", "core")
	require.NoError(t, res.err)
	_, data := decode(t, res.stdout)
	core, err := value.ParseObject(data)
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Object{"mass": value.Float(5e13)}, core))
}

func TestShowMissingPath(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("show", "ic_a.dat", "simulations", "nope.nml")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, record.ErrPathNotFound)
	assert.Contains(t, res.stdout, "E005")
}

func TestSet(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	out := env.mustRun("set", "ic_a.dat", "core", "redshift", "--value", "99")
	assert.Equal(t, "Set ic_a.dat > core > redshift\n", out)
	env.mustRun("set", "ic_a.dat", "meta", "tags", "--value", `["dm", "hydro"]`)

	st := env.open()
	v, err := st.Get("ic_a.dat", "core", "redshift")
	require.NoError(t, err)
	assert.Equal(t, value.Int(99), v)
	v, err = st.Get("ic_a.dat", "meta", "tags")
	require.NoError(t, err)
	assert.Equal(t, value.Array{value.String("dm"), value.String("hydro")}, v)
}

func TestSetMissingParent(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("set", "ic_a.dat", "nope", "x", "--value", "1")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "E005")
}

func TestAddCondition(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.run("--format", "json", "add", "condition", "ic_a.dat",
		"--information", "cluster merger", "--meta", "type=merger", "--core", "mass=1e14", "--core", "ratio=2")
	require.NoError(t, res.err)

	_, data := decode(t, res.stdout)
	var got struct {
		Level  string       `json:"level"`
		Path   []string     `json:"path"`
		Record value.Object `json:"record"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "condition", got.Level)
	assert.Equal(t, []string{"ic_a.dat"}, got.Path)

	meta, _ := got.Record.Object("meta")
	assert.Equal(t, "01-02-2024_10-00-00", meta.String("dateCreated"))
	assert.Equal(t, "merger", meta.String("type"))
	core, _ := got.Record.Object("core")
	assert.Equal(t, value.Int(2), core["ratio"])
	for _, h := range []string{"simulations", "action_log"} {
		assert.Contains(t, got.Record, h)
	}
}

func TestAddRejectsMissingInformation(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	res := env.run("add", "condition", "ic_a.dat", "--meta", "type=merger")
	require.Error(t, res.err)
	assert.True(t, record.IsSchemaViolation(res.err))
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [E003]")
	assert.Contains(t, res.stdout, "information: required key missing")
	assert.Equal(t, 0, env.open().Len())
}

func TestAddForce(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun("init")

	env.mustRun("add", "condition", "raw.dat", "--force", "--meta", "note=hand made")

	rec, err := env.open().Condition("raw.dat")
	require.NoError(t, err)
	assert.Equal(t, value.Object{"meta": value.Object{"note": value.String("hand made")}}, rec.Record())
}

func TestAddFromFile(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	body := filepath.Join(env.dir, "run.yaml")
	require.NoError(t, os.WriteFile(body, []byte(`
information: from yaml
meta:
  software: AREPO
  nodes: 4
components:
  gas: true
`), 0o644))

	env.mustRun("add", "run", "ic_b.dat", "run4.nml", "--file", body, "--meta", "nodes=8")

	run, err := env.open().FindRun("run4.nml")
	require.NoError(t, err)
	assert.Equal(t, "from yaml", run.Information())
	assert.Equal(t, "AREPO", run.Meta().String("software"))
	assert.Equal(t, value.Int(8), run.Meta()["nodes"], "flags override the file")
	assert.Equal(t, value.Object{"gas": value.Bool(true)}, run.Components())
}

func TestAddFromJSONFile(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	body := filepath.Join(env.dir, "out.json")
	require.NoError(t, os.WriteFile(body, []byte(`{"information": "snapshot", "meta": {"isRun": true}}`), 0o644))

	out := env.mustRun("add", "output", "ic_a.dat", "run1.nml", "out_001", "--file", body)
	assert.Equal(t, "Added output ic_a.dat :: run1.nml :: out_001\n", out)

	run, err := env.open().FindRun("run1.nml")
	require.NoError(t, err)
	output, err := run.Output("out_001")
	require.NoError(t, err)
	meta, _ := output.Object("meta")
	assert.Equal(t, value.Bool(true), meta["isRun"])
	assert.Equal(t, value.String("None"), meta["slurm_path"])
}

func TestAddBadBody(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	list := filepath.Join(env.dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte("- a\n- b\n"), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"bad assignment", []string{"--meta", "nokey"}},
		{"file not object", []string{"--file", list}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"add", "condition", "x.dat", "--information", "x"}, tt.args...)
			res := env.run(args...)
			require.Error(t, res.err)
			assert.Contains(t, res.stdout, "E002")
		})
	}
}

func TestAddRunUnknownCondition(t *testing.T) {
	env := newTestEnv(t)
	env.seed()

	res := env.run("add", "run", "nope.dat", "run9.nml", "--information", "x")
	require.Error(t, res.err)
	assert.ErrorIs(t, res.err, record.ErrRecordNotFound)
	assert.Contains(t, res.stdout, "E005")
}
