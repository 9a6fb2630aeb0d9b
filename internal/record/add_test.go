package record

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simlog/internal/schema"
	"github.com/roach88/simlog/internal/value"
)

func TestAddFillsDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"ic.dat": condition("halo")}, AddOptions{}))

	got, err := s.Get("ic.dat")
	require.NoError(t, err)

	want := value.Object{
		"information": value.String("halo"),
		"meta": value.Object{
			"dateCreated": value.String("01-02-2024_10-00-00"),
			"lastEdited":  value.String("01-02-2024_10-00-00"),
		},
		"core":        value.Object{},
		"simulations": value.Object{},
		"action_log":  value.Object{},
	}
	assert.Equal(t, want, got)
}

func TestAddKeepsSuppliedDateCreated(t *testing.T) {
	s := newTestStore(t)
	entry := condition("old halo")
	entry["meta"] = value.Object{"dateCreated": value.String("12-31-1999_23-59-59"), "owner": value.String("eliza")}
	require.NoError(t, s.Add(value.Object{"ic.dat": entry}, AddOptions{}))

	meta := reopen(t, s).Conditions()[0].Meta()
	assert.Equal(t, value.String("12-31-1999_23-59-59"), meta["dateCreated"])
	assert.Equal(t, value.String("01-02-2024_10-00-00"), meta["lastEdited"])
	assert.Equal(t, value.String("eliza"), meta["owner"])

	// The caller's entry is not modified.
	_, filled := entry["core"]
	assert.False(t, filled)
}

func TestAddRejectsMissingInformation(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	before := s.Document()
	onDisk, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	err = s.Add(value.Object{
		"good.dat": condition("fine"),
		"bad.dat":  value.Object{"meta": value.Object{}},
	}, AddOptions{})

	require.Error(t, err)
	var sv *SchemaViolation
	require.True(t, errors.As(err, &sv))
	assert.Equal(t, "bad.dat", sv.Key)
	assert.Equal(t, "condition", sv.Level)
	require.Len(t, sv.Violations, 1)
	assert.Equal(t, []string{"information"}, sv.Violations[0].Path)
	assert.True(t, IsSchemaViolation(err))

	assert.Equal(t, before, s.Document(), "memory unchanged")
	after, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(after), "disk unchanged")
}

func TestAddReportsEveryViolation(t *testing.T) {
	s := newTestStore(t)
	err := s.Add(value.Object{"ic.dat": value.Object{
		"information": value.Int(7),
		"meta":        value.String("not an object"),
	}}, AddOptions{})

	var sv *SchemaViolation
	require.True(t, errors.As(err, &sv))
	assert.Len(t, sv.Violations, 2)
	assert.Contains(t, err.Error(), "information: expected string, got int")
	assert.Contains(t, err.Error(), "meta: expected object, got string")
}

func TestAddForceSkipsFillAndValidation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"raw.dat": value.Object{"anything": value.Int(1)}}, AddOptions{Force: true}))

	got, err := s.Get("raw.dat")
	require.NoError(t, err)
	assert.Equal(t, value.Object{"anything": value.Int(1)}, got)

	err = s.Add(value.Object{"flat.dat": value.String("x")}, AddOptions{Force: true})
	assert.Error(t, err)
	assert.False(t, s.Has("flat.dat"))
}

func TestAddLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"ic.dat": condition("first")}, AddOptions{}))
	require.NoError(t, s.Add(value.Object{"ic.dat": condition("second")}, AddOptions{}))

	c, err := reopen(t, s).Condition("ic.dat")
	require.NoError(t, err)
	assert.Equal(t, "second", c.Information())
}

func TestConditionAddRunDefaults(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"ic.dat": condition("halo")}, AddOptions{}))
	c, err := s.Condition("ic.dat")
	require.NoError(t, err)

	require.NoError(t, c.Add(value.Object{"run.nml": value.Object{"information": value.String("first run")}}, AddOptions{}))

	run, err := c.Run("run.nml")
	require.NoError(t, err)
	rec := run.Record()
	for _, h := range []string{"meta", "core", "outputs", "components", "action_log"} {
		assert.Contains(t, rec, h)
	}
	assert.Equal(t, value.String("NA"), run.Meta()["software"])
	assert.Equal(t, value.String("01-02-2024_10-00-01"), run.Meta()["dateCreated"])

	// Adding a run touches the condition.
	assert.Equal(t, value.String("01-02-2024_10-00-02"), c.Meta()["lastEdited"])
	assert.Equal(t, value.String("01-02-2024_10-00-00"), c.Meta()["dateCreated"])
}

func TestConditionAddRejectsInvalidRun(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	c, err := s.Condition("ic_a.dat")
	require.NoError(t, err)
	before := s.Document()

	err = c.Add(value.Object{"bad.nml": value.Object{"meta": value.Object{"software": value.Int(1)}}}, AddOptions{})
	var sv *SchemaViolation
	require.True(t, errors.As(err, &sv))
	assert.Equal(t, "run", sv.Level)
	assert.Len(t, sv.Violations, 2)
	assert.Equal(t, before, s.Document())
}

func TestRunAddOutputDefaults(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	run, err := s.FindRun("run1.nml")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, run.Add(value.Object{dir: value.Object{"information": value.String("snapshot 1")}}, AddOptions{}))

	out, err := reopen(t, s).Conditions()[0].Runs()[0].Output(dir)
	require.NoError(t, err)
	meta := out["meta"].(value.Object)
	assert.Equal(t, value.Bool(false), meta["isRun"])
	assert.Equal(t, value.String("None"), meta["slurm_path"])
	assert.Contains(t, meta, "dateCreated")
	assert.NotContains(t, meta, "lastEdited")
	assert.Equal(t, value.Object{}, out["action_log"])

	assert.Equal(t, []string{dir}, run.Outputs())
	_, err = run.Output("missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestAddWithCustomTemplates(t *testing.T) {
	tmpl, err := schema.Compile([]byte(`condition: {information: string, core: {redshift: number}}`), "custom.cue")
	require.NoError(t, err)

	s := newTestStore(t, WithTemplates(tmpl))
	err = s.Add(value.Object{"ic.dat": condition("no redshift")}, AddOptions{})
	assert.True(t, IsSchemaViolation(err))

	entry := condition("with redshift")
	entry["core"] = value.Object{"redshift": value.Int(3)}
	assert.NoError(t, s.Add(value.Object{"ic.dat": entry}, AddOptions{}))
}

func TestAddOnRemovedCondition(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	c, err := s.Condition("ic_b.dat")
	require.NoError(t, err)
	require.NoError(t, s.Remove([]string{"ic_b.dat"}, SaveOptions{}))

	err = c.Add(value.Object{"run.nml": value.Object{"information": value.String("x")}}, AddOptions{})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
