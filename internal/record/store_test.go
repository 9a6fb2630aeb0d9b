package record

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/simlog/internal/value"
)

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.json"), testOptions()...)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestOpenCreateIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "Simlog.json")
	s, err := Open(path, append(testOptions(), WithCreateIfMissing())...)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Digest())

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "file is written on first save")

	require.NoError(t, s.Add(value.Object{"ic.dat": condition("x")}, AddOptions{}))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"a":`},
		{"array top level", `[1,2,3]`},
		{"trailing data", `{} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "Simlog.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Open(path, testOptions()...)
			var mde *MalformedDocumentError
			require.True(t, errors.As(err, &mde), "got %v", err)
			assert.Equal(t, path, mde.Path)
		})
	}
}

func TestCreateRefusesExisting(t *testing.T) {
	s := newTestStore(t)
	_, err := Create(s.Path(), testOptions()...)
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestCreateWritesEmptyObject(t *testing.T) {
	s := newTestStore(t)
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
	assert.NotEmpty(t, s.Digest())
}

func TestReplace(t *testing.T) {
	t.Run("existing", func(t *testing.T) {
		s := newTestStore(t)
		seed(t, s)

		fresh, replaced, err := Replace(s.Path(), testOptions()...)
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, 0, fresh.Len())

		data, err := os.ReadFile(s.Path())
		require.NoError(t, err)
		assert.Equal(t, "{}\n", string(data))
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "Simlog.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

		_, replaced, err := Replace(path, testOptions()...)
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, 0, reopenPath(t, path).Len())
	})

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "Simlog.json")

		s, replaced, err := Replace(path, testOptions()...)
		require.NoError(t, err)
		assert.False(t, replaced)
		require.NoError(t, s.Add(value.Object{"ic.dat": condition("fresh")}, AddOptions{}))
		assert.Equal(t, 1, reopen(t, s).Len())
	})
}

func reopenPath(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, testOptions()...)
	require.NoError(t, err)
	return s
}

func TestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	run, err := s.FindRun("run1.nml")
	require.NoError(t, err)
	_, err = run.Log("started", "submit", LogOptions{Fields: value.Object{"nodes": value.Int(4)}})
	require.NoError(t, err)

	require.NoError(t, s.Set([]string{"ic_a.dat", "core", "list"}, value.Array{value.Float(0.5), value.Null{}, value.Bool(true)}, SaveOptions{}))

	fresh := reopen(t, s)
	assert.Equal(t, s.Document(), fresh.Document())
	assert.Equal(t, s.Digest(), fresh.Digest())

	// Floats stay floats after the round trip.
	v, err := fresh.Get("ic_b.dat", "core", "ratio")
	require.NoError(t, err)
	assert.Equal(t, value.Float(1), v)
}

func TestSaveFormat(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"b.dat": condition("b"), "a.dat": condition("a")}, AddOptions{}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "}\n"))
	assert.Less(t, strings.Index(text, `"a.dat"`), strings.Index(text, `"b.dat"`))
	assert.Contains(t, text, "\n  \"a.dat\": {\n    \"action_log\": {},")

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp files are cleaned up")
	}
}

func TestGetAndLookup(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	require.NoError(t, s.Set([]string{"ic_a.dat", "meta", "note"}, value.Null{}, SaveOptions{SkipSave: true}))

	v, err := s.Get("ic_a.dat", "simulations", "run2.nml", "meta", "software")
	require.NoError(t, err)
	assert.Equal(t, value.String("GADGET"), v)

	v, ok := s.Lookup("ic_a.dat", "meta", "note")
	require.True(t, ok)
	assert.Equal(t, value.Null{}, v)

	_, err = s.Get("ic_a.dat", "simulations", "missing.nml", "meta")
	require.Error(t, err)
	var le *LookupError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), `"missing.nml"`)
}

func TestSetRequiresExistingParents(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	before := s.Document()

	err := s.Set([]string{"ic_a.dat", "nope", "x"}, value.Int(1), SaveOptions{})
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Equal(t, before, s.Document())
}

func TestSetTopLevelMustBeObject(t *testing.T) {
	s := newTestStore(t)
	err := s.Set([]string{"ic.dat"}, value.String("flat"), SaveOptions{})
	require.Error(t, err)
	assert.False(t, s.Has("ic.dat"))
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	require.NoError(t, s.Remove([]string{"ic_a.dat", "meta", "type"}, SaveOptions{}))
	_, ok := reopen(t, s).Lookup("ic_a.dat", "meta", "type")
	assert.False(t, ok)

	assert.ErrorIs(t, s.Remove([]string{"ic_a.dat", "meta", "type"}, SaveOptions{}), ErrPathNotFound)
}

func TestStaleDocumentDetected(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	other := reopen(t, s)
	require.NoError(t, other.Add(value.Object{"ic_c.dat": condition("from another process")}, AddOptions{}))

	err := s.Add(value.Object{"ic_d.dat": condition("stale writer")}, AddOptions{})
	require.ErrorIs(t, err, ErrStaleDocument)
	assert.False(t, s.Has("ic_d.dat"), "failed save rolls back memory")

	require.NoError(t, s.Reload())
	assert.True(t, s.Has("ic_c.dat"))
	require.NoError(t, s.Add(value.Object{"ic_d.dat": condition("after reload")}, AddOptions{}))
	assert.Equal(t, []string{"ic_a.dat", "ic_b.dat", "ic_c.dat", "ic_d.dat"}, reopen(t, s).Keys())
}

func TestStaleWhenFileRemoved(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.Remove(s.Path()))
	assert.ErrorIs(t, s.Save(), ErrStaleDocument)
}

func TestConflictCheckDisabled(t *testing.T) {
	s := newTestStore(t, WithConflictCheck(false))
	seed(t, s)

	other := reopen(t, s)
	require.NoError(t, other.Add(value.Object{"ic_c.dat": condition("lost")}, AddOptions{}))

	require.NoError(t, s.Add(value.Object{"ic_d.dat": condition("wins")}, AddOptions{}))
	fresh := reopen(t, s)
	assert.False(t, fresh.Has("ic_c.dat"))
	assert.True(t, fresh.Has("ic_d.dat"))
}

func TestSkipSaveKeepsDiskUnchanged(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(value.Object{"ic.dat": condition("memory only")}, AddOptions{SkipSave: true}))
	assert.True(t, s.Has("ic.dat"))
	assert.False(t, reopen(t, s).Has("ic.dat"))

	require.NoError(t, s.Save())
	assert.True(t, reopen(t, s).Has("ic.dat"))
}

func TestDocumentIsACopy(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	doc := s.Document()
	delete(doc, "ic_a.dat")
	assert.True(t, s.Has("ic_a.dat"))
}

func TestConditionsAndRuns(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	var names []string
	for _, c := range s.Conditions() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"ic_a.dat", "ic_b.dat"}, names)

	var runs []string
	for _, r := range s.Runs() {
		runs = append(runs, r.Parent().Name()+"/"+r.Name())
	}
	assert.Equal(t, []string{"ic_a.dat/run1.nml", "ic_a.dat/run2.nml", "ic_b.dat/run3.nml"}, runs)

	_, err := s.Condition("absent")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = s.FindRun("absent.nml")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
