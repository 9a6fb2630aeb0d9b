package record

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/simlog/internal/testutil"
	"github.com/roach88/simlog/internal/value"
)

func testOptions() []Option {
	return []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("")),
	}
}

// newTestStore creates an empty simulation log in a temp directory.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Simlog.json")
	s, err := Create(path, append(testOptions(), opts...)...)
	require.NoError(t, err)
	return s
}

func condition(info string) value.Object {
	return value.Object{"information": value.String(info)}
}

func reopen(t *testing.T, s *Store) *Store {
	t.Helper()
	fresh, err := Open(s.Path(), testOptions()...)
	require.NoError(t, err)
	return fresh
}

// seed adds two conditions with two and one runs.
func seed(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Add(value.Object{
		"ic_a.dat": value.Object{
			"information": value.String("cluster merger"),
			"meta":        value.Object{"type": value.String("merger")},
			"core":        value.Object{"mass": value.Float(1e14), "ratio": value.Int(2)},
		},
		"ic_b.dat": value.Object{
			"information": value.String("isolated halo"),
			"meta":        value.Object{"type": value.String("isolated")},
			"core":        value.Object{"mass": value.Float(5e13), "ratio": value.Float(1)},
		},
	}, AddOptions{}))

	a, err := s.Condition("ic_a.dat")
	require.NoError(t, err)
	require.NoError(t, a.Add(value.Object{
		"run1.nml": value.Object{"information": value.String("ramses low res"), "meta": value.Object{"software": value.String("RAMSES")}},
		"run2.nml": value.Object{"information": value.String("gadget"), "meta": value.Object{"software": value.String("GADGET")}},
	}, AddOptions{}))

	b, err := s.Condition("ic_b.dat")
	require.NoError(t, err)
	require.NoError(t, b.Add(value.Object{
		"run3.nml": value.Object{"information": value.String("ramses high res"), "meta": value.Object{"software": value.String("RAMSES")}},
	}, AddOptions{}))
}
