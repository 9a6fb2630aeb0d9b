package record

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/simlog/internal/value"
)

// Level is the granularity of a search.
type Level string

const (
	LevelCondition Level = "ic"
	LevelRun       Level = "sim"
)

// ParseLevel accepts "ic" or "sim". The empty string means "sim".
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "", LevelRun:
		return LevelRun, nil
	case LevelCondition:
		return LevelCondition, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidLevel, s, LevelCondition, LevelRun)
	}
}

// Query selects records by field values.
//
// Each Where key names a field: a dotted key is a path into the record
// ("meta.software"); a bare key is looked up on the record, then in its
// meta, then in its core. An Array value matches if the field equals any
// element; any other value matches by equality. All predicates must match.
type Query struct {
	Where     map[string]value.Value
	SearchFor Level
	ReturnBy  Level
}

// Hit is one search result. Run is empty for condition-level results.
type Hit struct {
	Condition string
	Run       string
}

func (h Hit) String() string {
	if h.Run == "" {
		return h.Condition
	}
	return h.Condition + " :: " + h.Run
}

// Search returns the records matching q in key order.
//
// Searching conditions and returning runs yields every run of each matched
// condition. Searching runs and returning conditions yields each matched
// run's parent once.
func (s *Store) Search(q Query) ([]Hit, error) {
	searchFor, err := ParseLevel(string(q.SearchFor))
	if err != nil {
		return nil, err
	}
	returnBy, err := ParseLevel(string(q.ReturnBy))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(q.Where))
	for k := range q.Where {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	matches := func(rec value.Object) bool {
		for _, k := range keys {
			if !matchField(rec, k, q.Where[k]) {
				return false
			}
		}
		return true
	}

	var hits []Hit
	switch searchFor {
	case LevelCondition:
		for _, c := range s.Conditions() {
			rec, _ := c.record()
			if !matches(rec) {
				continue
			}
			if returnBy == LevelCondition {
				hits = append(hits, Hit{Condition: c.key})
				continue
			}
			for _, r := range c.Runs() {
				hits = append(hits, Hit{Condition: c.key, Run: r.key})
			}
		}
	default:
		seen := make(map[string]bool)
		for _, r := range s.Runs() {
			rec, _ := r.record()
			if !matches(rec) {
				continue
			}
			if returnBy == LevelRun {
				hits = append(hits, Hit{Condition: r.condition, Run: r.key})
				continue
			}
			if !seen[r.condition] {
				seen[r.condition] = true
				hits = append(hits, Hit{Condition: r.condition})
			}
		}
	}

	s.logger.Debug("search", "where", len(q.Where), "for", searchFor, "return", returnBy, "hits", len(hits))
	return hits, nil
}

func matchField(rec value.Object, key string, want value.Value) bool {
	got, ok := resolveField(rec, key)
	if !ok {
		return false
	}
	if options, isArray := want.(value.Array); isArray {
		for _, opt := range options {
			if value.Equal(got, opt) {
				return true
			}
		}
		return false
	}
	return value.Equal(got, want)
}

func resolveField(rec value.Object, key string) (value.Value, bool) {
	if strings.Contains(key, ".") {
		return value.Lookup(rec, value.SplitPath(key)...)
	}
	if v, ok := rec[key]; ok {
		return v, true
	}
	for _, section := range []string{"meta", "core"} {
		if obj, ok := rec.Object(section); ok {
			if v, ok := obj[key]; ok {
				return v, true
			}
		}
	}
	return nil, false
}
