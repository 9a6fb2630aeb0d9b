package record

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/simlog/internal/value"
)

// LogOptions controls Log on record handles.
type LogOptions struct {
	// Output also records the entry in that output's action_log (runs only).
	Output string

	// Fields are merged over the standard entry fields.
	Fields value.Object

	// SkipSave leaves the change in memory only.
	SkipSave bool
}

// LogEntry is one action log entry.
type LogEntry struct {
	Key    string
	Fields value.Object
}

// Message returns the entry's msg field.
func (e LogEntry) Message() string { return e.Fields.String("msg") }

// Action returns the entry's act field.
func (e LogEntry) Action() string { return e.Fields.String("act") }

// Log appends an action log entry to the condition and returns its key.
func (c Condition) Log(message, action string, opts LogOptions) (string, error) {
	file, line := callerLocation(2)

	var key string
	err := c.store.mutate(opts.SkipSave, func() error {
		rec, err := c.record()
		if err != nil {
			return err
		}
		now := c.store.now()
		entry := newEntry(message, action, file, line, "Self", now, c.store.ids.Generate(), opts.Fields)
		key, err = appendEntry(rec, now, entry)
		return err
	})
	if err != nil {
		return "", err
	}
	c.store.logger.Debug("logged action", "condition", c.key, "action", action, "key", key)
	return key, nil
}

// Log appends an action log entry to the run and returns its key.
//
// A copy tagged with the run key (object) and level "run" is appended to
// the parent condition's log. When opts.Output is set the entry's object is
// that output and a copy is appended to the output's own log.
func (r Run) Log(message, action string, opts LogOptions) (string, error) {
	file, line := callerLocation(2)

	var key string
	err := r.store.mutate(opts.SkipSave, func() error {
		rec, err := r.record()
		if err != nil {
			return err
		}
		parent, err := r.Parent().record()
		if err != nil {
			return err
		}

		object := "Self"
		var output value.Object
		if opts.Output != "" {
			output, err = r.output(opts.Output)
			if err != nil {
				return err
			}
			object = opts.Output
		}

		now := r.store.now()
		entry := newEntry(message, action, file, line, object, now, r.store.ids.Generate(), opts.Fields)
		if key, err = appendEntry(rec, now, entry); err != nil {
			return err
		}

		if output != nil {
			if _, err := appendEntry(output, now, entry.Clone()); err != nil {
				return fmt.Errorf("output %s: %w", opts.Output, err)
			}
		}

		mirror := entry.Clone()
		mirror["object"] = value.String(r.key)
		mirror["level"] = value.String("run")
		if _, err := appendEntry(parent, now, mirror); err != nil {
			return fmt.Errorf("condition %s: %w", r.condition, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	r.store.logger.Debug("logged action", "condition", r.condition, "run", r.key, "action", action, "key", key)
	return key, nil
}

func newEntry(message, action, file string, line int, object, now, id string, fields value.Object) value.Object {
	entry := value.Object{
		"msg":    value.String(message),
		"act":    value.String(action),
		"file":   value.String(file),
		"lineno": value.Int(line),
		"time":   value.String(now),
		"id":     value.String(id),
		"object": value.String(object),
	}
	for k, v := range fields {
		entry[k] = value.Clone(v)
	}
	return entry
}

// appendEntry adds entry to rec's action_log under the timestamp key,
// suffixing ".1", ".2", ... so an existing entry is never replaced.
// An action_log that is not an object is left alone and reported.
func appendEntry(rec value.Object, now string, entry value.Object) (string, error) {
	var log value.Object
	switch v := rec["action_log"].(type) {
	case nil:
		log = value.Object{}
		rec["action_log"] = log
	case value.Object:
		log = v
	default:
		return "", fmt.Errorf("%w: action_log is %s, want object", ErrInvalidActionLog, value.KindOf(v))
	}

	key := now
	for n := 1; ; n++ {
		if _, taken := log[key]; !taken {
			break
		}
		key = now + "." + strconv.Itoa(n)
	}
	log[key] = entry
	return key, nil
}

func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", 0
	}
	return filepath.Base(file), line
}

// entriesOf returns rec's action log entries ordered by timestamp, then by
// collision suffix. Keys that are not timestamps sort last by name.
func entriesOf(rec value.Object) []LogEntry {
	log, _ := rec.Object("action_log")
	entries := make([]LogEntry, 0, len(log))
	for key, v := range log {
		fields, _ := v.(value.Object)
		entries = append(entries, LogEntry{Key: key, Fields: fields.Clone()})
	}
	slices.SortFunc(entries, func(a, b LogEntry) int {
		return compareLogKeys(a.Key, b.Key)
	})
	return entries
}

// SortLogKeys orders action log keys the way ActionLog returns entries.
func SortLogKeys(keys []string) {
	slices.SortFunc(keys, compareLogKeys)
}

func compareLogKeys(a, b string) int {
	ta, na, okA := parseLogKey(a)
	tb, nb, okB := parseLogKey(b)
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	case !okA && !okB:
		return strings.Compare(a, b)
	}
	if c := ta.Compare(tb); c != 0 {
		return c
	}
	if na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func parseLogKey(key string) (time.Time, int, bool) {
	base, n := splitLogKey(key)
	t, err := time.Parse(TimestampLayout, base)
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, n, true
}

// splitLogKey splits "01-02-2024_10-00-00.2" into the timestamp and 2.
func splitLogKey(key string) (string, int) {
	base, suffix, found := strings.Cut(key, ".")
	if !found {
		return key, 0
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return key, 0
	}
	return base, n
}
