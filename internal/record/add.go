package record

import (
	"fmt"

	"github.com/roach88/simlog/internal/schema"
	"github.com/roach88/simlog/internal/value"
)

// AddOptions controls Add on the store and on record handles.
type AddOptions struct {
	// Force skips header filling and template validation.
	Force bool

	// SkipSave leaves the change in memory only.
	SkipSave bool
}

type level int

const (
	levelCondition level = iota
	levelRun
	levelOutput
)

func (l level) String() string {
	switch l {
	case levelCondition:
		return "condition"
	case levelRun:
		return "run"
	default:
		return "output"
	}
}

// headers lists the containers added to a new entry when missing.
var headers = map[level][]string{
	levelCondition: {"meta", "simulations", "core", "action_log"},
	levelRun:       {"meta", "action_log", "core", "outputs", "components"},
	levelOutput:    {"meta", "action_log"},
}

// metaDefaults lists meta fields set when missing, besides timestamps.
var metaDefaults = map[level]value.Object{
	levelRun:    {"software": value.String("NA")},
	levelOutput: {"isRun": value.Bool(false), "slurm_path": value.String("None")},
}

func (s *Store) template(l level) schema.Object {
	switch l {
	case levelCondition:
		return s.templates.Condition
	case levelRun:
		return s.templates.Run
	default:
		return s.templates.Output
	}
}

// fill returns a copy of entry with missing containers and meta defaults
// added. Supplied values are never overwritten; information is not defaulted.
func fill(l level, entry value.Value, now string) value.Value {
	obj, ok := entry.(value.Object)
	if !ok {
		return value.Clone(entry)
	}
	out := obj.Clone()

	for _, h := range headers[l] {
		if _, present := out[h]; !present {
			out[h] = value.Object{}
		}
	}

	meta, ok := out["meta"].(value.Object)
	if !ok {
		return out
	}
	if _, present := meta["dateCreated"]; !present {
		meta["dateCreated"] = value.String(now)
	}
	if l != levelOutput {
		if _, present := meta["lastEdited"]; !present {
			meta["lastEdited"] = value.String(now)
		}
	}
	for k, v := range metaDefaults[l] {
		if _, present := meta[k]; !present {
			meta[k] = v
		}
	}
	return out
}

// addEntries validates every entry before merging any of them into
// container, so a rejected call changes nothing.
func (s *Store) addEntries(l level, container value.Object, owner []string, entries value.Object, opts AddOptions) error {
	keys := entries.SortedKeys()
	prepared := make(value.Object, len(entries))

	if opts.Force {
		s.logger.Warn("force specified, skipping header fill and validation",
			"level", l.String(), "owner", owner, "entries", keys)
		for _, key := range keys {
			if _, ok := entries[key].(value.Object); !ok && l == levelCondition {
				return fmt.Errorf("condition %q: top-level values must be objects, got %s", key, value.KindOf(entries[key]))
			}
			prepared[key] = value.Clone(entries[key])
		}
	} else {
		now := s.now()
		tmpl := s.template(l)
		for _, key := range keys {
			entry := fill(l, entries[key], now)
			if violations := schema.Conform(tmpl, entry); len(violations) > 0 {
				s.logger.Debug("entry rejected", "level", l.String(), "key", key, "violations", len(violations))
				return &SchemaViolation{Level: l.String(), Key: key, Violations: violations}
			}
			prepared[key] = entry
		}
	}

	for _, key := range keys {
		if _, exists := container[key]; exists {
			s.logger.Warn("overwriting existing record", "level", l.String(), "owner", owner, "key", key)
		}
		container[key] = prepared[key]
		s.logger.Info("added record", "level", l.String(), "owner", owner, "key", key)
	}
	return nil
}

// touch sets meta.lastEdited on rec when it has a meta object.
func (s *Store) touch(rec value.Object) {
	if meta, ok := rec["meta"].(value.Object); ok {
		meta["lastEdited"] = value.String(s.now())
	}
}
