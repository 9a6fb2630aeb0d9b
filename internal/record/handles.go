package record

import (
	"fmt"

	"github.com/roach88/simlog/internal/value"
)

// Condition is a handle on one condition record. Its accessors read the
// store's current document; a handle whose record was removed reports
// zero values and ErrRecordNotFound from mutators.
type Condition struct {
	store *Store
	key   string
}

// Name returns the condition key.
func (c Condition) Name() string { return c.key }

// Store returns the owning store.
func (c Condition) Store() *Store { return c.store }

func (c Condition) record() (value.Object, error) {
	if c.store == nil {
		return nil, fmt.Errorf("condition %q: %w", c.key, ErrRecordNotFound)
	}
	rec, ok := c.store.doc.Object(c.key)
	if !ok {
		return nil, fmt.Errorf("condition %q: %w", c.key, ErrRecordNotFound)
	}
	return rec, nil
}

// Record returns a deep copy of the whole condition record.
func (c Condition) Record() value.Object {
	rec, _ := c.record()
	return rec.Clone()
}

// Information returns the free-text description.
func (c Condition) Information() string {
	rec, _ := c.record()
	return rec.String("information")
}

// Meta returns a copy of the meta object.
func (c Condition) Meta() value.Object { return c.child("meta") }

// Core returns a copy of the core object.
func (c Condition) Core() value.Object { return c.child("core") }

func (c Condition) child(key string) value.Object {
	rec, _ := c.record()
	obj, _ := rec.Object(key)
	return obj.Clone()
}

// Runs returns handles for every run in key order.
func (c Condition) Runs() []Run {
	rec, err := c.record()
	if err != nil {
		return nil
	}
	sims, _ := rec.Object("simulations")
	var out []Run
	for _, key := range sims.SortedKeys() {
		if _, ok := sims.Object(key); ok {
			out = append(out, Run{store: c.store, condition: c.key, key: key})
		}
	}
	return out
}

// Run returns a handle for the run key.
func (c Condition) Run(key string) (Run, error) {
	r := Run{store: c.store, condition: c.key, key: key}
	if _, err := r.record(); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ActionLog returns the condition's log entries in time order.
func (c Condition) ActionLog() []LogEntry {
	rec, _ := c.record()
	return entriesOf(rec)
}

// Add inserts run records into the condition's simulations and touches
// its lastEdited timestamp.
func (c Condition) Add(entries value.Object, opts AddOptions) error {
	return c.store.mutate(opts.SkipSave, func() error {
		rec, err := c.record()
		if err != nil {
			return err
		}
		sims, ok := rec.Object("simulations")
		if !ok {
			sims = value.Object{}
			rec["simulations"] = sims
		}
		if err := c.store.addEntries(levelRun, sims, []string{c.key}, entries, opts); err != nil {
			return err
		}
		c.store.touch(rec)
		return nil
	})
}

// Run is a handle on one run record.
type Run struct {
	store     *Store
	condition string
	key       string
}

// Name returns the run key.
func (r Run) Name() string { return r.key }

// Parent returns the owning condition.
func (r Run) Parent() Condition { return Condition{store: r.store, key: r.condition} }

func (r Run) record() (value.Object, error) {
	parent, err := r.Parent().record()
	if err != nil {
		return nil, err
	}
	sims, _ := parent.Object("simulations")
	rec, ok := sims.Object(r.key)
	if !ok {
		return nil, fmt.Errorf("run %q of condition %q: %w", r.key, r.condition, ErrRecordNotFound)
	}
	return rec, nil
}

// Record returns a deep copy of the whole run record.
func (r Run) Record() value.Object {
	rec, _ := r.record()
	return rec.Clone()
}

// Information returns the free-text description.
func (r Run) Information() string {
	rec, _ := r.record()
	return rec.String("information")
}

// Meta returns a copy of the meta object.
func (r Run) Meta() value.Object { return r.child("meta") }

// Core returns a copy of the core object.
func (r Run) Core() value.Object { return r.child("core") }

// Components returns a copy of the components object.
func (r Run) Components() value.Object { return r.child("components") }

func (r Run) child(key string) value.Object {
	rec, _ := r.record()
	obj, _ := rec.Object(key)
	return obj.Clone()
}

// Outputs returns the output directory keys in sorted order.
func (r Run) Outputs() []string {
	rec, _ := r.record()
	outputs, _ := rec.Object("outputs")
	return outputs.SortedKeys()
}

// Output returns a copy of the output record for dir.
func (r Run) Output(dir string) (value.Object, error) {
	out, err := r.output(dir)
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (r Run) output(dir string) (value.Object, error) {
	rec, err := r.record()
	if err != nil {
		return nil, err
	}
	outputs, _ := rec.Object("outputs")
	out, ok := outputs.Object(dir)
	if !ok {
		return nil, fmt.Errorf("output %q of run %q: %w", dir, r.key, ErrRecordNotFound)
	}
	return out, nil
}

// ActionLog returns the run's log entries in time order.
func (r Run) ActionLog() []LogEntry {
	rec, _ := r.record()
	return entriesOf(rec)
}

// Add inserts output records into the run's outputs and touches its
// lastEdited timestamp.
func (r Run) Add(entries value.Object, opts AddOptions) error {
	return r.store.mutate(opts.SkipSave, func() error {
		rec, err := r.record()
		if err != nil {
			return err
		}
		outputs, ok := rec.Object("outputs")
		if !ok {
			outputs = value.Object{}
			rec["outputs"] = outputs
		}
		if err := r.store.addEntries(levelOutput, outputs, []string{r.condition, r.key}, entries, opts); err != nil {
			return err
		}
		r.store.touch(rec)
		return nil
	})
}
