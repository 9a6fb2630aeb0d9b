package record

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// DeleteOptions controls Delete on record handles.
type DeleteOptions struct {
	// Force deletes the record and every on-disk material without asking.
	Force bool

	// Confirm is asked before deleting when Force is not set.
	Confirm Confirmer

	// SkipSave leaves the change in memory only.
	SkipSave bool
}

// DeleteReport lists the on-disk materials a delete removed and those it
// could not remove.
type DeleteReport struct {
	Removed []string
	Failed  map[string]error
}

func (r *DeleteReport) fail(path string, err error) {
	if r.Failed == nil {
		r.Failed = make(map[string]error)
	}
	r.Failed[path] = err
}

// ErrUnsafePath is reported for material paths that must never be removed.
var ErrUnsafePath = errors.New("refusing to remove unsafe path")

// Delete removes the condition record.
//
// Without Force the confirmer is asked whether to delete the record and then
// whether to also delete on-disk materials: every run's output directories
// and files, and the initial-condition file named by the key. Declining the
// first question returns ErrDeletionDeclined; declining the second removes
// only the record. Materials are removed after the record's removal is
// saved; removal failures are reported, not returned.
func (c Condition) Delete(opts DeleteOptions) (DeleteReport, error) {
	var report DeleteReport
	if _, err := c.record(); err != nil {
		return report, err
	}

	materials, err := confirmDelete("condition", c.key, opts)
	if err != nil {
		return report, err
	}

	var paths []material
	if materials {
		for _, r := range c.Runs() {
			paths = append(paths, r.materials()...)
		}
		paths = append(paths, material{path: c.key})
	}

	err = c.store.mutate(opts.SkipSave, func() error {
		delete(c.store.doc, c.key)
		return nil
	})
	if err != nil {
		return report, err
	}
	c.store.removeMaterials(paths, &report)

	c.store.logger.Info("deleted condition", "condition", c.key, "materials", materials,
		"removed", len(report.Removed), "failed", len(report.Failed))
	return report, nil
}

// Delete removes the run record. Materials are the run's output directories
// and the run file named by its key. See Condition.Delete.
func (r Run) Delete(opts DeleteOptions) (DeleteReport, error) {
	var report DeleteReport
	if _, err := r.record(); err != nil {
		return report, err
	}

	materials, err := confirmDelete("run", r.key, opts)
	if err != nil {
		return report, err
	}

	var paths []material
	if materials {
		paths = r.materials()
	}

	err = r.store.mutate(opts.SkipSave, func() error {
		parent, err := r.Parent().record()
		if err != nil {
			return err
		}
		sims, _ := parent.Object("simulations")
		delete(sims, r.key)
		r.store.touch(parent)
		return nil
	})
	if err != nil {
		return report, err
	}
	r.store.removeMaterials(paths, &report)

	r.store.logger.Info("deleted run", "condition", r.condition, "run", r.key, "materials", materials,
		"removed", len(report.Removed), "failed", len(report.Failed))
	return report, nil
}

// confirmDelete reports whether materials should be removed.
func confirmDelete(kind, key string, opts DeleteOptions) (bool, error) {
	if opts.Force {
		return true, nil
	}
	if opts.Confirm == nil {
		return false, ErrConfirmationRequired
	}

	ok, err := opts.Confirm.Confirm(fmt.Sprintf("Confirm DELETE of %s %s? [y,N]", kind, key))
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	if !ok {
		return false, fmt.Errorf("%s %q: %w", kind, key, ErrDeletionDeclined)
	}

	materials, err := opts.Confirm.Confirm(fmt.Sprintf("DELETE all materials and sub-objects of %s? [y,N]", key))
	if err != nil {
		return false, fmt.Errorf("confirm delete: %w", err)
	}
	return materials, nil
}

// material is an on-disk path backing a record.
type material struct {
	path string
	dir  bool
}

// materials lists the run's output directories followed by the run file.
func (r Run) materials() []material {
	var ms []material
	for _, dir := range r.Outputs() {
		ms = append(ms, material{path: dir, dir: true})
	}
	return append(ms, material{path: r.key})
}

// removeMaterials must only run after the record's removal is saved.
func (s *Store) removeMaterials(ms []material, report *DeleteReport) {
	for _, m := range ms {
		if m.dir {
			s.removeDir(m.path, report)
		} else {
			s.removeFile(m.path, report)
		}
	}
}

func (s *Store) removeDir(dir string, report *DeleteReport) {
	if !safeToRemove(dir) {
		report.fail(dir, ErrUnsafePath)
		s.logger.Error("refusing to remove output directory", "path", dir)
		return
	}
	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("output directory already absent", "path", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		report.fail(dir, err)
		s.logger.Error("failed to remove output directory", "path", dir, "error", err)
		return
	}
	report.Removed = append(report.Removed, dir)
}

func (s *Store) removeFile(path string, report *DeleteReport) {
	if !safeToRemove(path) {
		report.fail(path, ErrUnsafePath)
		s.logger.Error("refusing to remove file", "path", path)
		return
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		report.Removed = append(report.Removed, path)
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Info("file corresponding to record does not exist", "path", path)
	default:
		report.fail(path, err)
		s.logger.Error("failed to remove file", "path", path, "error", err)
	}
}

func safeToRemove(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	switch clean {
	case ".", "..", string(filepath.Separator):
		return false
	}
	if home, err := os.UserHomeDir(); err == nil && clean == filepath.Clean(home) {
		return false
	}
	return true
}
