package record

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/fslock"

	"github.com/roach88/simlog/internal/schema"
	"github.com/roach88/simlog/internal/value"
)

// DefaultLockTimeout bounds how long Save waits for the lock file.
const DefaultLockTimeout = 5 * time.Second

// Store owns one simulation log document.
type Store struct {
	path   string
	doc    value.Object
	digest string // canonical digest of the on-disk document at last load/save
	exists bool   // whether the file existed at last load/save

	templates       *schema.Templates
	clock           Clock
	ids             IDGenerator
	logger          *slog.Logger
	conflictCheck   bool
	lockTimeout     time.Duration
	createIfMissing bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for timestamps and log keys.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator sets the generator for action log entry IDs.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithTemplates sets the templates entries are validated against.
func WithTemplates(t *schema.Templates) Option {
	return func(s *Store) {
		if t != nil {
			s.templates = t
		}
	}
}

// WithCreateIfMissing makes Open start from an empty document when the file
// does not exist. The file is written on the first save.
func WithCreateIfMissing() Option {
	return func(s *Store) {
		s.createIfMissing = true
	}
}

// WithConflictCheck enables or disables the on-disk digest check in Save.
// Enabled by default.
func WithConflictCheck(enabled bool) Option {
	return func(s *Store) {
		s.conflictCheck = enabled
	}
}

// WithLockTimeout sets how long Save waits for the lock file.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func newStore(path string, opts []Option) *Store {
	s := &Store{
		path:          path,
		doc:           value.Object{},
		templates:     schema.Default(),
		clock:         systemClock{},
		ids:           UUIDv7Generator{},
		logger:        slog.Default(),
		conflictCheck: true,
		lockTimeout:   DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the simulation log at path.
//
// A missing file returns ErrNotFound unless WithCreateIfMissing is given.
// A file that is not a JSON object returns *MalformedDocumentError.
func Open(path string, opts ...Option) (*Store, error) {
	s := newStore(path, opts)
	if err := s.load(); err != nil {
		return nil, err
	}
	s.logger.Debug("opened simulation log", "path", path, "conditions", len(s.doc))
	return s, nil
}

// Create writes a new empty simulation log at path. It fails if the file exists.
func Create(path string, opts ...Option) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create simulation log %s: %w", path, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("create simulation log %s: %w", path, err)
	}

	s := newStore(path, opts)
	if err := s.Save(); err != nil {
		return nil, err
	}
	s.logger.Info("created simulation log", "path", path)
	return s, nil
}

// Replace writes a new empty simulation log at path, atomically replacing
// any existing file. It reports whether a file was replaced. The old
// document is left intact when the write fails.
func Replace(path string, opts ...Option) (*Store, bool, error) {
	_, err := os.Stat(path)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("replace simulation log %s: %w", path, err)
	}

	s := newStore(path, opts)
	check := s.conflictCheck
	s.conflictCheck = false
	err = s.Save()
	s.conflictCheck = check
	if err != nil {
		return nil, false, err
	}
	if existed {
		s.logger.Warn("replaced simulation log", "path", path)
	} else {
		s.logger.Info("created simulation log", "path", path)
	}
	return s, existed, nil
}

func (s *Store) load() error {
	doc, exists, err := readDocument(s.path)
	if err != nil {
		return err
	}
	if !exists {
		if !s.createIfMissing {
			return fmt.Errorf("open %s: %w", s.path, ErrNotFound)
		}
		doc = value.Object{}
	}

	digest, err := value.Digest(doc)
	if err != nil {
		return &MalformedDocumentError{Path: s.path, Err: err}
	}

	s.doc = doc
	s.exists = exists
	s.digest = ""
	if exists {
		s.digest = digest
	}
	return nil
}

// readDocument returns the parsed document and whether the file exists.
func readDocument(path string) (value.Object, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read simulation log: %w", err)
	}

	doc, err := value.ParseObject(data)
	if err != nil {
		return nil, true, &MalformedDocumentError{Path: path, Err: err}
	}
	return doc, true, nil
}

// Reload discards in-memory changes and rereads the file.
func (s *Store) Reload() error {
	return s.load()
}

// Save writes the whole document atomically: a temp file in the same
// directory is written, synced and renamed over the target while holding
// the lock file. With conflict checking enabled, Save returns
// ErrStaleDocument if the file changed since the last load or save.
func (s *Store) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	lock := fslock.New(filepath.Join(dir, "."+filepath.Base(s.path)+".lock"))
	if err := lock.LockWithTimeout(s.lockTimeout); err != nil {
		return fmt.Errorf("lock simulation log %s: %w", s.path, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", "path", s.path, "error", err)
		}
	}()

	if s.conflictCheck {
		if err := s.checkConflict(); err != nil {
			return err
		}
	}

	data, err := value.MarshalIndent(s.doc, "  ")
	if err != nil {
		return fmt.Errorf("encode simulation log: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	digest, err := value.Digest(s.doc)
	if err != nil {
		return fmt.Errorf("digest simulation log: %w", err)
	}
	s.digest = digest
	s.exists = true

	s.logger.Debug("saved simulation log", "path", s.path, "conditions", len(s.doc), "bytes", len(data))
	return nil
}

func (s *Store) checkConflict() error {
	current, exists, err := readDocument(s.path)
	if err != nil {
		var mde *MalformedDocumentError
		if errors.As(err, &mde) {
			return fmt.Errorf("%w: %v", ErrStaleDocument, err)
		}
		return err
	}

	switch {
	case !exists && !s.exists:
		return nil
	case exists != s.exists:
		return fmt.Errorf("%w: %s", ErrStaleDocument, s.path)
	}

	digest, err := value.Digest(current)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStaleDocument, err)
	}
	if digest != s.digest {
		return fmt.Errorf("%w: %s", ErrStaleDocument, s.path)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace simulation log: %w", err)
	}
	return nil
}

// mutate runs fn against the document and saves unless skipSave is set.
// If fn or the save fails the document is restored to its prior state.
func (s *Store) mutate(skipSave bool, fn func() error) error {
	snapshot := s.doc.Clone()
	if err := fn(); err != nil {
		s.doc = snapshot
		return err
	}
	if skipSave {
		return nil
	}
	if err := s.Save(); err != nil {
		s.doc = snapshot
		return err
	}
	return nil
}

func (s *Store) now() string {
	return s.clock.Now().Format(TimestampLayout)
}

// Path returns the file path of the document.
func (s *Store) Path() string { return s.path }

// Digest returns the canonical digest of the document as of the last load
// or save. It is empty for a document not yet written.
func (s *Store) Digest() string { return s.digest }

// Len returns the number of condition records.
func (s *Store) Len() int { return len(s.doc) }

// Keys returns the condition keys in sorted order.
func (s *Store) Keys() []string { return s.doc.SortedKeys() }

// Has reports whether a condition key exists.
func (s *Store) Has(key string) bool {
	_, ok := s.doc[key]
	return ok
}

// Document returns a deep copy of the document.
func (s *Store) Document() value.Object { return s.doc.Clone() }

// Templates returns the templates entries are validated against.
func (s *Store) Templates() *schema.Templates { return s.templates }

// Get resolves path through the document. A miss returns *LookupError
// wrapping ErrPathNotFound; a present null is value.Null{}.
func (s *Store) Get(path ...string) (value.Value, error) {
	v, err := value.Get(s.doc, path...)
	if err != nil {
		return nil, &LookupError{Path: path, Err: err}
	}
	return v, nil
}

// Lookup is Get without the error detail.
func (s *Store) Lookup(path ...string) (value.Value, bool) {
	return value.Lookup(s.doc, path...)
}

// SaveOptions controls persistence of a single mutation.
type SaveOptions struct {
	SkipSave bool
}

// Set stores v at path. Every segment but the last must already exist.
func (s *Store) Set(path []string, v value.Value, opts SaveOptions) error {
	return s.mutate(opts.SkipSave, func() error {
		if len(path) == 1 {
			if _, ok := v.(value.Object); !ok {
				return fmt.Errorf("condition %q: top-level values must be objects, got %s", path[0], value.KindOf(v))
			}
		}
		if err := value.Set(s.doc, path, value.Clone(v)); err != nil {
			return &LookupError{Path: path, Err: err}
		}
		s.logger.Debug("set value", "path", path)
		return nil
	})
}

// Remove deletes the key at the end of path. It removes no files.
func (s *Store) Remove(path []string, opts SaveOptions) error {
	return s.mutate(opts.SkipSave, func() error {
		if err := value.Delete(s.doc, path); err != nil {
			return &LookupError{Path: path, Err: err}
		}
		s.logger.Debug("removed value", "path", path)
		return nil
	})
}

// Add inserts condition records. See AddOptions.
func (s *Store) Add(entries value.Object, opts AddOptions) error {
	return s.mutate(opts.SkipSave, func() error {
		return s.addEntries(levelCondition, s.doc, nil, entries, opts)
	})
}

// Condition returns a handle for the condition record key.
func (s *Store) Condition(key string) (Condition, error) {
	if _, ok := s.doc.Object(key); !ok {
		return Condition{}, fmt.Errorf("condition %q: %w", key, ErrRecordNotFound)
	}
	return Condition{store: s, key: key}, nil
}

// Conditions returns handles for every condition record in key order.
func (s *Store) Conditions() []Condition {
	var out []Condition
	for _, key := range s.doc.SortedKeys() {
		if _, ok := s.doc.Object(key); ok {
			out = append(out, Condition{store: s, key: key})
		}
	}
	return out
}

// Runs returns every run of every condition, ordered by condition key then
// run key.
func (s *Store) Runs() []Run {
	var out []Run
	for _, c := range s.Conditions() {
		out = append(out, c.Runs()...)
	}
	return out
}

// FindRun returns the first run named key, searching conditions in key order.
func (s *Store) FindRun(key string) (Run, error) {
	for _, c := range s.Conditions() {
		if r, err := c.Run(key); err == nil {
			return r, nil
		}
	}
	return Run{}, fmt.Errorf("run %q: %w", key, ErrRecordNotFound)
}
