package value

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrPathNotFound means a path segment names no key or index.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotContainer means a path descends into a scalar.
	ErrNotContainer = errors.New("not an object or array")
)

// PathError reports the segment at which a nested lookup or update failed.
type PathError struct {
	Path    []string
	Segment int // index into Path of the failing segment
	Err     error
}

func (e *PathError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("empty path: %v", e.Err)
	}
	return fmt.Sprintf("%s: segment %q: %v", strings.Join(e.Path, "."), e.Path[e.Segment], e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Get walks path through nested objects and arrays. Array segments are
// decimal indices. A missing segment returns a *PathError wrapping
// ErrPathNotFound; a present null is returned as Null{}.
func Get(root Value, path ...string) (Value, error) {
	cur := root
	for i, seg := range path {
		next, err := child(cur, seg)
		if err != nil {
			return nil, &PathError{Path: path, Segment: i, Err: err}
		}
		cur = next
	}
	return cur, nil
}

// Lookup is Get without the error detail.
func Lookup(root Value, path ...string) (Value, bool) {
	v, err := Get(root, path...)
	return v, err == nil
}

// Set stores v at path. Every segment but the last must already exist.
// The final segment may add a new object key or replace an existing array
// element; arrays are never extended.
func Set(root Value, path []string, v Value) error {
	if len(path) == 0 {
		return &PathError{Path: path, Err: ErrPathNotFound}
	}
	parent, err := Get(root, path[:len(path)-1]...)
	if err != nil {
		return err
	}

	last := len(path) - 1
	switch p := parent.(type) {
	case Object:
		p[path[last]] = v
		return nil
	case Array:
		idx, err := index(p, path[last])
		if err != nil {
			return &PathError{Path: path, Segment: last, Err: err}
		}
		p[idx] = v
		return nil
	default:
		return &PathError{Path: path, Segment: last, Err: ErrNotContainer}
	}
}

// Delete removes the object key named by the final segment of path.
func Delete(root Value, path []string) error {
	if len(path) == 0 {
		return &PathError{Path: path, Err: ErrPathNotFound}
	}
	parent, err := Get(root, path[:len(path)-1]...)
	if err != nil {
		return err
	}

	last := len(path) - 1
	obj, ok := parent.(Object)
	if !ok {
		return &PathError{Path: path, Segment: last, Err: ErrNotContainer}
	}
	if _, exists := obj[path[last]]; !exists {
		return &PathError{Path: path, Segment: last, Err: ErrPathNotFound}
	}
	delete(obj, path[last])
	return nil
}

// SplitPath splits a dotted path ("meta.software") into segments.
func SplitPath(dotted string) []string {
	if dotted == "" {
		return nil
	}
	return strings.Split(dotted, ".")
}

func child(v Value, seg string) (Value, error) {
	switch c := v.(type) {
	case Object:
		next, ok := c[seg]
		if !ok {
			return nil, ErrPathNotFound
		}
		return next, nil
	case Array:
		idx, err := index(c, seg)
		if err != nil {
			return nil, err
		}
		return c[idx], nil
	default:
		return nil, ErrNotContainer
	}
}

func index(arr Array, seg string) (int, error) {
	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= len(arr) {
		return 0, ErrPathNotFound
	}
	return idx, nil
}
