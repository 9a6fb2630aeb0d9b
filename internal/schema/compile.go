package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed templates.cue
var defaultSource []byte

// Templates holds the template for each record level.
type Templates struct {
	Condition Object
	Run       Object
	Output    Object
}

// levelNames lists the accepted top-level names per level. The second name
// is the one used by JSON structure files of the form
// {"SimulationLog": {"format": {...}}, ...}.
var levelNames = [...]struct {
	names []string
	pick  func(*Templates) *Object
}{
	{[]string{"condition", "SimulationLog"}, func(t *Templates) *Object { return &t.Condition }},
	{[]string{"run", "InitCon"}, func(t *Templates) *Object { return &t.Run }},
	{[]string{"output", "SimRec"}, func(t *Templates) *Object { return &t.Output }},
}

// typeNames maps concrete type-name strings to kinds.
var typeNames = map[string]Kind{
	"str":      KindString,
	"string":   KindString,
	"int":      KindInt,
	"float":    KindFloat,
	"number":   KindNumber,
	"bool":     KindBool,
	"dict":     KindObject,
	"object":   KindObject,
	"list":     KindArray,
	"array":    KindArray,
	"NoneType": KindNull,
	"null":     KindNull,
	"any":      KindAny,
}

var defaultTemplates = sync.OnceValues(func() (*Templates, error) {
	return compile(defaultSource, "templates.cue", nil)
})

// Default returns the built-in templates.
func Default() *Templates {
	t, err := defaultTemplates()
	if err != nil {
		panic(fmt.Sprintf("schema: built-in templates: %v", err))
	}
	return t
}

// LoadFile compiles a template file. CUE and JSON sources are both accepted.
func LoadFile(path string) (*Templates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return Compile(data, path)
}

// Compile parses template source. Levels the source does not define fall
// back to the built-in templates.
func Compile(src []byte, filename string) (*Templates, error) {
	return compile(src, filename, Default())
}

func compile(src []byte, filename string, fallback *Templates) (*Templates, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Templates{}
	found := 0
	for _, level := range levelNames {
		dst := level.pick(t)
		lv, ok := lookupLevel(v, level.names)
		if !ok {
			if fallback == nil {
				return nil, &CompileError{
					Field:   level.names[0],
					Message: "template is required",
					Pos:     v.Pos(),
				}
			}
			*dst = *level.pick(fallback)
			continue
		}
		found++

		obj, err := compileObject(lv, level.names[0])
		if err != nil {
			return nil, err
		}
		*dst = obj
	}

	if found == 0 {
		return nil, &CompileError{
			Field:   "templates",
			Message: "no condition, run or output template found",
			Pos:     v.Pos(),
		}
	}
	return t, nil
}

func lookupLevel(root cue.Value, names []string) (cue.Value, bool) {
	for _, name := range names {
		lv := root.LookupPath(cue.MakePath(cue.Str(name)))
		if !lv.Exists() {
			continue
		}
		if format := lv.LookupPath(cue.MakePath(cue.Str("format"))); format.Exists() {
			return format, true
		}
		return lv, true
	}
	return cue.Value{}, false
}

func compileObject(v cue.Value, field string) (Object, error) {
	if v.IncompleteKind() != cue.StructKind {
		return Object{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected struct, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}

	iter, err := v.Fields()
	if err != nil {
		return Object{}, formatCUEError(err)
	}

	var obj Object
	for iter.Next() {
		name := iter.Label()
		n, err := compileNode(iter.Value(), field+"."+name)
		if err != nil {
			return Object{}, err
		}
		obj.Fields = append(obj.Fields, Field{Name: name, Node: n})
	}
	return obj, nil
}

func compileNode(v cue.Value, field string) (Node, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kind := v.IncompleteKind()
	if kind == cue.StructKind {
		obj, err := compileObject(v, field)
		if err != nil {
			return nil, err
		}
		if len(obj.Fields) == 0 {
			return Present{}, nil
		}
		return obj, nil
	}

	if v.IsConcrete() {
		if kind == cue.StringKind {
			name, err := v.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			k, ok := typeNames[name]
			if !ok {
				return nil, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("unknown type name %q", name),
					Pos:     v.Pos(),
				}
			}
			return Leaf{Kind: k}, nil
		}
		if kind != cue.ListKind {
			return Present{}, nil
		}
	}

	switch kind {
	case cue.StringKind:
		return Leaf{Kind: KindString}, nil
	case cue.IntKind:
		return Leaf{Kind: KindInt}, nil
	case cue.FloatKind:
		return Leaf{Kind: KindFloat}, nil
	case cue.NumberKind:
		return Leaf{Kind: KindNumber}, nil
	case cue.BoolKind:
		return Leaf{Kind: KindBool}, nil
	case cue.ListKind:
		return Leaf{Kind: KindArray}, nil
	case cue.NullKind:
		return Leaf{Kind: KindNull}, nil
	case cue.TopKind:
		return Leaf{Kind: KindAny}, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", kind),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a template compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
