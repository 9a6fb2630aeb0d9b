// Package schema checks record entries against structural templates.
//
// A template is a tree of named fields. Each field either requires only that
// its key exist (Present), requires a value of some kind (Leaf), or recurses
// into a nested object (Object). Conform reports every mismatch it finds.
package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/simlog/internal/value"
)

// Kind is the value kind a Leaf requires.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindNumber Kind = "number" // int or float
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
	KindNull   Kind = "null"
	KindAny    Kind = "any"
)

// Matches reports whether v has kind k.
func (k Kind) Matches(v value.Value) bool {
	switch k {
	case KindAny:
		return v != nil
	case KindNumber:
		switch v.(type) {
		case value.Int, value.Float:
			return true
		}
		return false
	default:
		return value.KindOf(v) == string(k)
	}
}

// Node is one template position: Present, Leaf or Object.
type Node interface {
	node()
}

// Present requires the key to exist and checks nothing else.
type Present struct{}

func (Present) node() {}

// Leaf requires the value at the key to have Kind.
type Leaf struct {
	Kind Kind
}

func (Leaf) node() {}

// Object requires an object holding every listed field.
type Object struct {
	Fields []Field
}

func (Object) node() {}

// Field is a named template position.
type Field struct {
	Name string
	Node Node
}

// Field returns the named field's node.
func (o Object) Field(name string) (Node, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Node, true
		}
	}
	return nil, false
}

// Violation describes one mismatch between a candidate and a template.
type Violation struct {
	Path     []string
	Expected string
	Got      string
}

func (v Violation) Error() string {
	where := strings.Join(v.Path, ".")
	if where == "" {
		where = "(root)"
	}
	if v.Got == "missing" {
		return fmt.Sprintf("%s: required key missing", where)
	}
	return fmt.Sprintf("%s: expected %s, got %s", where, v.Expected, v.Got)
}

// Conform checks candidate against tmpl and returns every violation found.
// Keys present in the candidate but absent from the template are allowed.
func Conform(tmpl Object, candidate value.Value) []Violation {
	return conformObject(tmpl, candidate, nil)
}

// Conforms reports whether candidate matches tmpl.
func Conforms(tmpl Object, candidate value.Value) bool {
	return len(Conform(tmpl, candidate)) == 0
}

func conformObject(tmpl Object, candidate value.Value, path []string) []Violation {
	obj, ok := candidate.(value.Object)
	if !ok {
		return []Violation{{Path: path, Expected: string(KindObject), Got: value.KindOf(candidate)}}
	}

	var violations []Violation
	for _, f := range tmpl.Fields {
		fieldPath := append(append([]string(nil), path...), f.Name)
		got, present := obj[f.Name]
		if !present {
			violations = append(violations, Violation{Path: fieldPath, Expected: describe(f.Node), Got: "missing"})
			continue
		}

		switch n := f.Node.(type) {
		case Present:
		case Leaf:
			if !n.Kind.Matches(got) {
				violations = append(violations, Violation{Path: fieldPath, Expected: string(n.Kind), Got: value.KindOf(got)})
			}
		case Object:
			violations = append(violations, conformObject(n, got, fieldPath)...)
		}
	}
	return violations
}

func describe(n Node) string {
	switch n := n.(type) {
	case Leaf:
		return string(n.Kind)
	case Object:
		return string(KindObject)
	default:
		return "present"
	}
}
