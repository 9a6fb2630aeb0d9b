package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/simlog/internal/value"
)

// parseScalar reads a flag value as JSON, falling back to a plain string:
// "1e14" is a float, "true" a bool, "RAMSES" a string.
func parseScalar(s string) value.Value {
	if v, err := value.Parse([]byte(s)); err == nil {
		return v
	}
	return value.String(s)
}

// parseAssignments turns "k=v" pairs into an object. Values go through
// parseScalar.
func parseAssignments(pairs []string) (value.Object, error) {
	obj := value.Object{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", errInvalidInput, pair)
		}
		obj[k] = parseScalar(v)
	}
	return obj, nil
}

// parseWhere turns "k=v1,v2" predicates into search criteria. A single
// value matches by equality; several match any of them.
func parseWhere(pairs []string) (map[string]value.Value, error) {
	where := make(map[string]value.Value, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", errInvalidInput, pair)
		}
		parts := strings.Split(v, ",")
		if len(parts) == 1 {
			where[k] = parseScalar(v)
			continue
		}
		options := make(value.Array, len(parts))
		for i, p := range parts {
			options[i] = parseScalar(p)
		}
		where[k] = options
	}
	return where, nil
}

// readBody loads a record body from a YAML or JSON file.
func readBody(path string) (value.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", errInvalidInput, path, err)
	}
	if raw == nil {
		return value.Object{}, nil
	}
	v, err := value.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: convert %s: %v", errInvalidInput, path, err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %s, want an object", errInvalidInput, path, value.KindOf(v))
	}
	return obj, nil
}

// mergeInto sets every key of src inside dst[section], creating it.
func mergeInto(dst value.Object, section string, src value.Object) {
	if len(src) == 0 {
		return
	}
	target, ok := dst.Object(section)
	if !ok {
		target = value.Object{}
		dst[section] = target
	}
	for k, v := range src {
		target[k] = v
	}
}
