// Package redact removes ignored fields from nested form snapshots.
//
// A snapshot is a JSON shaped tree of map[string]any, []any and scalar leaves.
// Typed maps, slices and structs are converted into that shape on copy.
// By default a configured path like "person.gender" matches on its last
// segment only, so every "gender" key is dropped wherever it occurs in the
// tree. This broad match is a known limitation kept for compatibility with
// stored data; WithFullPathMatching restricts a path to its own branch.
package redact

import (
	"reflect"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// PathSeparator separates the segments of an ignore path
const PathSeparator = "."

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	Redactor struct {
		paths    []string
		segments map[string]struct{}
		tree     [][]string
		fullPath bool
	}
	Option func(*Redactor)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(paths []string, opts ...Option) *Redactor {
	inst := &Redactor{
		paths:    append([]string(nil), paths...),
		segments: make(map[string]struct{}, len(paths)),
	}

	for _, opt := range opts {
		opt(inst)
	}

	for _, path := range inst.paths {
		if path == "" {
			continue
		}
		inst.segments[LastSegment(path)] = struct{}{}
		inst.tree = append(inst.tree, strings.Split(path, PathSeparator))
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

// WithFullPathMatching only removes a field when the whole dotted path matches.
// Slices are transparent, so "passports.number" matches passports[i].number.
func WithFullPathMatching(v bool) Option {
	return func(o *Redactor) {
		o.fullPath = v
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Paths returns the configured ignore paths
func (r *Redactor) Paths() []string {
	return append([]string(nil), r.paths...)
}

// Empty is true when no field would ever be removed
func (r *Redactor) Empty() bool {
	return len(r.tree) == 0
}

// Redact returns a deep copy of tree without the ignored fields.
// The input is never modified.
func (r *Redactor) Redact(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out, _ := DeepCopy(tree).(map[string]any)
	if r.Empty() {
		return out
	}
	if r.fullPath {
		omitPaths(out, r.tree)
	} else {
		omitDeep(out, r.segments)
	}
	return Omit(out, r.paths)
}

// ------------------------------------------------------------------------------------------------
// ~ Public functions
// ------------------------------------------------------------------------------------------------

// LastSegment returns the field name a dotted path points to
func LastSegment(path string) string {
	if i := strings.LastIndex(path, PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Omit removes the given keys from the top level of m in place and returns m.
// Dotted keys are treated as literal keys.
func Omit(m map[string]any, keys []string) map[string]any {
	for _, key := range keys {
		delete(m, key)
	}
	return m
}

// DeepCopy copies maps and slices recursively into the JSON data model:
// string keyed maps of any type become map[string]any, slices and arrays
// become []any and structs take their JSON object shape. Scalars are shared.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32, []byte:
		return v
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return copyValue(reflect.ValueOf(v))
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Private functions
// ------------------------------------------------------------------------------------------------

func copyValue(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return viaJSON(rv.Interface())
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = DeepCopy(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = DeepCopy(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return DeepCopy(rv.Elem().Interface())
	case reflect.Struct:
		return viaJSON(rv.Interface())
	default:
		return rv.Interface()
	}
}

// viaJSON converts v into its decoded JSON shape. Values that do not encode
// are returned unchanged and fail once the snapshot is serialized.
func viaJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func omitDeep(v any, fields map[string]struct{}) {
	switch t := v.(type) {
	case map[string]any:
		for key, child := range t {
			omitDeep(child, fields)
			if _, ok := fields[key]; ok {
				delete(t, key)
			}
		}
	case []any:
		for _, child := range t {
			omitDeep(child, fields)
		}
	}
}

func omitPaths(v any, paths [][]string) {
	if len(paths) == 0 {
		return
	}
	switch t := v.(type) {
	case map[string]any:
		for key, child := range t {
			var (
				remove bool
				rest   [][]string
			)
			for _, path := range paths {
				if path[0] != key {
					continue
				}
				if len(path) == 1 {
					remove = true
					break
				}
				rest = append(rest, path[1:])
			}
			if remove {
				delete(t, key)
				continue
			}
			omitPaths(child, rest)
		}
	case []any:
		for _, child := range t {
			omitPaths(child, paths)
		}
	}
}
