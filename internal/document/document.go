// Package document implements the nested profile document shared by every
// agent, addressed by dot-paths and mutated only through patch operations.
package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Document is a loosely typed nested mapping holding JSON-shaped values.
type Document = map[string]any

// PatchOp sets one dot-path to a value.
type PatchOp struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// AskedPathsKey is the dot-path of the list of question ids already asked.
const AskedPathsKey = "_meta.asked_paths"

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get resolves path inside doc. It returns nil when any segment is missing or
// an intermediate node is not a mapping.
func Get(doc Document, path string) any {
	parts := splitPath(path)
	if len(parts) == 0 || doc == nil {
		return nil
	}
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

// Set writes value at path, creating intermediate mappings. An intermediate
// node that exists but is not a mapping is replaced by an empty mapping.
func Set(doc Document, path string, value any) {
	parts := splitPath(path)
	if len(parts) == 0 || doc == nil {
		return
	}
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// ApplyPatches applies ops to doc in order. Ops with an empty path are skipped.
func ApplyPatches(doc Document, ops []PatchOp) {
	for _, op := range ops {
		if strings.TrimSpace(op.Path) == "" {
			continue
		}
		Set(doc, op.Path, op.Value)
	}
}

// ParsePatchOps converts untyped decoded JSON (a list of {"path","value"}
// objects) into ops. Entries that are not objects or lack a non-empty string
// path are dropped.
func ParsePatchOps(raw any) []PatchOp {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	ops := make([]PatchOp, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, ok := m["path"].(string)
		if !ok || strings.TrimSpace(path) == "" {
			continue
		}
		ops = append(ops, PatchOp{Path: path, Value: m["value"]})
	}
	return ops
}

// DeepMerge merges patch into dst and returns dst. Mappings merge
// recursively; every other value in patch overwrites the one in dst.
func DeepMerge(dst, patch Document) Document {
	if dst == nil {
		dst = Document{}
	}
	for k, v := range patch {
		pm, ok := v.(map[string]any)
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		dm, ok := dst[k].(map[string]any)
		if !ok {
			dm = map[string]any{}
		}
		dst[k] = DeepMerge(dm, pm)
	}
	return dst
}

// Clone returns a deep copy of doc.
func Clone(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	default:
		return v
	}
}

// IsAnswered reports whether v counts as a provided answer: non-nil, and for
// strings non-blank, for lists non-empty, for mappings holding at least one
// answered value. Any other scalar, including 0 and false, is answered.
func IsAnswered(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case map[string]any:
		for _, e := range t {
			if IsAnswered(e) {
				return true
			}
		}
		return false
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// AskedPaths returns the recorded question ids in insertion order.
func AskedPaths(doc Document) []string {
	var out []string
	switch t := Get(doc, AskedPathsKey).(type) {
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, t...)
	}
	return out
}

// AskedSet returns the asked paths as a set.
func AskedSet(doc Document) map[string]bool {
	set := map[string]bool{}
	for _, p := range AskedPaths(doc) {
		set[p] = true
	}
	return set
}

// WithAsked returns the asked list extended by path, or ok=false when path is
// blank or already present.
func WithAsked(doc Document, path string) (list []any, ok bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	asked := AskedPaths(doc)
	for _, p := range asked {
		if p == path {
			return nil, false
		}
	}
	list = make([]any, 0, len(asked)+1)
	for _, p := range asked {
		list = append(list, p)
	}
	return append(list, path), true
}

// MarkAsked records path in _meta.asked_paths once. It reports whether the
// document changed.
func MarkAsked(doc Document, path string) bool {
	list, ok := WithAsked(doc, path)
	if !ok {
		return false
	}
	Set(doc, AskedPathsKey, list)
	return true
}

// FromValue converts a JSON-serializable Go value (typically an agent
// output struct) into a Document.
func FromValue(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
