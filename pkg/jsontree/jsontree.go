// Package jsontree parses documents into generic trees and addresses values by concrete path.
package jsontree

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var (
	ErrNotObject = errors.New("document root is not a JSON object")
	ErrBadPath   = errors.New("invalid concrete path")
)

// Parse decodes raw JSON into a generic tree. The root must be an object.
func Parse(raw []byte) (map[string]any, error) {
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return m, nil
}

// Marshal encodes a tree with sorted object keys.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Clone deep copies a tree.
func Clone(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return cloneValue(doc).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return v
	}
}

// Segments splits a concrete path like "/Areas/1/Title" into its segments.
func Segments(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Expr converts a concrete path into a JSONPath expression. Numeric segments index arrays.
func Expr(path string) jp.Expr {
	x := jp.R()
	for _, seg := range Segments(path) {
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 {
			x = x.N(i)
			continue
		}
		x = x.C(seg)
	}
	return x
}

// Get returns the value at the concrete path.
func Get(doc map[string]any, path string) (any, bool) {
	if len(Segments(path)) == 0 {
		return doc, true
	}
	results := Expr(path).Get(doc)
	if len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// Set assigns value at the concrete path, replacing any existing value.
func Set(doc map[string]any, path string, value any) error {
	if len(Segments(path)) == 0 {
		return fmt.Errorf("%w: cannot replace the document root", ErrBadPath)
	}
	if err := Expr(path).Set(doc, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// Add inserts value into an array at the given index (or appends when the last
// segment is "-"), or sets an object member.
func Add(doc map[string]any, path string, value any) error {
	segs := Segments(path)
	if len(segs) == 0 {
		return fmt.Errorf("%w: cannot add at the document root", ErrBadPath)
	}
	parentPath := "/" + strings.Join(segs[:len(segs)-1], "/")
	last := segs[len(segs)-1]

	parent, ok := Get(doc, parentPath)
	if !ok {
		return fmt.Errorf("%w: parent of %s does not exist", ErrBadPath, path)
	}
	arr, isArray := parent.([]any)
	if !isArray {
		return Set(doc, path, value)
	}

	idx := len(arr)
	if last != "-" {
		n, err := strconv.Atoi(last)
		if err != nil || n < 0 || n > len(arr) {
			return fmt.Errorf("%w: index %s out of range", ErrBadPath, last)
		}
		idx = n
	}
	grown := make([]any, 0, len(arr)+1)
	grown = append(grown, arr[:idx]...)
	grown = append(grown, value)
	grown = append(grown, arr[idx:]...)

	return Set(doc, parentPath, grown)
}

// Remove deletes the value at the concrete path.
func Remove(doc map[string]any, path string) error {
	if len(Segments(path)) == 0 {
		return fmt.Errorf("%w: cannot remove the document root", ErrBadPath)
	}
	if _, ok := Get(doc, path); !ok {
		return fmt.Errorf("%w: %s does not exist", ErrBadPath, path)
	}
	if _, err := Expr(path).Remove(doc); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// String returns the string value of a property, or "".
func String(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Int64 coerces the numeric forms produced by the JSON decoders.
func Int64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
