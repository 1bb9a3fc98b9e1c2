// Package patchpath turns logical patch paths with keyed array selectors into concrete paths.
package patchpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// ErrResolve is returned when a logical path does not match the document.
var ErrResolve = errors.New("patch path resolution failed")

var keyedSegment = regexp.MustCompile(`(?i)^([^\[\]]+)\[key=([^\]]*)\]$`)

type segment struct {
	name   string
	keyed  bool
	key    string
	source string
}

func parse(logical string) ([]segment, error) {
	parts := jsontree.Segments(logical)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrResolve)
	}
	out := make([]segment, 0, len(parts))
	for _, p := range parts {
		if m := keyedSegment.FindStringSubmatch(p); m != nil {
			out = append(out, segment{name: m[1], keyed: true, key: m[2], source: p})
			continue
		}
		if strings.ContainsAny(p, "[]") {
			return nil, fmt.Errorf("%w: malformed segment %q", ErrResolve, p)
		}
		out = append(out, segment{name: p, source: p})
	}
	return out, nil
}

// Resolve converts a path like /Areas[key=guides]/Pages[key=new]/CardTitle into
// /Areas/1/Pages/0/CardTitle by walking the live document. Property names and keys
// match case-insensitively. When allowNewLeaf is set, the final plain segment may
// name a property that does not exist yet.
func Resolve(doc map[string]any, logical string, allowNewLeaf bool) (string, error) {
	segs, err := parse(logical)
	if err != nil {
		return "", err
	}

	var cur any = doc
	concrete := make([]string, 0, len(segs)*2)
	for i, seg := range segs {
		last := i == len(segs)-1

		if arr, ok := cur.([]any); ok && !seg.keyed {
			if last && allowNewLeaf && (seg.name == "-" || seg.name == strconv.Itoa(len(arr))) {
				concrete = append(concrete, seg.name)
				break
			}
			n, convErr := strconv.Atoi(seg.name)
			if convErr != nil || n < 0 || n >= len(arr) {
				return "", fmt.Errorf("%w: %q is not a valid index into %d elements", ErrResolve, seg.name, len(arr))
			}
			concrete = append(concrete, strconv.Itoa(n))
			cur = arr[n]
			continue
		}

		obj, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: cannot step into %q, parent is not an object", ErrResolve, seg.source)
		}
		name, value, found := lookup(obj, seg.name)
		if !found {
			if last && allowNewLeaf && !seg.keyed {
				concrete = append(concrete, seg.name)
				break
			}
			return "", fmt.Errorf("%w: property %q not found", ErrResolve, seg.name)
		}
		concrete = append(concrete, name)

		if !seg.keyed {
			cur = value
			continue
		}
		arr, ok := value.([]any)
		if !ok {
			return "", fmt.Errorf("%w: property %q is not an array", ErrResolve, name)
		}
		idx := indexOfKey(arr, seg.key)
		if idx < 0 {
			return "", fmt.Errorf("%w: no element of %q has key %q", ErrResolve, name, seg.key)
		}
		concrete = append(concrete, strconv.Itoa(idx))
		cur = arr[idx]
	}
	return "/" + strings.Join(concrete, "/"), nil
}

func lookup(obj map[string]any, name string) (string, any, bool) {
	if v, ok := obj[name]; ok {
		return name, v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return k, v, true
		}
	}
	return "", nil, false
}

func indexOfKey(arr []any, key string) int {
	for i, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		_, v, found := lookup(obj, "Key")
		if s, isStr := v.(string); found && isStr && strings.EqualFold(s, key) {
			return i
		}
	}
	return -1
}
