// Package headers finds the embedded reference headers inside a document.
package headers

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/nodes"
)

// Scanner discovers header references. It is an interface so the resolver can be
// driven by a different classification.
type Scanner interface {
	Scan(body map[string]any) []*models.EntityHeaderNode
}

// DefaultScanner treats every header-like object with a non-empty Id as a reference.
type DefaultScanner struct{}

func NewScanner() *DefaultScanner {
	return &DefaultScanner{}
}

func (s *DefaultScanner) Scan(body map[string]any) []*models.EntityHeaderNode {
	var out []*models.EntityHeaderNode
	for _, name := range sortedKeys(body) {
		out = scanValue(body[name], nodes.JoinPath(nodes.RootPath, name), name, out)
	}
	return out
}

func scanValue(v any, path, role string, out []*models.EntityHeaderNode) []*models.EntityHeaderNode {
	switch t := v.(type) {
	case map[string]any:
		if nodes.IsHeaderLike(t) {
			if id, _ := t[models.HeaderID].(string); strings.TrimSpace(id) != "" {
				out = append(out, models.NewEntityHeaderNode(t, path, role))
			}
			return out
		}
		for _, name := range sortedKeys(t) {
			out = scanValue(t[name], nodes.JoinPath(path, name), role, out)
		}
	case []any:
		for i, elem := range t {
			seg := strconv.Itoa(i)
			if obj, ok := elem.(map[string]any); ok {
				if id := nodes.NodeID(obj); id != "" {
					seg = "@id=" + id
				}
			}
			out = scanValue(elem, nodes.JoinPath(path, seg), role, out)
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
