package patchpath

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// Patch operation kinds.
const (
	OpSet    = "set"
	OpAdd    = "add"
	OpRemove = "remove"
)

// Operation is one patch step. Path may be logical (keyed) or already concrete.
type Operation struct {
	Op    string `json:"op" validate:"required,oneof=set add remove"`
	Path  string `json:"path" validate:"required"`
	Value any    `json:"value,omitempty"`
}

// ResolveAll rewrites every operation's path to a concrete one.
func ResolveAll(doc map[string]any, ops []Operation) ([]Operation, error) {
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		kind := strings.ToLower(op.Op)
		concrete, err := Resolve(doc, op.Path, kind != OpRemove)
		if err != nil {
			return nil, fmt.Errorf("op %s %s: %w", op.Op, op.Path, err)
		}
		out = append(out, Operation{Op: kind, Path: concrete, Value: op.Value})
	}
	return out, nil
}

// Apply executes concrete operations against doc in order.
func Apply(doc map[string]any, ops []Operation) error {
	for _, op := range ops {
		var err error
		switch strings.ToLower(op.Op) {
		case OpSet:
			err = jsontree.Set(doc, op.Path, op.Value)
		case OpAdd:
			err = jsontree.Add(doc, op.Path, op.Value)
		case OpRemove:
			err = jsontree.Remove(doc, op.Path)
		default:
			err = fmt.Errorf("unsupported patch op %q", op.Op)
		}
		if err != nil {
			return fmt.Errorf("op %s %s: %w", op.Op, op.Path, err)
		}
	}
	return nil
}
