package locators

import (
	"sort"

	"github.com/Ramsey-B/briar/pkg/models"
)

// Deduplicate keeps exactly one entry per node id, in first-seen id order.
func Deduplicate(rootID string, entries []models.NodeLocatorEntry) []models.NodeLocatorEntry {
	best := make(map[string]models.NodeLocatorEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, e := range entries {
		current, seen := best[e.NodeID]
		if !seen {
			order = append(order, e.NodeID)
			best[e.NodeID] = e
			continue
		}
		if preferred(rootID, e, current) {
			best[e.NodeID] = e
		}
	}

	out := make([]models.NodeLocatorEntry, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// preferred reports whether candidate strictly beats current. Ties keep current.
func preferred(rootID string, candidate, current models.NodeLocatorEntry) bool {
	if a, b := isAuthoritativeRoot(rootID, candidate), isAuthoritativeRoot(rootID, current); a != b {
		return a
	}
	if a, b := hasRealType(candidate), hasRealType(current); a != b {
		return a
	}
	if a, b := candidate.NodePath != "/", current.NodePath != "/"; a != b {
		return a
	}
	if len(candidate.NodePath) != len(current.NodePath) {
		return len(candidate.NodePath) < len(current.NodePath)
	}
	return candidate.SeenAt.After(current.SeenAt)
}

func isAuthoritativeRoot(rootID string, e models.NodeLocatorEntry) bool {
	return e.NodeID == rootID && e.NodePath == "/"
}

func hasRealType(e models.NodeLocatorEntry) bool {
	return e.NodeType != "" && e.NodeType != models.UnknownNodeType
}

// FindConflicts reports node ids seen at more than one path or with more than one type.
func FindConflicts(entries []models.NodeLocatorEntry) []models.LocatorConflict {
	type seen struct {
		paths map[string]struct{}
		types map[string]struct{}
	}
	byID := make(map[string]*seen)
	order := make([]string, 0)
	for _, e := range entries {
		s, ok := byID[e.NodeID]
		if !ok {
			s = &seen{paths: map[string]struct{}{}, types: map[string]struct{}{}}
			byID[e.NodeID] = s
			order = append(order, e.NodeID)
		}
		s.paths[e.NodePath] = struct{}{}
		s.types[e.NodeType] = struct{}{}
	}

	var out []models.LocatorConflict
	for _, id := range order {
		s := byID[id]
		if len(s.paths) < 2 && len(s.types) < 2 {
			continue
		}
		out = append(out, models.LocatorConflict{NodeID: id, Paths: keys(s.paths), Types: keys(s.types)})
	}
	return out
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
