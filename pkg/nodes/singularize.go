package nodes

import "strings"

var singularOverrides = map[string]string{
	"people":    "Person",
	"children":  "Child",
	"criteria":  "Criterion",
	"indices":   "Index",
	"vertices":  "Vertex",
	"matrices":  "Matrix",
	"analyses":  "Analysis",
	"courses":   "Course",
	"licenses":  "License",
	"responses": "Response",
	"cases":     "Case",
	"databases": "Database",
	"releases":  "Release",
	"phases":    "Phase",
	"purchases": "Purchase",
	"expenses":  "Expense",
	"leaves":    "Leaf",
	"movies":    "Movie",
	"cookies":   "Cookie",
	"series":    "Series",
	"species":   "Species",
}

var singularKeep = map[string]struct{}{
	"status":      {},
	"address":     {},
	"alias":       {},
	"access":      {},
	"process":     {},
	"class":       {},
	"settings":    {},
	"news":        {},
	"analysis":    {},
	"basis":       {},
	"canvas":      {},
	"bus":         {},
	"campus":      {},
	"corpus":      {},
	"credentials": {},
	"metadata":    {},
	"data":        {},
	"details":     {},
	"permissions": {},
}

// Singularize derives a node type from a plural path segment.
func Singularize(segment string) string {
	lower := strings.ToLower(segment)
	if v, ok := singularOverrides[lower]; ok {
		return v
	}
	if _, ok := singularKeep[lower]; ok {
		return segment
	}
	if len(segment) <= 3 || !strings.HasSuffix(lower, "s") {
		return segment
	}

	switch {
	case strings.HasSuffix(lower, "ies"):
		return segment[:len(segment)-3] + "y"
	case strings.HasSuffix(lower, "sses"):
		return segment[:len(segment)-2]
	case strings.HasSuffix(lower, "ches"),
		strings.HasSuffix(lower, "shes"),
		strings.HasSuffix(lower, "xes"),
		strings.HasSuffix(lower, "zes"):
		return segment[:len(segment)-2]
	case strings.HasSuffix(lower, "ses"):
		return segment[:len(segment)-2]
	default:
		return segment[:len(segment)-1]
	}
}
