package nodes

import "strings"

// RegionPair names two path regions that reference each other. A path that enters
// First and then, further down, Second is a cycle through the pair and is not walked.
type RegionPair struct {
	First  string
	Second string
}

// Exclusions configures which parts of a document the walker skips.
type Exclusions struct {
	SelfReferential []RegionPair
	// ByRootType lists path fragments skipped only for roots of the given type.
	ByRootType map[string][]string
}

// DefaultExclusions covers the known recursive regions.
func DefaultExclusions() Exclusions {
	return Exclusions{
		SelfReferential: []RegionPair{
			{First: "/RoutingTable", Second: "/PipelineModules"},
			{First: "/PipelineModules", Second: "/RoutingTable"},
			{First: "/Dependencies", Second: "/Dependents"},
			{First: "/Dependents", Second: "/Dependencies"},
		},
		ByRootType: map[string][]string{
			"Pipeline": {"/Revisions"},
			"Solution": {"/Snapshots"},
			"Template": {"/Instances"},
		},
	}
}

func (e Exclusions) excluded(path, rootType string) bool {
	lower := strings.ToLower(path)
	for _, pair := range e.SelfReferential {
		first := strings.ToLower(pair.First)
		i := strings.Index(lower, first)
		if i < 0 {
			continue
		}
		if strings.Contains(lower[i+len(first):], strings.ToLower(pair.Second)) {
			return true
		}
	}
	for _, fragment := range e.ByRootType[rootType] {
		if strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}
