package nodes

// headerProperties is the closed set of property names a reference header may carry.
var headerProperties = map[string]struct{}{
	"Id":         {},
	"Key":        {},
	"Text":       {},
	"_t":         {},
	"Resolved":   {},
	"IsPublic":   {},
	"EntityType": {},
	"OwnerOrgId": {},
	"Path":       {},
	"HasValue":   {},
	"Value":      {},
}

// IsHeaderLike reports whether every property of obj is a header property.
// One extra property makes it a real node.
func IsHeaderLike(obj map[string]any) bool {
	for name := range obj {
		if _, ok := headerProperties[name]; !ok {
			return false
		}
	}
	return true
}

// IsNormalizedID reports whether s is exactly 32 hex digits.
func IsNormalizedID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NodeID returns the object's own normalized id, or "".
func NodeID(obj map[string]any) string {
	for _, k := range []string{"Id", "id"} {
		if s, ok := obj[k].(string); ok && IsNormalizedID(s) {
			return s
		}
	}
	return ""
}
