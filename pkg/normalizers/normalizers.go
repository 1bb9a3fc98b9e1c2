// Package normalizers derives and normalizes natural keys for the entity types that have key rules.
package normalizers

import (
	"strings"
	"unicode"

	"github.com/Ramsey-B/briar/pkg/jsontree"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

var registry = map[string]Normalizer{
	"lowercase":         Lowercase,
	"trim":              Trim,
	"nemail":            NormalizeEmail,
	"remove_whitespace": RemoveWhitespace,
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// ApplyChain applies named normalizers in order. Unknown names are skipped.
func ApplyChain(value string, names ...string) string {
	for _, name := range names {
		if fn, ok := registry[name]; ok {
			value = fn(value)
		}
	}
	return value
}

func Lowercase(s string) string {
	return strings.ToLower(s)
}

func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// KeyRule derives an entity's key from the first non-empty source field.
type KeyRule struct {
	EntityType string
	Fields     []string
	Chain      []string
}

// DefaultKeyRules are the two domain special cases: users keyed by username or
// email, organizations keyed by namespace.
func DefaultKeyRules() []KeyRule {
	return []KeyRule{
		{EntityType: "user", Fields: []string{"username", "userName", "email"}, Chain: []string{"nemail"}},
		{EntityType: "organization", Fields: []string{"namespace"}, Chain: []string{"trim", "lowercase"}},
	}
}

// DeriveKey applies the rule for entityType to body. ok is false when no rule
// matches or every source field is empty.
func DeriveKey(rules []KeyRule, entityType string, body map[string]any) (key string, ok bool) {
	for _, rule := range rules {
		if !strings.EqualFold(rule.EntityType, entityType) {
			continue
		}
		key = ApplyChain(jsontree.String(body, rule.Fields...), rule.Chain...)
		return key, key != ""
	}
	return "", false
}
