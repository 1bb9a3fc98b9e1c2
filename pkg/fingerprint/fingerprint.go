// Package fingerprint computes the content hash stamped onto resolved documents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/briar/pkg/models"
)

// DefaultExclusions are store-managed or self-referential fields that never affect the hash.
var DefaultExclusions = []string{models.DocHash, models.DocRevision, "_etag", "_ts", "_rid", "_self", "_attachments"}

// Hasher hashes a canonical form of a document: sorted keys, excluded fields dropped.
type Hasher struct {
	exclude map[string]bool
}

// NewHasher builds a hasher. Exclusions are dot-notation paths; a parent excludes its children.
func NewHasher(exclusions ...string) *Hasher {
	if len(exclusions) == 0 {
		exclusions = DefaultExclusions
	}
	exclude := make(map[string]bool, len(exclusions))
	for _, e := range exclusions {
		exclude[e] = true
	}
	return &Hasher{exclude: exclude}
}

// Hash returns the hex SHA-256 of the canonical document.
func (h *Hasher) Hash(body map[string]any) string {
	var sb strings.Builder
	h.canonicalize(&sb, body, "")
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Stamp writes the current hash into the document and reports whether it changed.
func (h *Hasher) Stamp(body map[string]any) (string, bool) {
	hash := h.Hash(body)
	previous, _ := body[models.DocHash].(string)
	body[models.DocHash] = hash
	return hash, previous != hash
}

func (h *Hasher) canonicalize(sb *strings.Builder, v any, path string) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		first := true
		for _, k := range keys {
			fieldPath := k
			if path != "" {
				fieldPath = path + "." + k
			}
			if h.excluded(fieldPath) {
				continue
			}
			if !first {
				sb.WriteByte(',')
			}
			first = false
			keyJSON, _ := json.Marshal(k)
			sb.Write(keyJSON)
			sb.WriteByte(':')
			h.canonicalize(sb, t[k], fieldPath)
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			// array elements share the parent path
			h.canonicalize(sb, elem, path)
		}
		sb.WriteByte(']')
	default:
		b, _ := json.Marshal(t)
		sb.Write(b)
	}
}

func (h *Hasher) excluded(fieldPath string) bool {
	if h.exclude[fieldPath] {
		return true
	}
	for e := range h.exclude {
		if strings.HasPrefix(fieldPath, e+".") {
			return true
		}
	}
	return false
}
