package crawler

import (
	"sort"
	"strings"
)

// NormalizeFontFamily splits a raw CSS font-family value into cleaned family
// names. A backslash escape collapses to the escaped character (escaped
// quotes and backslashes are dropped outright), double quotes are removed,
// and every token is lowercased and trimmed. Empty tokens are discarded.
func NormalizeFontFamily(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.TrimSpace(strings.ToLower(unescapeFamily(part)))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func unescapeFamily(s string) string {
	if !strings.ContainsAny(s, `\"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			if r == '"' || r == '\\' {
				continue
			}
			b.WriteRune(r)
		case r == '\\':
			escaped = true
		case r == '"':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FontSet is the deduplicated set of family names collected during a crawl.
type FontSet struct {
	names map[string]struct{}
}

// NewFontSet returns an empty FontSet.
func NewFontSet() *FontSet {
	return &FontSet{names: make(map[string]struct{})}
}

// AddRaw normalizes a raw font-family value and inserts every resulting name.
func (s *FontSet) AddRaw(raw string) {
	for _, name := range NormalizeFontFamily(raw) {
		s.names[name] = struct{}{}
	}
}

// Len returns the number of distinct names.
func (s *FontSet) Len() int {
	return len(s.names)
}

// Slice returns the names sorted alphabetically. It never returns nil.
func (s *FontSet) Slice() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
