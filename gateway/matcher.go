package gateway

import "strings"

// PathMatcher reports whether a request path belongs to a path set.
type PathMatcher interface {
	Match(path string) bool
}

// PrefixMatcher matches any path that starts with one of its prefixes.
// The zero value matches nothing.
type PrefixMatcher struct {
	prefixes []string
}

// NewPrefixMatcher returns a matcher over the non-empty prefixes.
func NewPrefixMatcher(prefixes ...string) PrefixMatcher {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			out = append(out, p)
		}
	}
	return PrefixMatcher{prefixes: out}
}

// Match implements [PathMatcher].
func (m PrefixMatcher) Match(path string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func matches(m PathMatcher, path string) bool {
	return m != nil && m.Match(path)
}
