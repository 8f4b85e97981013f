package recall

import "strings"

// compilePattern splits a search string on ".*" (a variable-length
// wildcard) into the literal fragments that must appear, in order,
// anywhere in a candidate line. Within each fragment "." still matches
// any single character. There is no start/end anchoring: the pattern
// "foo" matches a line containing "foo" anywhere, just as "foo.*bar"
// matches any line with "foo" followed somewhere later by "bar".
func compilePattern(raw string) []string {
	parts := strings.Split(raw, ".*")
	fragments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		fragments = append(fragments, strings.ToLower(p))
	}
	return fragments
}

// matchFragments reports whether every fragment occurs in s, in
// order, each one starting no earlier than where the previous one
// left off. s must already be lowercased. An empty fragment list
// (a search string that was entirely wildcards) matches everything.
func matchFragments(s string, fragments []string) bool {
	pos := 0
	for _, f := range fragments {
		idx := findFragment(s, f, pos)
		if idx < 0 {
			return false
		}
		pos = idx + len(f)
	}
	return true
}

// findFragment finds the first occurrence of pattern (which may
// contain "." wildcards, each matching any single character) in s at
// or after start, returning its index or -1.
func findFragment(s, pattern string, start int) int {
	if pattern == "" {
		return start
	}
	for i := start; i+len(pattern) <= len(s); i++ {
		if fragmentMatchesAt(s, pattern, i) {
			return i
		}
	}
	return -1
}

func fragmentMatchesAt(s, pattern string, at int) bool {
	for j := 0; j < len(pattern); j++ {
		if pattern[j] == '.' {
			continue
		}
		if s[at+j] != pattern[j] {
			return false
		}
	}
	return true
}
