// Package filters evaluates path-glob filters (reviewer / watcher /
// ignore) per user and file, and computes deterministic assignments of
// reviewable file changes to reviewers.
package filters

import (
	"regexp"
	"strings"
)

// CompilePath translates a filter path pattern to an anchored regexp.
// `*` matches within a path segment, `**` matches across segments. The
// patterns "", "/" and "*" match every path.
func CompilePath(pattern string) (*regexp.Regexp, error) {
	if pattern == "" || pattern == "/" || pattern == "*" || pattern == "**" {
		return regexp.Compile(`^.*$`)
	}
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(`.*`)
				i++
			} else {
				sb.WriteString(`[^/]*`)
			}
		case '?':
			sb.WriteString(`[^/]`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	// A directory pattern matches its whole subtree.
	if strings.HasSuffix(pattern, "/") {
		sb.WriteString(`.*`)
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

// literalPrefix is the pattern prefix before the first wildcard.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?"); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// wildcardRank orders patterns with `*` before `**`; patterns without
// wildcards rank highest.
func wildcardRank(pattern string) int {
	switch {
	case !strings.ContainsAny(pattern, "*?"):
		return 0
	case !strings.Contains(pattern, "**"):
		return 1
	default:
		return 2
	}
}

// MoreSpecific reports whether pattern a ranks as more specific than
// b: longer literal prefixes first, then `*` before `**`, then
// lexicographic order as the tiebreak.
func MoreSpecific(a, b string) bool {
	pa, pb := literalPrefix(a), literalPrefix(b)
	if len(pa) != len(pb) {
		return len(pa) > len(pb)
	}
	if ra, rb := wildcardRank(a), wildcardRank(b); ra != rb {
		return ra < rb
	}
	return a < b
}
