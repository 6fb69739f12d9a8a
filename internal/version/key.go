// Package version derives ordered numeric keys from branch directory
// names and resolves the parent edge of every branch, producing an
// acyclic version graph.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPattern extracts numeric key segments from a directory name:
// runs of digits at the start of the name or introduced by "v", "." or
// "_". Examples: "v001.12" has key [1 12], "3_add_audit" has key [3].
var DefaultPattern = regexp.MustCompile(`(?:^|v|\.|_)(\d+)`)

// CompilePattern compiles a manifest ordering-pattern override. The
// pattern must contain exactly one capture group for the digit run.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid ordering pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("ordering pattern %q must have exactly one capture group", expr)
	}
	return re, nil
}

// ParseKey extracts the ordered numeric key from a branch name using
// the given pattern (DefaultPattern when nil). It is a pure function of
// its inputs; no filesystem access.
//
// A name qualifies as a version when the pattern matches from the start
// of the name with no gaps between matches; a descriptive suffix
// introduced by "_" or "-" after the last segment is allowed
// ("1_initial_release"). Returns ok=false for names that do not
// qualify.
func ParseKey(name string, pattern *regexp.Regexp) ([]int, bool) {
	if pattern == nil {
		pattern = DefaultPattern
	}
	locs := pattern.FindAllStringSubmatchIndex(name, -1)
	if len(locs) == 0 || locs[0][0] != 0 {
		return nil, false
	}
	var key []int
	end := 0
	for _, m := range locs {
		if m[0] != end {
			// A gap of unmatched text between segments: only a
			// trailing suffix is allowed, so stop here.
			break
		}
		n, err := strconv.Atoi(name[m[2]:m[3]])
		if err != nil {
			return nil, false
		}
		key = append(key, n)
		end = m[1]
	}
	rest := name[end:]
	if rest != "" && !strings.HasPrefix(rest, "_") && !strings.HasPrefix(rest, "-") {
		return nil, false
	}
	return key, true
}

// Compare orders two keys Dewey-style: segments compare as integers,
// and on a shared prefix the shorter key comes first ([1] precedes
// [1 0]). Returns a negative value when a < b, positive when a > b.
func Compare(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}

// Format renders a key in dotted form, e.g. "1.12".
func Format(key []int) string {
	parts := make([]string, len(key))
	for i, n := range key {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}
