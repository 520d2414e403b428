package syncer

import (
	"slices"
	"strings"
)

// normalizeName folds a DNS name for comparison: lower case, at most one
// trailing dot stripped, and Route53's octal escape for "*" unescaped.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, ".")
	s = strings.ReplaceAll(s, `\052`, "*")
	return s
}

// normalizeValues returns a sorted copy of values. An empty set normalizes
// to absent.
func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	out := slices.Clone(values)
	slices.Sort(out)
	return out
}
