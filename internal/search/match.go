package search

import (
	"regexp"
	"strings"
)

// Pattern compiles a case-insensitive literal matcher. Empty queries return nil.
func Pattern(query string) *regexp.Regexp {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
}

// CountMatches counts non-overlapping case-insensitive occurrences of query.
// Regex metacharacters in query are matched literally.
func CountMatches(content, query string) int {
	re := Pattern(query)
	if re == nil {
		return 0
	}
	return len(re.FindAllStringIndex(content, -1))
}
