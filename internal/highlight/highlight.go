// Package highlight marks query matches inside rendered terminal text
// without disturbing the ANSI escape sequences already present.
package highlight

import (
	"regexp"
	"strings"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text  string
	Count int
}

// Apply wraps each case-insensitive occurrence of query in the given wrap
// function, skipping over escape sequences so styled text stays intact.
// An empty query returns the input unchanged.
func Apply(input, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	indices := ansiCSI.FindAllStringIndex(input, -1)
	if len(indices) == 0 {
		text, count := markPlain(input, query, wrap)
		return Result{Text: text, Count: count}
	}

	var out strings.Builder
	total := 0
	pos := 0
	for _, idx := range indices {
		if idx[0] > pos {
			text, count := markPlain(input[pos:idx[0]], query, wrap)
			out.WriteString(text)
			total += count
		}
		out.WriteString(input[idx[0]:idx[1]])
		pos = idx[1]
	}
	if pos < len(input) {
		text, count := markPlain(input[pos:], query, wrap)
		out.WriteString(text)
		total += count
	}
	return Result{Text: out.String(), Count: total}
}

func markPlain(s, query string, wrap func(string) string) (string, int) {
	if s == "" {
		return s, 0
	}

	lower := strings.ToLower(s)
	q := strings.ToLower(query)
	if !strings.Contains(lower, q) {
		return s, 0
	}

	var out strings.Builder
	count := 0
	start := 0
	for {
		rel := strings.Index(lower[start:], q)
		if rel < 0 {
			out.WriteString(s[start:])
			break
		}
		idx := start + rel
		out.WriteString(s[start:idx])
		end := idx + len(query)
		out.WriteString(wrap(s[idx:end]))
		count++
		start = end
	}
	return out.String(), count
}
