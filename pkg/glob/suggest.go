// Package glob completes %%term%% interpolations inside glob expressions.
package glob

import (
	"sort"
	"strings"
)

// Delimiter opens and closes an interpolated term.
const Delimiter = "%%"

// Suggestion is one completion for the open term of an expression.
type Suggestion struct {
	Suggestion               string `json:"suggestion"`
	ExpressionWithSuggestion string `json:"expressionWithSuggestion"`
}

// Suggestions completes the term left open at the end of expression with the
// entries that start with it. An expression whose delimiters are balanced has
// no open term and yields no suggestions. Matching ignores case; results
// follow entry order with duplicates removed.
func Suggestions(expression string, entries []string) []Suggestion {
	prefix, term, ok := OpenTerm(expression)
	if !ok {
		return []Suggestion{}
	}

	needle := strings.ToLower(term)
	seen := make(map[string]struct{}, len(entries))
	out := []Suggestion{}
	for _, entry := range entries {
		if entry == "" || !strings.HasPrefix(strings.ToLower(entry), needle) {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}
		completed := Delimiter + entry + Delimiter
		out = append(out, Suggestion{
			Suggestion:               completed,
			ExpressionWithSuggestion: prefix + completed,
		})
	}
	return out
}

// OpenTerm splits expression at its last unmatched delimiter. prefix is the
// text before the delimiter and term the partial name after it.
func OpenTerm(expression string) (prefix, term string, ok bool) {
	if strings.Count(expression, Delimiter)%2 == 0 {
		return "", "", false
	}
	idx := strings.LastIndex(expression, Delimiter)
	return expression[:idx], expression[idx+len(Delimiter):], true
}

// Terms returns the sorted distinct closed terms referenced by expression.
func Terms(expression string) []string {
	parts := strings.Split(expression, Delimiter)
	seen := make(map[string]struct{})
	var out []string
	for idx := 1; idx+1 < len(parts); idx += 2 {
		name := parts[idx]
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
