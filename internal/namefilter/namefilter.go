// Package namefilter implements the free-text package name filter used by the
// status and monitor views.
//
// A filter is a comma separated list of clauses. A clause is a substring that
// the name must contain, or, prefixed with '!', a substring it must not
// contain. Whitespace anywhere in the filter is ignored.
//
// Clauses are evaluated in order against an accumulating result that starts
// false. A clause can only ever turn the result true, never back to false:
// a positive clause fires when its substring is present, a negative clause
// fires when its substring is absent. A name therefore matches when it
// contains any positive substring or lacks any negative one. In particular
// "!a,!b" matches everything except names containing both a and b.
package namefilter

import (
	"strings"
	"unicode"
)

// Clause is one comma separated element of a filter
type Clause struct {
	Pattern string
	Negated bool
}

// Fires reports whether the clause turns the accumulated result true for name
func (c Clause) Fires(name string) bool {
	return strings.Contains(name, c.Pattern) != c.Negated
}

func (c Clause) String() string {
	if c.Negated {
		return "!" + c.Pattern
	}
	return c.Pattern
}

// Filter is a parsed name filter. The zero value has no clauses and matches nothing.
type Filter struct {
	Clauses []Clause
}

// Parse strips all whitespace from s and splits it into clauses.
// Empty clauses are dropped. A lone "!" is a positive clause for the literal "!".
func Parse(s string) Filter {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	var f Filter
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if len(part) > 1 && part[0] == '!' {
			f.Clauses = append(f.Clauses, Clause{Pattern: part[1:], Negated: true})
			continue
		}
		f.Clauses = append(f.Clauses, Clause{Pattern: part})
	}
	return f
}

// Empty reports whether the filter has no clauses
func (f Filter) Empty() bool {
	return len(f.Clauses) == 0
}

// Match evaluates the filter against name
func (f Filter) Match(name string) bool {
	result := false
	for _, c := range f.Clauses {
		if c.Fires(name) {
			result = true
		}
	}
	return result
}

func (f Filter) String() string {
	parts := make([]string, len(f.Clauses))
	for i, c := range f.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Match reports whether name passes filter. Callers treat an empty filter as
// "no filtering" and do not call Match for it.
func Match(name, filter string) bool {
	return Parse(filter).Match(name)
}

// Apply returns the names that pass filter, keeping their order.
// A blank filter returns names unchanged.
func Apply(names []string, filter string) []string {
	f := Parse(filter)
	if f.Empty() {
		return names
	}
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if f.Match(name) {
			kept = append(kept, name)
		}
	}
	return kept
}
