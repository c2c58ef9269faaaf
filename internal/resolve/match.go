package resolve

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when no platform resource matches a lookup.
type NotFoundError struct {
	Kind  string
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s matches %s", e.Kind, e.Query)
}

// AmbiguousMatchError is returned when more than one platform resource matches a lookup
// that must resolve to exactly one.
type AmbiguousMatchError struct {
	Kind    string
	Query   string
	Matches []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d %ss match %s (%s); make the name unique",
		len(e.Matches), e.Kind, e.Query, strings.Join(e.Matches, ", "))
}

// Matcher is a lookup strategy: it decides whether a resource name is the one being looked for.
type Matcher struct {
	desc  string
	match func(candidate string) bool
}

// ExactName matches names equal to name.
func ExactName(name string) Matcher {
	return Matcher{
		desc:  fmt.Sprintf("name %q", name),
		match: func(candidate string) bool { return candidate == name },
	}
}

// NameContains matches names containing substr.
func NameContains(substr string) Matcher {
	return Matcher{
		desc:  fmt.Sprintf("name containing %q", substr),
		match: func(candidate string) bool { return strings.Contains(candidate, substr) },
	}
}

// Matches reports whether candidate is a name this lookup accepts.
func (m Matcher) Matches(candidate string) bool {
	return m.match != nil && m.match(candidate)
}

// String describes the lookup for error messages.
func (m Matcher) String() string {
	return m.desc
}

// findUnique returns the single item whose name matches, a *NotFoundError if none does,
// or an *AmbiguousMatchError if several do. Items with an empty name never match.
func findUnique[T any](kind string, items []T, name func(*T) string, m Matcher) (*T, error) {
	var found []*T
	var names []string
	for i := range items {
		n := name(&items[i])
		if n == "" || !m.Matches(n) {
			continue
		}
		found = append(found, &items[i])
		names = append(names, n)
	}
	switch len(found) {
	case 0:
		return nil, &NotFoundError{Kind: kind, Query: m.String()}
	case 1:
		return found[0], nil
	default:
		return nil, &AmbiguousMatchError{Kind: kind, Query: m.String(), Matches: names}
	}
}
