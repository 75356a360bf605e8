package multistep

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// StopPredicate reports whether a candidate sub-question signals that no
// further decomposition is useful.
type StopPredicate func(candidate string) bool

// ContainsNone fires when the candidate contains "none" in any case. It also
// matches ordinary words such as "nonetheless"; use ExactNone for a stricter check.
func ContainsNone(candidate string) bool {
	return strings.Contains(strings.ToLower(candidate), "none")
}

// ExactNone fires only when the candidate, stripped of surrounding whitespace
// and punctuation, is the word "none".
func ExactNone(candidate string) bool {
	trimmed := strings.TrimFunc(candidate, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.EqualFold(trimmed, "none")
}

var stopPredicates = map[string]StopPredicate{ //nolint:gochecknoglobals
	"contains-none": ContainsNone,
	"exact-none":    ExactNone,
}

// StopPredicateNames lists the registered predicate names.
func StopPredicateNames() []string {
	names := make([]string, 0, len(stopPredicates))
	for name := range stopPredicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StopPredicateByName resolves a registered predicate. An empty name selects
// the default "contains-none".
func StopPredicateByName(name string) (StopPredicate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ContainsNone, nil
	}
	p, ok := stopPredicates[name]
	if !ok {
		return nil, fmt.Errorf("unknown stop predicate: %s", name)
	}
	return p, nil
}
