// Package sortby produces sorted copies of slices. Backends sort field and
// key sets before rendering statements so output is deterministic; the
// originals must stay untouched because callers often still range over them.
package sortby

import "sort"

// By returns a sorted copy of items, ordered by lt. The function should
// return true if left comes before right. items is not modified; a nil lt
// returns items as-is.
func By[E any](items []E, lt func(left, right E) bool) []E {
	if len(items) == 0 || lt == nil {
		return items
	}

	sorted := make([]E, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return lt(sorted[i], sorted[j])
	})
	return sorted
}

// Strings returns a copy of items sorted ascending. items is not modified.
func Strings(items []string) []string {
	if len(items) == 0 {
		return items
	}

	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return sorted
}
