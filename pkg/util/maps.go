// Package util holds small generic helpers for maps used as sets.
package util

import (
	"cmp"
	"maps"
	"slices"
)

// SortedKeys returns the keys of a map in sorted order, for deterministic
// iteration.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// AddAll marks every item as present in set.
func AddAll[K comparable](set map[K]bool, items ...K) {
	for _, item := range items {
		set[item] = true
	}
}
