package utils

import (
	"maps"
	"slices"
)

// GetKeys returns the keys of m sorted, never nil.
func GetKeys[T any](m map[string]T) []string {
	keys := slices.AppendSeq(make([]string, 0, len(m)), maps.Keys(m))
	slices.Sort(keys)
	return keys
}
