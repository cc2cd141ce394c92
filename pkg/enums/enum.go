// Package enums holds the string enums persisted in the database and sent
// over the API. Each type keeps its accepted values in a set.
package enums

import (
	"fmt"
	"slices"
)

type set[T ~string] []T

func (s set[T]) has(v T) bool {
	return slices.Contains(s, v)
}

func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

// values returns a copy callers may modify.
func (s set[T]) values() []T {
	return slices.Clone(s)
}
