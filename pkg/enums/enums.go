// Package enums holds the string-backed domain enumerations persisted in the
// database and exchanged on the wire.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, all []T) bool {
	return slices.Contains(all, v)
}

func parse[T ~string](kind, raw string, all []T) (T, error) {
	if v := T(raw); known(v, all) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
