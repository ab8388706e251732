// Package version compares dotted plugin version strings and tests them
// against affected-versions expressions from the threat feed.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CompareFunc orders two version strings, returning -1, 0 or 1.
type CompareFunc func(a, b string) int

// Names accepted by ParseScheme.
const (
	SchemePadded     = "padded"
	SchemeLongerWins = "longer-wins"
	SchemeSemver     = "semver"
)

// ParseScheme returns the comparison function registered under name.
func ParseScheme(name string) (CompareFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SchemePadded:
		return Compare, nil
	case SchemeLongerWins:
		return CompareLongerWins, nil
	case SchemeSemver:
		return CompareSemver, nil
	default:
		return nil, fmt.Errorf("unknown version comparison scheme %q (padded, longer-wins, semver)", name)
	}
}

// components splits v on dots. Components that are not non-negative
// integers count as zero, so "1.0-beta" and "1.0" are indistinguishable.
func components(v string) []uint64 {
	parts := strings.Split(v, ".")
	out := make([]uint64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}

// comparePadded compares component slices, treating missing trailing
// components as zero.
func comparePadded(a, b []uint64) int {
	n := max(len(a), len(b))
	for i := range n {
		var x, y uint64
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// Compare orders two dotted versions component by component, padding the
// shorter one with zeros. "1.0" and "1.0.0" compare equal.
func Compare(a, b string) int {
	return comparePadded(components(a), components(b))
}

// CompareLongerWins is the ordering used by older builds of the checker:
// when the versions are equal after zero padding, the one written with
// more components is greater, so "1.0.0" > "1.0".
// Feeds tuned against those builds can select it with version_compare = "longer-wins".
func CompareLongerWins(a, b string) int {
	ca, cb := components(a), components(b)
	if c := comparePadded(ca, cb); c != 0 {
		return c
	}
	switch {
	case len(ca) < len(cb):
		return -1
	case len(ca) > len(cb):
		return 1
	}
	return 0
}

// CompareSemver uses semantic version precedence when both sides are valid
// semantic versions (a leading "v" is optional), so "1.2.0-beta" sorts
// below "1.2.0". Anything else falls back to Compare.
func CompareSemver(a, b string) int {
	sa, sb := canonicalSemver(a), canonicalSemver(b)
	if sa == "" || sb == "" {
		return Compare(a, b)
	}
	return semver.Compare(sa, sb)
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}
