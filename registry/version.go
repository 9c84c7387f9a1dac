package registry

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var shortVersion = regexp.MustCompile(`^(?:0|[1-9][0-9]*)(\.(?:0|[1-9][0-9]*))?$`)

// PadVersion expands "x" and "x.y" to "x.0.0" and "x.y.0". Other versions are returned unchanged.
func PadVersion(version string) string {
	if !shortVersion.MatchString(version) {
		return version
	}

	parts := append(strings.Split(version, "."), "0", "0")
	return strings.Join(parts[:3], ".")
}

type versioned[T any] struct {
	version    string
	constraint *semver.Constraints

	// lower is the registered version if it is a plain version, used for ordering
	lower *semver.Version

	value T
}

func newVersioned[T any](version string, value T) (*versioned[T], error) {
	c, err := semver.NewConstraint(version)
	if err != nil {
		return nil, err
	}

	v := &versioned[T]{
		version:    version,
		constraint: c,
		value:      value,
	}

	if lower, err := semver.NewVersion(PadVersion(version)); err == nil {
		v.lower = lower
	}

	return v, nil
}

// insertVersioned adds v keeping the list sorted ascending. Constraints that are not plain versions
// keep their registration order after all plain versions.
func insertVersioned[T any](list []*versioned[T], v *versioned[T]) []*versioned[T] {
	list = append(list, v)

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].lower, list[j].lower
		switch {
		case a != nil && b != nil:
			return a.LessThan(b)
		case a != nil:
			return true
		default:
			return false
		}
	})

	return list
}

// match returns the first registration whose constraint the requested version satisfies.
func match[T any](list []*versioned[T], version string) (T, bool) {
	var zero T

	v, err := semver.NewVersion(PadVersion(version))
	if err != nil {
		return zero, false
	}

	for _, r := range list {
		if r.constraint.Check(v) {
			return r.value, true
		}
	}

	return zero, false
}
