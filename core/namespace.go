package core

import "strings"

const (
	// NamespaceSeparator separates the segments of a namespace path, e.g. loop1/3/childTask.
	NamespaceSeparator = "/"

	// SuffixSeparator separates a correlation id from a derived suffix, e.g. loop1:cursor.
	SuffixSeparator = ":"

	// VariablePrefix marks markers holding run-wide variables.
	VariablePrefix = "var" + SuffixSeparator
)

// Join builds a correlation id from a namespace path and a task name. Empty segments are skipped.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, NamespaceSeparator)
}

// Derive appends suffix segments to a correlation id, e.g. Derive("loop1", "batch", "2") is loop1:batch:2.
func Derive(correlationID string, suffix ...string) string {
	return strings.Join(append([]string{correlationID}, suffix...), SuffixSeparator)
}

// VariableMarker returns the marker name holding the run-wide variable name.
func VariableMarker(name string) string {
	return VariablePrefix + name
}

// IsVariableMarker reports whether the marker name holds a variable and returns the variable name.
func IsVariableMarker(marker string) (string, bool) {
	if !strings.HasPrefix(marker, VariablePrefix) {
		return "", false
	}

	return strings.TrimPrefix(marker, VariablePrefix), true
}

// ValidName reports whether name can be used as a task name inside a namespace path. The name
// of the variable prefix is reserved.
func ValidName(name string) bool {
	return name != "" &&
		name+SuffixSeparator != VariablePrefix &&
		!strings.ContainsAny(name, NamespaceSeparator+SuffixSeparator)
}
