package util

import "strings"

// FirstNonEmpty returns v if it contains non-whitespace content; otherwise fallback.
func FirstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// ValueOr dereferences an optional SDK string field. Nil and blank values
// yield fallback.
func ValueOr[T ~string](p *T, fallback string) string {
	if p == nil {
		return fallback
	}
	return FirstNonEmpty(string(*p), fallback)
}
