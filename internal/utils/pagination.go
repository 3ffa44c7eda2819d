// Package utils holds small helpers shared by the HTTP and service layers
// that carry no chat semantics of their own.
package utils

import "strconv"

// Page size bounds for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as an int, returning def when s is empty or not a
// plain base-10 integer. Surrounding spaces are not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window is a normalized page request.
type Window struct {
	Page int
	Size int
}

// NewWindow clamps page to >= 1 and size to [1, MaxPageSize]. A size of
// zero or less selects DefaultPageSize when useDefault is set, else 1.
func NewWindow(page, size int, useDefault bool) Window {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0 && useDefault:
		size = DefaultPageSize
	case size < 1:
		size = 1
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Window{Page: page, Size: size}
}

// ParseWindow reads page and page_size query values. Missing or malformed
// values fall back to page 1 and DefaultPageSize; explicit values are
// clamped by NewWindow.
func ParseWindow(page, size string) Window {
	return NewWindow(AtoiDefault(page, 1), AtoiDefault(size, DefaultPageSize), false)
}

// Offset is the number of rows skipped before this page.
func (w Window) Offset() int { return (w.Page - 1) * w.Size }

// TotalPages returns how many pages of w.Size cover total rows.
func (w Window) TotalPages(total int64) int {
	if w.Size <= 0 {
		return 0
	}
	return int((total + int64(w.Size) - 1) / int64(w.Size))
}

// HasNext reports whether a page follows w for total rows.
func (w Window) HasNext(total int64) bool { return w.Page < w.TotalPages(total) }
