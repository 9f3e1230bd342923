package source

import "fmt"

// Span is a half-open byte range [Start, End) inside one file of a FileSet.
// Bundles store spans as three-element arrays.
type Span struct {
	_msgpack struct{} `msgpack:",as_array"`

	File  FileID
	Start uint32
	End   uint32
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

// Contains reports whether off lies inside s.
func (s Span) Contains(off uint32) bool {
	return s.Start <= off && off < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover returns the smallest span containing both s and other. Spans from
// different files, and empty spans, do not widen s.
func (s Span) Cover(other Span) Span {
	switch {
	case other.Empty() || s.File != other.File:
		return s
	case s.Empty():
		return other
	}
	s.Start = min(s.Start, other.Start)
	s.End = max(s.End, other.End)
	return s
}
