package vire

import (
	"fmt"
	"sort"
)

// Location is a line/column/byte-offset position inside a Proto's
// source. Used only for debug info (§4.7); never touched by the
// hot interpreter loop.
type Location struct {
	Line   int32
	Column int32
	Cursor int32
}

// Span is a half-open [Start, End) region of source text.
type Span struct{ Start, End Location }

func (s Span) String() string {
	if s.Start.Line == s.End.Line && s.Start.Column == s.End.Column {
		return fmt.Sprintf("%d:%d", s.Start.Line, s.Start.Column)
	}
	return fmt.Sprintf("%d:%d..%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// LineIndex maps byte cursors to Locations, built by NewLineIndex
// from a source chunk. Proto does not carry one, and the interpreter
// never consults it.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}
	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	lineStart := li.lineStart[lineIdx]
	return Location{
		Line:   int32(lineIdx + 1),
		Column: int32(cursor-lineStart) + 1,
		Cursor: int32(cursor),
	}
}

func (li *LineIndex) Span(start, end int) Span {
	return Span{Start: li.LocationAt(start), End: li.LocationAt(end)}
}
