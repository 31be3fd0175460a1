package buffer

import (
	"unicode/utf8"

	"editorcore/errs"
)

// PositionEncoding selects how the "character" axis of a Position is
// counted within a line. spec.md fixes UTF8Bytes as this engine's
// native convention; UTF16 is provided so lsprpc can negotiate LSP's
// historical default with servers that require it (spec.md §9).
type PositionEncoding int

const (
	UTF8Bytes PositionEncoding = iota
	UTF16
)

// LineIndex maps between (line, character) positions and byte offsets
// over a fixed text snapshot. It is the single offset routine both
// Buffer (for EditorSession's cursor) and lsprpc (for its document
// snapshots) are built on, so the two components can never disagree
// about what a given position means.
type LineIndex struct {
	// starts[i] is the byte offset of the first byte of line i.
	starts []int
	length int
}

// NewLineIndex scans text once, recording the byte offset of every
// line start (lines are LF-terminated per spec.md §4.2 item 4).
func NewLineIndex(text []byte) *LineIndex {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts, length: len(text)}
}

// LineCount returns the number of lines (always >= 1).
func (li *LineIndex) LineCount() int { return len(li.starts) }

// OffsetForPosition converts a 0-based (line, char) position over text
// to a byte offset, using enc to interpret char. Positions past the
// end of a line clamp to the line's end; a line number past the end of
// the document yields InvalidPosition.
func (li *LineIndex) OffsetForPosition(text []byte, line, char int, enc PositionEncoding) (int, error) {
	if line < 0 || line >= len(li.starts) {
		return 0, errs.New(errs.InvalidPosition, "line %d out of range [0,%d)", line, len(li.starts))
	}
	if char < 0 {
		return 0, errs.New(errs.InvalidPosition, "character %d is negative", char)
	}

	lineStart := li.starts[line]
	lineEnd := li.length
	if line+1 < len(li.starts) {
		lineEnd = li.starts[line+1] - 1 // exclude the '\n'
		if lineEnd < lineStart {
			lineEnd = lineStart
		}
	}
	lineBytes := text[lineStart:lineEnd]

	switch enc {
	case UTF8Bytes:
		if char > len(lineBytes) {
			return lineEnd, nil
		}
		return lineStart + char, nil
	case UTF16:
		offset := lineStart
		units := 0
		for offset < lineEnd {
			r, size := utf8.DecodeRune(text[offset:lineEnd])
			width := 1
			if r > 0xFFFF {
				width = 2
			}
			if units+width > char {
				break
			}
			units += width
			offset += size
		}
		return offset, nil
	default:
		return 0, errs.New(errs.InvalidPosition, "unknown position encoding %d", enc)
	}
}

// PositionForOffset converts a byte offset over text to a 0-based
// (line, char) position, using enc to produce char.
func (li *LineIndex) PositionForOffset(text []byte, offset int, enc PositionEncoding) (line, char int, err error) {
	if offset < 0 || offset > li.length {
		return 0, 0, errs.New(errs.OutOfBounds, "offset %d out of bounds [0,%d]", offset, li.length)
	}

	// Binary search for the line containing offset.
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line = lo
	lineStart := li.starts[line]

	switch enc {
	case UTF8Bytes:
		return line, offset - lineStart, nil
	case UTF16:
		units := 0
		pos := lineStart
		for pos < offset {
			r, size := utf8.DecodeRune(text[pos:offset])
			if r > 0xFFFF {
				units += 2
			} else {
				units++
			}
			pos += size
		}
		return line, units, nil
	default:
		return 0, 0, errs.New(errs.InvalidPosition, "unknown position encoding %d", enc)
	}
}

// OffsetForPosition converts a cursor position to a byte offset over
// the buffer's current text, using the engine's native UTF8Bytes
// encoding (the encoding EditorSession's cursor is always expressed
// in; conversion to a negotiated LSP encoding happens in lsprpc).
func (b *Buffer) OffsetForPosition(line, char int) (int, error) {
	return NewLineIndex(b.text).OffsetForPosition(b.text, line, char, UTF8Bytes)
}

// PositionForOffset is the inverse of OffsetForPosition.
func (b *Buffer) PositionForOffset(offset int) (line, char int, err error) {
	return NewLineIndex(b.text).PositionForOffset(b.text, offset, UTF8Bytes)
}
