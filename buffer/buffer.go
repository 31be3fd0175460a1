// Package buffer implements the editable text buffer with readonly
// spans that underlies one editor session: an ordered byte sequence
// plus a disjoint, sorted set of readonly intervals over it.
package buffer

import (
	"sort"

	"editorcore/errs"
)

// Span is a half-open byte interval [Start, End) that cannot be
// mutated in its strict interior.
type Span struct {
	Start int
	End   int
}

// Buffer is an editable UTF-8 byte sequence with readonly spans.
//
// The backing store is a single contiguous []byte. Insert/delete are
// amortized-linear, which the spec's algorithm note accepts ("any
// representation whose insert/delete are sub-linear in the common
// case"); no rope or piece-table library appears anywhere in the
// corpus this module was grounded on, so a plain slice plus a sorted
// interval set (binary-searched via sort.Search) is the stdlib-only
// choice documented in DESIGN.md.
type Buffer struct {
	text     []byte
	readonly []Span // sorted by Start, disjoint, non-adjacent
}

// FromSlice creates a Buffer containing a copy of bytes with no
// readonly regions.
func FromSlice(bytes []byte) *Buffer {
	b := make([]byte, len(bytes))
	copy(b, bytes)
	return &Buffer{text: b}
}

// Text returns the current content. The returned slice is only valid
// until the next mutating call.
func (b *Buffer) Text() []byte { return b.text }

// Len returns the number of bytes currently in the buffer.
func (b *Buffer) Len() int { return len(b.text) }

// ReadonlySpans returns the readonly intervals ordered by Start. The
// returned slice is a borrowed view; callers must not retain it across
// a mutating call.
func (b *Buffer) ReadonlySpans() []Span { return b.readonly }

// IsReadonly reports whether offset lies in the strict interior of any
// readonly span.
func (b *Buffer) IsReadonly(offset int) bool {
	_, inside := b.intervalContainingInterior(offset)
	return inside
}

// intervalContainingInterior returns the index of the readonly span
// whose strict interior (Start, End) contains offset, if any.
func (b *Buffer) intervalContainingInterior(offset int) (int, bool) {
	i := sort.Search(len(b.readonly), func(i int) bool {
		return b.readonly[i].End > offset
	})
	if i < len(b.readonly) && b.readonly[i].Start < offset && offset < b.readonly[i].End {
		return i, true
	}
	return i, false
}

// rangeIntersectsInterior reports whether [start,end) overlaps the
// strict interior of any readonly span, i.e. touches more than just an
// endpoint of that span.
func (b *Buffer) rangeIntersectsInterior(start, end int) bool {
	i := sort.Search(len(b.readonly), func(i int) bool {
		return b.readonly[i].End > start
	})
	for ; i < len(b.readonly); i++ {
		sp := b.readonly[i]
		if sp.Start >= end {
			break
		}
		// The edit strictly overlaps sp's interior unless the edit range
		// is entirely at or beyond one of sp's endpoints on each side.
		overlapStart := max(start, sp.Start)
		overlapEnd := min(end, sp.End)
		if overlapStart >= overlapEnd {
			continue
		}
		// A full-span deletion/replacement (start<=sp.Start && end>=sp.End)
		// is allowed by spec.md 4.1 ("full-interval deletions are allowed
		// and drop the interval"); any partial overlap touches the
		// interior and is rejected.
		if start <= sp.Start && end >= sp.End {
			continue
		}
		return true
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Insert inserts text at offset. Insertion exactly at a readonly
// span's Start or End is allowed; insertion strictly inside is
// rejected with ReadOnlyViolation. A span's Start shifts by len(text)
// when it lies at or after offset, its End when it lies strictly after
// offset, so text inserted at either boundary stays outside the span.
func (b *Buffer) Insert(offset int, text []byte) error {
	if offset < 0 || offset > len(b.text) {
		return errs.New(errs.OutOfBounds, "insert offset %d out of bounds [0,%d]", offset, len(b.text))
	}
	if _, inside := b.intervalContainingInterior(offset); inside {
		return errs.New(errs.ReadOnlyViolation, "insert at %d falls inside a readonly span", offset)
	}

	grown := make([]byte, 0, len(b.text)+len(text))
	grown = append(grown, b.text[:offset]...)
	grown = append(grown, text...)
	grown = append(grown, b.text[offset:]...)
	b.text = grown

	shift := len(text)
	for i := range b.readonly {
		if b.readonly[i].Start >= offset {
			b.readonly[i].Start += shift
		}
		if b.readonly[i].End > offset {
			b.readonly[i].End += shift
		}
	}
	return nil
}

// Delete removes [start,end). A range that intersects the strict
// interior of a readonly span fails with ReadOnlyViolation; a range
// that exactly covers one or more readonly spans succeeds and drops
// them. Spans entirely after the range shift by -(end-start).
func (b *Buffer) Delete(start, end int) error {
	if start < 0 || end < start || end > len(b.text) {
		return errs.New(errs.OutOfBounds, "delete range [%d,%d) out of bounds for length %d", start, end, len(b.text))
	}
	if start == end {
		return nil
	}
	if b.rangeIntersectsInterior(start, end) {
		return errs.New(errs.ReadOnlyViolation, "delete [%d,%d) intersects a readonly span's interior", start, end)
	}

	shrunk := make([]byte, 0, len(b.text)-(end-start))
	shrunk = append(shrunk, b.text[:start]...)
	shrunk = append(shrunk, b.text[end:]...)
	b.text = shrunk

	width := end - start
	kept := b.readonly[:0]
	// keep appends sp, coalescing it with the previous kept span when the
	// deletion has closed the gap between them, so spans stay non-adjacent.
	keep := func(sp Span) {
		if n := len(kept); n > 0 && kept[n-1].End >= sp.Start {
			if sp.End > kept[n-1].End {
				kept[n-1].End = sp.End
			}
			return
		}
		kept = append(kept, sp)
	}
	for _, sp := range b.readonly {
		switch {
		case sp.End <= start:
			keep(sp)
		case sp.Start >= end:
			sp.Start -= width
			sp.End -= width
			keep(sp)
		case start <= sp.Start && end >= sp.End:
			// Fully covered: dropped, per spec.md 4.1.
		default:
			// Partial overlap without touching the interior shouldn't be
			// reachable here (rangeIntersectsInterior would have caught
			// it), but shrink defensively rather than panic.
			ns := sp.Start
			ne := sp.End
			if ns > start {
				ns = start
			}
			if ne > start {
				ne -= width
			}
			if ns < ne {
				keep(Span{Start: ns, End: ne})
			}
		}
	}
	b.readonly = kept
	return nil
}

// MarkReadonly adds [start,end) to the readonly coverage, coalescing
// with any touching or overlapping existing spans.
func (b *Buffer) MarkReadonly(start, end int) error {
	if start < 0 || end <= start || end > len(b.text) {
		return errs.New(errs.OutOfBounds, "mark_readonly range [%d,%d) invalid for length %d", start, end, len(b.text))
	}

	merged := make([]Span, 0, len(b.readonly)+1)
	newSpan := Span{Start: start, End: end}
	inserted := false
	for _, sp := range b.readonly {
		if sp.End < newSpan.Start || sp.Start > newSpan.End {
			// Disjoint and not touching.
			if sp.Start > newSpan.End && !inserted {
				merged = append(merged, newSpan)
				inserted = true
			}
			merged = append(merged, sp)
			continue
		}
		// Touching or overlapping: coalesce.
		if sp.Start < newSpan.Start {
			newSpan.Start = sp.Start
		}
		if sp.End > newSpan.End {
			newSpan.End = sp.End
		}
	}
	if !inserted {
		merged = append(merged, newSpan)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })
	b.readonly = merged
	return nil
}

// UnmarkReadonly removes [start,end) from the readonly coverage,
// splitting any spans that straddle the boundary.
func (b *Buffer) UnmarkReadonly(start, end int) error {
	if start < 0 || end < start || end > len(b.text) {
		return errs.New(errs.OutOfBounds, "unmark_readonly range [%d,%d) invalid for length %d", start, end, len(b.text))
	}
	if start == end {
		return nil
	}

	kept := make([]Span, 0, len(b.readonly)+1)
	for _, sp := range b.readonly {
		if sp.End <= start || sp.Start >= end {
			kept = append(kept, sp)
			continue
		}
		if sp.Start < start {
			kept = append(kept, Span{Start: sp.Start, End: start})
		}
		if sp.End > end {
			kept = append(kept, Span{Start: end, End: sp.End})
		}
	}
	b.readonly = kept
	return nil
}
