package buffer

import (
	"errors"
	"math/rand"
	"testing"

	"editorcore/errs"
)

func TestInsertBasic(t *testing.T) {
	b := FromSlice([]byte("hello world"))
	if err := b.Insert(5, []byte(",")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b.Text()) != "hello, world" {
		t.Fatalf("got %q", b.Text())
	}
}

func TestInsertOutOfBounds(t *testing.T) {
	b := FromSlice([]byte("hi"))
	err := b.Insert(-1, []byte("x"))
	if !errors.Is(err, errs.OutOfBounds) {
		t.Fatalf("expected OutOfBounds, got %v", err)
	}
	err = b.Insert(3, []byte("x"))
	if !errors.Is(err, errs.OutOfBounds) {
		t.Fatalf("expected OutOfBounds, got %v", err)
	}
}

func TestReadonlyInteriorRejectsInsert(t *testing.T) {
	b := FromSlice([]byte("hello world"))
	if err := b.MarkReadonly(0, 5); err != nil {
		t.Fatalf("mark_readonly: %v", err)
	}
	before := string(b.Text())
	err := b.Insert(2, []byte("X"))
	if !errors.Is(err, errs.ReadOnlyViolation) {
		t.Fatalf("expected ReadOnlyViolation, got %v", err)
	}
	if string(b.Text()) != before {
		t.Fatalf("buffer mutated despite rejected insert: %q", b.Text())
	}
}

func TestReadonlyBoundaryInsertAllowed(t *testing.T) {
	b := FromSlice([]byte("hello world"))
	if err := b.MarkReadonly(0, 5); err != nil {
		t.Fatalf("mark_readonly: %v", err)
	}
	if err := b.Insert(5, []byte("!")); err != nil {
		t.Fatalf("boundary insert should succeed: %v", err)
	}
	if string(b.Text()) != "hello! world" {
		t.Fatalf("got %q", b.Text())
	}
	spans := b.ReadonlySpans()
	if len(spans) != 1 || spans[0] != (Span{0, 5}) {
		t.Fatalf("readonly interval changed: %+v", spans)
	}
	// Insert at Start is also allowed.
	if err := b.Insert(0, []byte(">>")); err != nil {
		t.Fatalf("start-boundary insert should succeed: %v", err)
	}
	spans = b.ReadonlySpans()
	if len(spans) != 1 || spans[0].Start != 2 {
		t.Fatalf("readonly interval did not shift: %+v", spans)
	}
}

func TestDeleteExactReadonlySpanDropsIt(t *testing.T) {
	b := FromSlice([]byte("hello world"))
	if err := b.MarkReadonly(0, 5); err != nil {
		t.Fatalf("mark_readonly: %v", err)
	}
	if err := b.Delete(0, 5); err != nil {
		t.Fatalf("exact-span delete should succeed: %v", err)
	}
	if len(b.ReadonlySpans()) != 0 {
		t.Fatalf("expected span to be dropped, got %+v", b.ReadonlySpans())
	}
	if string(b.Text()) != " world" {
		t.Fatalf("got %q", b.Text())
	}
}

func TestDeleteInteriorRejected(t *testing.T) {
	b := FromSlice([]byte("hello world"))
	if err := b.MarkReadonly(0, 5); err != nil {
		t.Fatalf("mark_readonly: %v", err)
	}
	if err := b.Delete(2, 8); !errors.Is(err, errs.ReadOnlyViolation) {
		t.Fatalf("expected ReadOnlyViolation, got %v", err)
	}
}

func TestMarkReadonlyCoalesces(t *testing.T) {
	b := FromSlice([]byte("0123456789"))
	mustOK(t, b.MarkReadonly(0, 2))
	mustOK(t, b.MarkReadonly(2, 4)) // touching, should coalesce
	mustOK(t, b.MarkReadonly(6, 8))
	mustOK(t, b.MarkReadonly(4, 6)) // bridges the gap, coalesces all three

	spans := b.ReadonlySpans()
	if len(spans) != 1 || spans[0] != (Span{0, 8}) {
		t.Fatalf("expected single coalesced span [0,8), got %+v", spans)
	}
}

func TestUnmarkReadonlySplits(t *testing.T) {
	b := FromSlice([]byte("0123456789"))
	mustOK(t, b.MarkReadonly(0, 8))
	mustOK(t, b.UnmarkReadonly(3, 5))

	spans := b.ReadonlySpans()
	if len(spans) != 2 || spans[0] != (Span{0, 3}) || spans[1] != (Span{5, 8}) {
		t.Fatalf("expected split spans, got %+v", spans)
	}
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestReadonlyInvariantUnderRandomOps is a property test (spec.md §8
// item 1): after any sequence of operations that individually
// succeed, readonly spans stay disjoint, non-adjacent, sorted, and
// within [0, len(text)].
func TestReadonlyInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		b := FromSlice([]byte("the quick brown fox jumps over the lazy dog"))
		for step := 0; step < 30; step++ {
			n := b.Len()
			if n == 0 {
				break
			}
			switch rng.Intn(4) {
			case 0:
				off := rng.Intn(n + 1)
				_ = b.Insert(off, []byte("xy"))
			case 1:
				start := rng.Intn(n + 1)
				end := start + rng.Intn(n+1-start)
				_ = b.Delete(start, end)
			case 2:
				start := rng.Intn(n)
				end := start + 1 + rng.Intn(n-start)
				_ = b.MarkReadonly(start, end)
			case 3:
				start := rng.Intn(n + 1)
				end := start + rng.Intn(n+1-start)
				_ = b.UnmarkReadonly(start, end)
			}
			assertSpansWellFormed(t, b)
		}
	}
}

func assertSpansWellFormed(t *testing.T, b *Buffer) {
	t.Helper()
	spans := b.ReadonlySpans()
	prevEnd := -1
	for _, sp := range spans {
		if sp.Start >= sp.End {
			t.Fatalf("empty/inverted span %+v", sp)
		}
		if sp.Start < 0 || sp.End > b.Len() {
			t.Fatalf("span %+v out of bounds for length %d", sp, b.Len())
		}
		if sp.Start <= prevEnd {
			t.Fatalf("spans not disjoint/sorted: prevEnd=%d span=%+v", prevEnd, sp)
		}
		prevEnd = sp.End
	}
}

func TestReplaceAllRespectsReadonly(t *testing.T) {
	b := FromSlice([]byte("package main\n\nfunc main() {}\n"))
	mustOK(t, b.MarkReadonly(0, 12)) // "package main"

	if err := b.ReplaceAll([]byte("package main\n\nfunc main() { println(\"hi\") }\n")); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}
	if string(b.Text()[:12]) != "package main" {
		t.Fatalf("readonly prefix mutated: %q", b.Text())
	}

	// A ReplaceAll whose diff touches the readonly interior must fail
	// and leave the buffer untouched.
	before := string(b.Text())
	err := b.ReplaceAll([]byte("package other\n\nfunc main() {}\n"))
	if !errors.Is(err, errs.ReadOnlyViolation) {
		t.Fatalf("expected ReadOnlyViolation, got %v", err)
	}
	if string(b.Text()) != before {
		t.Fatalf("buffer mutated despite rejected ReplaceAll: %q", b.Text())
	}
}

func TestPositionOffsetRoundTrip(t *testing.T) {
	text := []byte("const x = 1;\nconst y = 2;\n")
	li := NewLineIndex(text)

	for _, enc := range []PositionEncoding{UTF8Bytes, UTF16} {
		for offset := 0; offset <= len(text); offset++ {
			line, char, err := li.PositionForOffset(text, offset, enc)
			if err != nil {
				t.Fatalf("PositionForOffset(%d): %v", offset, err)
			}
			back, err := li.OffsetForPosition(text, line, char, enc)
			if err != nil {
				t.Fatalf("OffsetForPosition(%d,%d): %v", line, char, err)
			}
			if back != offset {
				t.Fatalf("round trip mismatch at %d (enc=%v): got %d via (%d,%d)", offset, enc, back, line, char)
			}
		}
	}
}

func TestPositionPastEndOfDocument(t *testing.T) {
	text := []byte("abc\n")
	li := NewLineIndex(text)
	if _, err := li.OffsetForPosition(text, 5, 0, UTF8Bytes); !errors.Is(err, errs.InvalidPosition) {
		t.Fatalf("expected InvalidPosition, got %v", err)
	}
}
