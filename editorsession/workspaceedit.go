package editorsession

import (
	"context"
	"sort"

	"editorcore/buffer"
	"editorcore/lsprpc"
)

// ApplyWorkspaceEdit applies the per-URI changes targeting this
// session's document. Edits are applied to the Buffer in descending
// start-offset order so that applying one edit never shifts the
// offsets of an edit still waiting to be applied — the same splice-
// the-text-in-place approach loom_edit.ApplyEdit uses for single
// edits, generalized here to an ordered batch. The resulting text is
// then propagated to the server as one full-document did_change,
// since a WorkspaceEdit's ranges are expressed against the snapshot
// before any of them were applied and replaying them incrementally in
// reverse order would desynchronize the server's incremental view.
func (s *Session) ApplyWorkspaceEdit(ctx context.Context, edit *lsprpc.WorkspaceEdit) error {
	textEdits, ok := edit.Changes[s.uri]
	if !ok || len(textEdits) == 0 {
		return nil
	}

	// TextEdit ranges arrive in the server's negotiated position
	// encoding (lsprpc.Position, spec'd as encoding-dependent), not the
	// buffer's native UTF8Bytes — resolve through the same LineIndex
	// positionForOffsetViaClient uses for the reverse direction, rather
	// than s.buf.OffsetForPosition which is hardcoded to UTF8Bytes.
	text := s.buf.Text()
	lines := buffer.NewLineIndex(text)
	enc := s.client.PositionEncoding()

	type resolved struct {
		start, end int
		newText    string
	}
	ranges := make([]resolved, 0, len(textEdits))
	for _, te := range textEdits {
		start, err := lines.OffsetForPosition(text, te.Range.Start.Line, te.Range.Start.Character, enc)
		if err != nil {
			return err
		}
		end, err := lines.OffsetForPosition(text, te.Range.End.Line, te.Range.End.Character, enc)
		if err != nil {
			return err
		}
		ranges = append(ranges, resolved{start: start, end: end, newText: te.NewText})
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start > ranges[j].start })

	for _, r := range ranges {
		if r.end > r.start {
			if err := s.buf.Delete(r.start, r.end); err != nil {
				return err
			}
		}
		if len(r.newText) > 0 {
			if err := s.buf.Insert(r.start, []byte(r.newText)); err != nil {
				return err
			}
		}
	}

	if err := s.setCursorFromOffset(clamp(s.cursorOffsetOrZero(), s.buf.Len())); err != nil {
		return err
	}

	return s.client.ReplaceText(ctx, s.ledger, s.uri, s.buf.Text())
}

func (s *Session) cursorOffsetOrZero() int {
	offset, err := s.cursorOffset()
	if err != nil {
		return 0
	}
	return offset
}

func clamp(offset, max int) int {
	if offset > max {
		return max
	}
	if offset < 0 {
		return 0
	}
	return offset
}
