package buffer

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ReplaceAll re-synchronizes the buffer to newText without simply
// swapping the backing array. It diffs the current text against
// newText with diffmatchpatch (the same library
// internal/editor/anchor_utils.go uses for fuzzy relocation in the
// teacher) and replays the result as a minimal sequence of Insert and
// Delete calls, so readonly spans shift the way they would for any
// other edit and a readonly violation inside the diffed region still
// surfaces as such instead of being silently overwritten.
//
// The edits are replayed one at a time: if a later one fails, the
// earlier ones stay applied. Nothing in lsprpc calls ReplaceAll; a
// full-document change there is assigned directly to the snapshot's
// text (Client.ReplaceText).
func (b *Buffer) ReplaceAll(newText []byte) error {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(b.text), string(newText), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	offset := 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			offset += len(d.Text)
		case diffmatchpatch.DiffDelete:
			if err := b.Delete(offset, offset+len(d.Text)); err != nil {
				return err
			}
		case diffmatchpatch.DiffInsert:
			if err := b.Insert(offset, []byte(d.Text)); err != nil {
				return err
			}
			offset += len(d.Text)
		}
	}
	return nil
}
