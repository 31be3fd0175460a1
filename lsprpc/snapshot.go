package lsprpc

import (
	"context"
	"sync"

	"editorcore/buffer"
	"editorcore/errs"
)

// maxSnapshots bounds how many open documents one client tracks at
// once, mirroring maxDiagnosticURIs's rationale: an editor session
// that forgets to didClose shouldn't grow this table without limit.
const maxSnapshots = 1000

// DocumentSnapshot is this client's own copy of one open document:
// just the text and the version number last sent to the server,
// independent of EditorSession's buffer.Buffer (which additionally
// tracks readonly spans and is the user-facing document). Re-deriving
// offsets from this copy is what lets DidChange send incremental
// edits instead of replaying the whole document on every keystroke.
type DocumentSnapshot struct {
	URI     string
	Version int
	Text    []byte
}

// SnapshotLedger owns one DocumentSnapshot per open URI.
type SnapshotLedger struct {
	mu    sync.Mutex
	byURI map[string]*DocumentSnapshot
	order []string
}

func NewSnapshotLedger() *SnapshotLedger {
	return &SnapshotLedger{byURI: make(map[string]*DocumentSnapshot)}
}

func (l *SnapshotLedger) Get(uri string) (*DocumentSnapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.byURI[uri]
	return snap, ok
}

func (l *SnapshotLedger) put(snap *DocumentSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byURI[snap.URI]; !exists {
		if len(l.order) >= maxSnapshots {
			return errs.New(errs.ResourceExhausted, "snapshot ledger full (%d open documents)", maxSnapshots)
		}
		l.order = append(l.order, snap.URI)
	}
	l.byURI[snap.URI] = snap
	return nil
}

func (l *SnapshotLedger) drop(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byURI, uri)
	for i, u := range l.order {
		if u == uri {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// OpenDocument registers a document's initial text with the server and
// with this client's own ledger, at version 0 (spec: version starts at
// 0 on did_open and strictly increases with each did_change).
func (c *Client) OpenDocument(ctx context.Context, ledger *SnapshotLedger, uri, languageID string, text []byte) error {
	snap := &DocumentSnapshot{URI: uri, Version: 0, Text: append([]byte(nil), text...)}
	if err := ledger.put(snap); err != nil {
		return err
	}
	return c.DidOpen(ctx, uri, languageID, snap.Version, string(snap.Text))
}

// CloseDocument notifies the server and drops the local snapshot.
func (c *Client) CloseDocument(ctx context.Context, ledger *SnapshotLedger, uri string) error {
	ledger.drop(uri)
	return c.DidClose(ctx, uri)
}

// Edit describes one byte-range replacement against a snapshot's
// current text, in the same coordinate space as buffer.Buffer's
// Insert/Delete (UTF8Bytes offsets), letting EditorSession hand its
// own edits straight to ApplyAndSync without a separate translation
// step for the common case.
type Edit struct {
	Start   int
	End     int
	NewText []byte
}

// ApplyAndSync replays edits against the ledger's copy of uri's text,
// bumps its version, and sends an incremental textDocument/didChange.
// Edits are applied in the order given; each one's Start/End refer to
// offsets in the text as left by the previous edit in the batch, the
// same convention buffer.Buffer.Insert/Delete use.
func (c *Client) ApplyAndSync(ctx context.Context, ledger *SnapshotLedger, uri string, edits []Edit) error {
	snap, ok := ledger.Get(uri)
	if !ok {
		return errs.New(errs.InvalidPosition, "no open snapshot for %s", uri)
	}

	changes := make([]ContentChange, 0, len(edits))
	text := snap.Text
	for _, e := range edits {
		if e.Start < 0 || e.End > len(text) || e.Start > e.End {
			return errs.New(errs.OutOfBounds, "edit [%d,%d) out of bounds for %d-byte document", e.Start, e.End, len(text))
		}
		lines := buffer.NewLineIndex(text)
		startLine, startChar, err := lines.PositionForOffset(text, e.Start, c.PositionEncoding())
		if err != nil {
			return err
		}
		endLine, endChar, err := lines.PositionForOffset(text, e.End, c.PositionEncoding())
		if err != nil {
			return err
		}

		next := make([]byte, 0, len(text)-(e.End-e.Start)+len(e.NewText))
		next = append(next, text[:e.Start]...)
		next = append(next, e.NewText...)
		next = append(next, text[e.End:]...)
		text = next

		changes = append(changes, ContentChange{
			Range: &Range{Start: Position{Line: startLine, Character: startChar}, End: Position{Line: endLine, Character: endChar}},
			Text:  string(e.NewText),
		})
	}

	snap.Text = text
	snap.Version++
	if err := ledger.put(snap); err != nil {
		return err
	}

	return c.DidChange(ctx, uri, snap.Version, changes)
}

// ReplaceText sends a full-document textDocument/didChange, for cases
// where incremental tracking isn't worthwhile (e.g. after
// Session.ApplyWorkspaceEdit has applied a batch of edits).
func (c *Client) ReplaceText(ctx context.Context, ledger *SnapshotLedger, uri string, text []byte) error {
	snap, ok := ledger.Get(uri)
	if !ok {
		return errs.New(errs.InvalidPosition, "no open snapshot for %s", uri)
	}
	snap.Text = append([]byte(nil), text...)
	snap.Version++
	if err := ledger.put(snap); err != nil {
		return err
	}
	return c.DidChange(ctx, uri, snap.Version, []ContentChange{{Text: string(snap.Text)}})
}
