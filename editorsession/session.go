// Package editorsession is the façade that binds one Buffer to one
// LspClient, tracks the cursor, gates edits against readonly spans,
// and keeps both views of the document coherent. Grounded on
// internal/editor/apply.go's ApplyEdit/ValidateEditSafety pairing
// (validate-then-apply-then-propagate) and validation/lsp_client.go's
// ValidateFile (own-document-then-server round trip), generalized
// from "validate a proposed patch" to "every edit routes through one
// place that keeps Buffer and LspClient in sync."
package editorsession

import (
	"context"

	"editorcore/buffer"
	"editorcore/lsprpc"
)

// Cursor is a 0-based line/character position, always kept valid
// against the current buffer contents.
type Cursor struct {
	Line      int
	Character int
}

// Session owns one open document end to end: its Buffer, its
// LspClient connection, and the cursor. One Session is one document;
// spec.md's non-goals explicitly exclude multi-document sessions
// inside a single engine instance.
type Session struct {
	uri        string
	languageID string

	buf    *buffer.Buffer
	client *lsprpc.Client
	ledger *lsprpc.SnapshotLedger

	cursor Cursor

	completion CompletionSource
}

// Open constructs the Buffer and LspClient over the supplied
// transport, performs the initialize handshake, and issues did_open,
// per spec.md §4.3. The returned Session owns transport exclusively
// through the Client it constructs.
func Open(ctx context.Context, uri, languageID string, text []byte, transport lsprpc.Transport, opts ...lsprpc.Option) (*Session, error) {
	client := lsprpc.NewClient(ctx, transport, opts...)
	if _, err := client.Initialize(ctx, uri, nil); err != nil {
		return nil, err
	}

	ledger := lsprpc.NewSnapshotLedger()
	s := &Session{
		uri:        uri,
		languageID: languageID,
		buf:        buffer.FromSlice(text),
		client:     client,
		ledger:     ledger,
		completion: NoopCompletionSource(),
	}
	if err := client.OpenDocument(ctx, ledger, uri, languageID, text); err != nil {
		return nil, err
	}
	return s, nil
}

// Close shuts down the LSP connection. The Buffer has no separate
// teardown; it is simply released with the Session.
func (s *Session) Close(ctx context.Context) error {
	if err := s.client.CloseDocument(ctx, s.ledger, s.uri); err != nil {
		return err
	}
	return s.client.Close(ctx)
}

// BindCompletionSource installs the provider request_completion
// dispatches to when no LSP-backed completion is wanted (e.g. an
// external AI provider). Passing nil restores the noop source.
func (s *Session) BindCompletionSource(src CompletionSource) {
	if src == nil {
		src = NoopCompletionSource()
	}
	s.completion = src
}

// Buffer exposes the underlying Buffer for read-only inspection
// (syntax highlighting, rendering) — those concerns stay external
// collaborators per spec.md §1, this just lets them borrow the text.
func (s *Session) Buffer() *buffer.Buffer { return s.buf }

func (s *Session) Cursor() Cursor { return s.cursor }

func (s *Session) Client() *lsprpc.Client { return s.client }

// cursorOffset resolves the current cursor to a byte offset over the
// buffer's current text, using the Buffer's own line index so the
// session never reimplements position arithmetic (spec.md §9's fix for
// the source's `line*80 + char` placeholder).
func (s *Session) cursorOffset() (int, error) {
	return s.buf.OffsetForPosition(s.cursor.Line, s.cursor.Character)
}

func (s *Session) setCursorFromOffset(offset int) error {
	line, char, err := s.buf.PositionForOffset(offset)
	if err != nil {
		return err
	}
	s.cursor = Cursor{Line: line, Character: char}
	return nil
}

// MoveCursor validates (line, char) against the current buffer and,
// if valid, updates the cursor and fires a best-effort hover request
// whose failure is suppressed (spec.md §4.3, §7: "Hover errors inside
// move_cursor are suppressed").
func (s *Session) MoveCursor(ctx context.Context, line, char int) error {
	offset, err := s.buf.OffsetForPosition(line, char)
	if err != nil {
		return err
	}
	s.cursor = Cursor{Line: line, Character: char}

	pos, convErr := positionForOffsetViaClient(s.client, s.buf.Text(), offset)
	if convErr != nil {
		return nil
	}
	_, _ = s.client.Hover(ctx, s.uri, pos)
	return nil
}

// Insert inserts text at the cursor, advances the cursor past it on
// success, and forwards the minimal did_change range to the server.
func (s *Session) Insert(ctx context.Context, text []byte) error {
	offset, err := s.cursorOffset()
	if err != nil {
		return err
	}
	if err := s.buf.Insert(offset, text); err != nil {
		return err
	}
	if err := s.setCursorFromOffset(offset + len(text)); err != nil {
		return err
	}
	return s.client.ApplyAndSync(ctx, s.ledger, s.uri, []lsprpc.Edit{{Start: offset, End: offset, NewText: text}})
}

// Delete removes [start, end) (byte offsets) and forwards the change.
// The cursor is left at start.
func (s *Session) Delete(ctx context.Context, start, end int) error {
	if err := s.buf.Delete(start, end); err != nil {
		return err
	}
	if err := s.setCursorFromOffset(start); err != nil {
		return err
	}
	return s.client.ApplyAndSync(ctx, s.ledger, s.uri, []lsprpc.Edit{{Start: start, End: end, NewText: nil}})
}

// RequestCompletion dispatches to the bound CompletionSource (default
// noop) with the buffer's current text and cursor offset.
func (s *Session) RequestCompletion(ctx context.Context) (CompletionStream, error) {
	offset, err := s.cursorOffset()
	if err != nil {
		return nil, err
	}
	return s.completion.Complete(ctx, s.buf.Text(), offset)
}

// RequestLSPCompletion bypasses the bound CompletionSource and asks
// the language server directly, for callers that specifically want
// the LSP result rather than whatever provider is currently bound.
func (s *Session) RequestLSPCompletion(ctx context.Context) (*lsprpc.CompletionList, error) {
	offset, err := s.cursorOffset()
	if err != nil {
		return nil, err
	}
	pos, err := positionForOffsetViaClient(s.client, s.buf.Text(), offset)
	if err != nil {
		return nil, err
	}
	return s.client.Completion(ctx, s.uri, pos)
}
