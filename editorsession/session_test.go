package editorsession

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"

	"editorcore/errs"
	"editorcore/lsprpc"
)

// scriptedServer answers the bare minimum LSP conversation an
// opened Session needs (initialize, then whatever notifications and
// requests the test drives), reading/writing the same
// Content-Length framing the client uses. It runs on its own
// goroutine so the test body can call blocking Session methods
// directly.
type scriptedServer struct {
	t *testing.T
	r *bufio.Reader
	w io.Writer
}

func startScriptedServer(t *testing.T, transport lsprpc.Transport, handle func(ss *scriptedServer, msg map[string]interface{})) *scriptedServer {
	t.Helper()
	ss := &scriptedServer{t: t, r: bufio.NewReader(transport), w: transport}
	go func() {
		for {
			msg, err := ss.read()
			if err != nil {
				return
			}
			handle(ss, msg)
		}
	}()
	return ss
}

func (ss *scriptedServer) read() (map[string]interface{}, error) {
	var msg map[string]interface{}
	if err := (rawCodec{}).ReadObject(ss.r, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (ss *scriptedServer) reply(id interface{}, result interface{}) {
	_ = (rawCodec{}).WriteObject(ss.w, map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result})
}

// rawCodec duplicates lsprpc's unexported objectCodec framing rules
// (Content-Length header, blank line, JSON body) so this package's
// tests can script a fake server without depending on lsprpc's
// internals directly.
type rawCodec struct{}

func (rawCodec) WriteObject(w io.Writer, obj interface{}) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (rawCodec) ReadObject(r *bufio.Reader, v interface{}) error {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return err
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return fmt.Errorf("missing Content-Length")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func newSessionForTest(t *testing.T) (*Session, *scriptedServer, lsprpc.Transport) {
	t.Helper()
	engineSide, serverSide := lsprpc.NewLoopbackTransport()

	ss := startScriptedServer(t, serverSide, func(ss *scriptedServer, msg map[string]interface{}) {
		switch msg["method"] {
		case "initialize":
			ss.reply(msg["id"], map[string]interface{}{"capabilities": map[string]interface{}{}})
		case "textDocument/hover":
			ss.reply(msg["id"], nil)
		case "textDocument/completion":
			ss.reply(msg["id"], map[string]interface{}{"items": []interface{}{
				map[string]interface{}{"label": "println"},
			}})
		}
	})

	sess, err := Open(context.Background(), "file:///a.go", "go", []byte("package main\n"), engineSide)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess, ss, serverSide
}

func TestInsertAdvancesCursorAndText(t *testing.T) {
	sess, _, _ := newSessionForTest(t)
	ctx := context.Background()

	if err := sess.MoveCursor(ctx, 0, 7); err != nil {
		t.Fatalf("move_cursor: %v", err)
	}
	if err := sess.Insert(ctx, []byte(" foo")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if string(sess.Buffer().Text()) != "package foo main\n" {
		t.Fatalf("got %q", sess.Buffer().Text())
	}
	if sess.Cursor() != (Cursor{Line: 0, Character: 11}) {
		t.Fatalf("cursor not advanced correctly: %+v", sess.Cursor())
	}
}

func TestInsertIntoReadonlyIsRejectedAndLspUntouched(t *testing.T) {
	sess, _, _ := newSessionForTest(t)
	ctx := context.Background()

	if err := sess.buf.MarkReadonly(0, 7); err != nil {
		t.Fatalf("mark_readonly: %v", err)
	}
	if err := sess.MoveCursor(ctx, 0, 3); err != nil {
		t.Fatalf("move_cursor: %v", err)
	}
	before := string(sess.Buffer().Text())
	err := sess.Insert(ctx, []byte("X"))
	if !errorsIsKind(err, errs.ReadOnlyViolation) {
		t.Fatalf("expected ReadOnlyViolation, got %v", err)
	}
	if string(sess.Buffer().Text()) != before {
		t.Fatalf("buffer mutated despite rejection")
	}
	if snap, ok := sess.ledger.Get(sess.uri); !ok || snap.Version != 0 || string(snap.Text) != before {
		t.Fatalf("LSP snapshot changed despite rejection: %+v ok=%v", snap, ok)
	}
}

func TestApplyWorkspaceEditReverseOrder(t *testing.T) {
	sess, _, _ := newSessionForTest(t)
	ctx := context.Background()

	edit := &lsprpc.WorkspaceEdit{Changes: map[string][]lsprpc.TextEdit{
		"file:///a.go": {
			{Range: lsprpc.Range{Start: lsprpc.Position{Line: 0, Character: 0}, End: lsprpc.Position{Line: 0, Character: 7}}, NewText: "bundle"},
			{Range: lsprpc.Range{Start: lsprpc.Position{Line: 0, Character: 8}, End: lsprpc.Position{Line: 0, Character: 12}}, NewText: "entry"},
		},
	}}
	if err := sess.ApplyWorkspaceEdit(ctx, edit); err != nil {
		t.Fatalf("apply_workspace_edit: %v", err)
	}
	if string(sess.Buffer().Text()) != "bundle entry\n" {
		t.Fatalf("got %q", sess.Buffer().Text())
	}
}

func TestRequestCompletionDefaultsToNoop(t *testing.T) {
	sess, _, _ := newSessionForTest(t)
	ctx := context.Background()

	stream, err := sess.RequestCompletion(ctx)
	if err != nil {
		t.Fatalf("request_completion: %v", err)
	}
	chunk, ok := stream.Next(ctx)
	if !ok || !chunk.Done {
		t.Fatalf("expected a single Done chunk from the noop source, got %+v ok=%v", chunk, ok)
	}
}

func TestRequestLSPCompletionBypassesBoundSource(t *testing.T) {
	sess, _, _ := newSessionForTest(t)
	ctx := context.Background()

	list, err := sess.RequestLSPCompletion(ctx)
	if err != nil {
		t.Fatalf("request_lsp_completion: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Label != "println" {
		t.Fatalf("unexpected completion list: %+v", list)
	}
}

func errorsIsKind(err error, kind errs.Kind) bool {
	var e *errs.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
