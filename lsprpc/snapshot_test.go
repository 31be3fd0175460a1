package lsprpc

import (
	"context"
	"encoding/json"
	"testing"
)

// TestOpenAndSingleInsertMatchesSeedScenario reproduces spec §8's seed
// scenario 1 verbatim: did_open at version 0, one incremental
// did_change, version 1, text matches exactly.
func TestOpenAndSingleInsertMatchesSeedScenario(t *testing.T) {
	engineSide, serverSide := NewLoopbackTransport()
	ctx := context.Background()
	client := NewClient(ctx, engineSide)
	fake := newFakeServer(serverSide)

	initDone := make(chan error, 1)
	go func() {
		_, err := client.Initialize(ctx, "file:///a", nil)
		initDone <- err
	}()
	initReq := fake.readFrame(t)
	fake.writeResult(t, initReq["id"], map[string]interface{}{"capabilities": map[string]interface{}{}})
	initNotif := fake.readFrame(t)
	if initNotif["method"] != "initialized" {
		t.Fatalf("expected initialized, got %+v", initNotif)
	}
	if err := <-initDone; err != nil {
		t.Fatalf("initialize: %v", err)
	}

	ledger := NewSnapshotLedger()
	openDone := make(chan error, 1)
	go func() { openDone <- client.OpenDocument(ctx, ledger, "file:///a", "js", []byte("const x = 1;")) }()

	openFrame := fake.readFrame(t)
	if openFrame["method"] != "textDocument/didOpen" {
		t.Fatalf("expected didOpen, got %+v", openFrame)
	}
	params, _ := openFrame["params"].(map[string]interface{})
	td, _ := params["textDocument"].(map[string]interface{})
	if v, ok := td["version"].(json.Number); !ok || v.String() != "0" {
		t.Fatalf("expected version 0 in didOpen frame, got %+v", td["version"])
	}
	if err := <-openDone; err != nil {
		t.Fatalf("OpenDocument: %v", err)
	}

	snap, ok := ledger.Get("file:///a")
	if !ok || snap.Version != 0 || string(snap.Text) != "const x = 1;" {
		t.Fatalf("unexpected snapshot after open: %+v ok=%v", snap, ok)
	}

	changeDone := make(chan error, 1)
	go func() {
		changeDone <- client.ApplyAndSync(ctx, ledger, "file:///a", []Edit{{Start: 10, End: 11, NewText: []byte("2")}})
	}()

	changeFrame := fake.readFrame(t)
	if changeFrame["method"] != "textDocument/didChange" {
		t.Fatalf("expected didChange, got %+v", changeFrame)
	}
	cparams, _ := changeFrame["params"].(map[string]interface{})
	ctd, _ := cparams["textDocument"].(map[string]interface{})
	if v, ok := ctd["version"].(json.Number); !ok || v.String() != "1" {
		t.Fatalf("expected version 1 in didChange frame, got %+v", ctd["version"])
	}
	if err := <-changeDone; err != nil {
		t.Fatalf("ApplyAndSync: %v", err)
	}

	snap, ok = ledger.Get("file:///a")
	if !ok || snap.Version != 1 || string(snap.Text) != "const x = 2;" {
		t.Fatalf("unexpected snapshot after change: %+v ok=%v", snap, ok)
	}
}

// TestDidCloseThenDidOpenResetsVersion covers the round-trip property
// from spec §8: "did_close followed by did_open on the same URI
// resets the version to 0."
func TestDidCloseThenDidOpenResetsVersion(t *testing.T) {
	engineSide, serverSide := NewLoopbackTransport()
	ctx := context.Background()
	client := NewClient(ctx, engineSide)
	fake := newFakeServer(serverSide)

	go func() { _, _ = client.Initialize(ctx, "file:///a", nil) }()
	initReq := fake.readFrame(t)
	fake.writeResult(t, initReq["id"], map[string]interface{}{"capabilities": map[string]interface{}{}})
	_ = fake.readFrame(t) // initialized notification
	waitReady(t, client, 2_000_000_000)

	ledger := NewSnapshotLedger()
	go func() { _ = client.OpenDocument(ctx, ledger, "file:///a", "js", []byte("a")) }()
	_ = fake.readFrame(t) // didOpen

	go func() {
		_ = client.ApplyAndSync(ctx, ledger, "file:///a", []Edit{{Start: 1, End: 1, NewText: []byte("b")}})
	}()
	_ = fake.readFrame(t) // didChange

	snap, _ := ledger.Get("file:///a")
	if snap.Version != 1 {
		t.Fatalf("expected version 1 before close, got %d", snap.Version)
	}

	go func() { _ = client.CloseDocument(ctx, ledger, "file:///a") }()
	_ = fake.readFrame(t) // didClose

	if _, ok := ledger.Get("file:///a"); ok {
		t.Fatalf("expected snapshot removed after close")
	}

	go func() { _ = client.OpenDocument(ctx, ledger, "file:///a", "js", []byte("fresh")) }()
	_ = fake.readFrame(t) // didOpen again

	snap, ok := ledger.Get("file:///a")
	if !ok || snap.Version != 0 {
		t.Fatalf("expected version reset to 0 on reopen, got %+v ok=%v", snap, ok)
	}
}
