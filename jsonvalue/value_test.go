package jsonvalue

import (
	"encoding/json"
	"testing"
)

func TestBuilderRoundTrip(t *testing.T) {
	v := Object().
		Set("jsonrpc", String("2.0")).
		Set("id", Int(1)).
		Set("method", String("initialize")).
		Set("params", Object().
			Set("processId", Int(42)).
			Set("rootUri", String("file:///tmp/project")).
			Set("capabilities", Object()))

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	method, ok := parsed.Lookup("method")
	if !ok || method.Str() != "initialize" {
		t.Fatalf("expected method=initialize, got %+v ok=%v", method, ok)
	}

	params, ok := parsed.Lookup("params")
	if !ok {
		t.Fatalf("missing params")
	}
	rootURI, ok := params.Lookup("rootUri")
	if !ok || rootURI.Str() != "file:///tmp/project" {
		t.Fatalf("expected rootUri roundtrip, got %+v", rootURI)
	}
}

func TestSetDoesNotMutateReceiver(t *testing.T) {
	base := Object().Set("a", Int(1))
	extended := base.Set("b", Int(2))

	if _, ok := base.Lookup("b"); ok {
		t.Fatalf("Set mutated the receiver in place")
	}
	if _, ok := extended.Lookup("a"); !ok {
		t.Fatalf("extended value lost prior members")
	}
}

func TestPeekKindDistinguishesLocationVariants(t *testing.T) {
	single := json.RawMessage(`{"uri":"file:///a","range":{}}`)
	list := json.RawMessage(`[{"uri":"file:///a","range":{}}]`)
	none := json.RawMessage(`null`)

	if PeekKind(single) != KindObject {
		t.Fatalf("expected object for single location")
	}
	if !IsArray(list) {
		t.Fatalf("expected array for location list")
	}
	if PeekKind(none) != KindNull {
		t.Fatalf("expected null")
	}
}
