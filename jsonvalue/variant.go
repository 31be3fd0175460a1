package jsonvalue

import (
	"bytes"
	"encoding/json"
)

// PeekKind inspects the first non-whitespace byte of raw JSON and
// reports which shape it is, without fully decoding it. This is the
// "inspect the JSON token kind and dispatch accordingly" strategy
// spec.md §9 calls for when a result can be one of several shapes
// (e.g. textDocument/definition: Location | Location[] | null).
func PeekKind(raw json.RawMessage) Kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return KindNull
	}
	switch trimmed[0] {
	case '{':
		return KindObject
	case '[':
		return KindArray
	case '"':
		return KindString
	case 't', 'f':
		return KindBool
	case 'n':
		return KindNull
	default:
		return KindNumber
	}
}

// IsArray is a convenience wrapper around PeekKind for the common
// single-vs-array variant decode.
func IsArray(raw json.RawMessage) bool { return PeekKind(raw) == KindArray }
