package lsprpc

import "encoding/json"

// Position, Range, Location and the diagnostic shapes below mirror the
// LSP wire types validation/lsp_client.go already decoded; they are
// reused nearly verbatim since the wire format itself is not something
// this rework changes. What changes is how they are produced and
// consumed: params are either built with jsonvalue.Object/Set
// (Initialize) or marshalled from a Go struct and re-parsed into a
// jsonvalue.Value (callTyped/notifyTyped), so every outgoing message
// passes through the same encoder, and results that can take more than
// one shape are decoded with jsonvalue.PeekKind rather than a
// best-effort struct tag guess.

// Position is a zero-based line/character pair. The character unit
// depends on the encoding reported by Client.PositionEncoding (UTF-16
// code units unless the server's initialize result selects utf-8 or
// WithPositionEncoding set another default).
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type Diagnostic struct {
	Range    Range  `json:"range"`
	Severity int    `json:"severity,omitempty"`
	Code     any    `json:"code,omitempty"`
	Source   string `json:"source,omitempty"`
	Message  string `json:"message"`
}

// PublishDiagnosticsParams is the payload of a
// textDocument/publishDiagnostics notification.
type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int         `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// TextEdit is a single replacement within one document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// WorkspaceEdit is the result of rename/codeAction/etc: a set of
// document URIs each with their own ordered list of edits. LSP also
// allows a `documentChanges` form with embedded versions; this engine
// only needs the simpler `changes` map, since EditorSession applies
// edits against its own version-tracked snapshots rather than trusting
// embedded ones (spec.md §7).
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes,omitempty"`
}

// CompletionItem is one entry of a completion list.
type CompletionItem struct {
	Label            string          `json:"label"`
	Kind             int             `json:"kind,omitempty"`
	Detail           string          `json:"detail,omitempty"`
	Documentation    json.RawMessage `json:"documentation,omitempty"`
	InsertText       string          `json:"insertText,omitempty"`
	TextEdit         *TextEdit       `json:"textEdit,omitempty"`
	SortText         string          `json:"sortText,omitempty"`
	FilterText       string          `json:"filterText,omitempty"`
	AdditionalData   json.RawMessage `json:"data,omitempty"`
}

// CompletionList is the array-or-list result shape of
// textDocument/completion; decodeCompletionResult in requests.go
// normalizes the null, item-array and list shapes the server may send.
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// Hover is the result of textDocument/hover.
type Hover struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// SignatureHelp is the result of textDocument/signatureHelp.
type SignatureHelp struct {
	Signatures      []Signature `json:"signatures"`
	ActiveSignature int         `json:"activeSignature"`
	ActiveParameter int         `json:"activeParameter"`
}

type Signature struct {
	Label         string          `json:"label"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
	Parameters    []ParameterInfo `json:"parameters,omitempty"`
}

type ParameterInfo struct {
	Label string `json:"label"`
}

// CodeAction is one entry of a textDocument/codeAction result.
type CodeAction struct {
	Title       string         `json:"title"`
	Kind        string         `json:"kind,omitempty"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	Edit        *WorkspaceEdit `json:"edit,omitempty"`
}

// DocumentSymbol is one entry of a textDocument/documentSymbol result
// (the hierarchical variant; the flat SymbolInformation variant is
// decoded into the same struct with Children left nil).
type DocumentSymbol struct {
	Name     string           `json:"name"`
	Kind     int              `json:"kind"`
	Range    Range            `json:"range"`
	Selection Range           `json:"selectionRange"`
	Children []DocumentSymbol `json:"children,omitempty"`

	// Set only when decoded from the flat SymbolInformation shape.
	ContainerName string    `json:"containerName,omitempty"`
	Location      *Location `json:"location,omitempty"`
}
