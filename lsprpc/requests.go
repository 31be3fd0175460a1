package lsprpc

import (
	"context"
	"encoding/json"

	"editorcore/buffer"
	"editorcore/errs"
	"editorcore/jsonvalue"
)

// InitializeResult is the decoded subset of the initialize response
// this engine cares about: the server's raw capabilities object. The
// position encoding the server settled on is not returned here; it is
// applied to the Client (see Client.PositionEncoding).
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
}

// Initialize performs the initialize/initialized handshake. capabilities
// lets the caller advertise whatever client capabilities it supports;
// this engine always advertises general.positionEncodings = ["utf-8",
// "utf-16"] and adopts the capabilities.positionEncoding the server's
// result names: UTF8Bytes for "utf-8", UTF16 for any other value. When
// the server names none, the client keeps its current encoding.
func (c *Client) Initialize(ctx context.Context, rootURI string, processID *int) (*InitializeResult, error) {
	if c.State() != Spawned {
		return nil, errs.New(errs.ServerNotReady, "Initialize called in state %s", c.State())
	}

	caps := jsonvalue.Object().
		Set("workspace", jsonvalue.Object().Set("applyEdit", jsonvalue.Bool(true))).
		Set("textDocument", jsonvalue.Object().
			Set("synchronization", jsonvalue.Object().
				Set("didSave", jsonvalue.Bool(true))).
			Set("completion", jsonvalue.Object()).
			Set("hover", jsonvalue.Object()).
			Set("definition", jsonvalue.Object()).
			Set("references", jsonvalue.Object()).
			Set("rename", jsonvalue.Object()).
			Set("formatting", jsonvalue.Object()).
			Set("rangeFormatting", jsonvalue.Object()).
			Set("onTypeFormatting", jsonvalue.Object()).
			Set("signatureHelp", jsonvalue.Object()).
			Set("codeAction", jsonvalue.Object()).
			Set("documentSymbol", jsonvalue.Object())).
		Set("general", jsonvalue.Object().
			Set("positionEncodings", jsonvalue.Array(jsonvalue.String("utf-8"), jsonvalue.String("utf-16"))))

	params := jsonvalue.Object().
		Set("processId", processIDValue(processID)).
		Set("rootUri", jsonvalue.String(rootURI)).
		Set("capabilities", caps)

	var raw json.RawMessage
	if err := c.call(ctx, "initialize", params, &raw); err != nil {
		return nil, err
	}

	result, err := jsonvalue.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.Decode, err, "decode initialize result")
	}
	var decoded InitializeResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errs.Wrap(errs.Decode, err, "decode initialize result")
	}
	if general, ok := result.Lookup("capabilities"); ok {
		if td, ok := general.Lookup("positionEncoding"); ok {
			c.mu.Lock()
			c.encoding = encodingFromString(td.Str())
			c.mu.Unlock()
		}
	}

	if err := c.notify(ctx, "initialized", jsonvalue.Object()); err != nil {
		return nil, err
	}
	c.setState(Ready)

	return &decoded, nil
}

func processIDValue(pid *int) jsonvalue.Value {
	if pid == nil {
		return jsonvalue.Null()
	}
	return jsonvalue.Int(*pid)
}

func encodingFromString(s string) buffer.PositionEncoding {
	if s == "utf-8" {
		return buffer.UTF8Bytes
	}
	return buffer.UTF16
}

// textDocumentItem identifies a document version for did* notifications.
type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId,omitempty"`
	Version    int    `json:"version"`
	Text       string `json:"text,omitempty"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     Position                `json:"position"`
}

// DidOpen announces a newly opened document with its full text.
func (c *Client) DidOpen(ctx context.Context, uri, languageID string, version int, text string) error {
	params := struct {
		TextDocument textDocumentItem `json:"textDocument"`
	}{textDocumentItem{URI: uri, LanguageID: languageID, Version: version, Text: text}}
	return c.notifyTyped(ctx, "textDocument/didOpen", params)
}

// ContentChange is one element of a didChange notification; Range nil
// means a full-document replacement.
type ContentChange struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

func (c *Client) DidChange(ctx context.Context, uri string, version int, changes []ContentChange) error {
	params := struct {
		TextDocument   versionedTextDocumentIdentifier `json:"textDocument"`
		ContentChanges []ContentChange                 `json:"contentChanges"`
	}{versionedTextDocumentIdentifier{URI: uri, Version: version}, changes}
	return c.notifyTyped(ctx, "textDocument/didChange", params)
}

func (c *Client) DidSave(ctx context.Context, uri string, text *string) error {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Text         *string                `json:"text,omitempty"`
	}{textDocumentIdentifier{URI: uri}, text}
	return c.notifyTyped(ctx, "textDocument/didSave", params)
}

func (c *Client) DidClose(ctx context.Context, uri string) error {
	c.diagnostics.Clear(uri)
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
	}{textDocumentIdentifier{URI: uri}}
	return c.notifyTyped(ctx, "textDocument/didClose", params)
}

func (c *Client) WillSave(ctx context.Context, uri string, reason int) error {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Reason       int                    `json:"reason"`
	}{textDocumentIdentifier{URI: uri}, reason}
	return c.notifyTyped(ctx, "textDocument/willSave", params)
}

func (c *Client) WillSaveWaitUntil(ctx context.Context, uri string, reason int) ([]TextEdit, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Reason       int                    `json:"reason"`
	}{textDocumentIdentifier{URI: uri}, reason}
	var edits []TextEdit
	err := c.callTyped(ctx, "textDocument/willSaveWaitUntil", params, &edits)
	return edits, err
}

func (c *Client) Completion(ctx context.Context, uri string, pos Position) (*CompletionList, error) {
	params := textDocumentPositionParams{textDocumentIdentifier{uri}, pos}
	var raw json.RawMessage
	if err := c.callTyped(ctx, "textDocument/completion", params, &raw); err != nil {
		return nil, err
	}
	return decodeCompletionResult(raw)
}

// decodeCompletionResult normalizes the three shapes
// textDocument/completion may return: null, CompletionItem[], or
// CompletionList.
func decodeCompletionResult(raw json.RawMessage) (*CompletionList, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return &CompletionList{}, nil
	}
	if jsonvalue.IsArray(raw) {
		var items []CompletionItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errs.Wrap(errs.Decode, err, "decode completion item array")
		}
		return &CompletionList{Items: items}, nil
	}
	var list CompletionList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errs.Wrap(errs.Decode, err, "decode completion list")
	}
	return &list, nil
}

func (c *Client) CompletionItemResolve(ctx context.Context, item CompletionItem) (*CompletionItem, error) {
	var resolved CompletionItem
	err := c.callTyped(ctx, "completionItem/resolve", item, &resolved)
	return &resolved, err
}

func (c *Client) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	params := textDocumentPositionParams{textDocumentIdentifier{uri}, pos}
	var result *Hover
	err := c.callTyped(ctx, "textDocument/hover", params, &result)
	return result, err
}

// Definition returns the decoded Location|Location[]|null result,
// normalized to a slice (nil means "no definition found").
func (c *Client) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	params := textDocumentPositionParams{textDocumentIdentifier{uri}, pos}
	var raw json.RawMessage
	if err := c.callTyped(ctx, "textDocument/definition", params, &raw); err != nil {
		return nil, err
	}
	return decodeLocations(raw)
}

func decodeLocations(raw json.RawMessage) ([]Location, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if jsonvalue.IsArray(raw) {
		var locs []Location
		if err := json.Unmarshal(raw, &locs); err != nil {
			return nil, errs.Wrap(errs.Decode, err, "decode location array")
		}
		return locs, nil
	}
	var single Location
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, errs.Wrap(errs.Decode, err, "decode single location")
	}
	return []Location{single}, nil
}

func (c *Client) References(ctx context.Context, uri string, pos Position, includeDeclaration bool) ([]Location, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Position     Position               `json:"position"`
		Context      struct {
			IncludeDeclaration bool `json:"includeDeclaration"`
		} `json:"context"`
	}{TextDocument: textDocumentIdentifier{uri}, Position: pos}
	params.Context.IncludeDeclaration = includeDeclaration
	var locs []Location
	err := c.callTyped(ctx, "textDocument/references", params, &locs)
	return locs, err
}

func (c *Client) Rename(ctx context.Context, uri string, pos Position, newName string) (*WorkspaceEdit, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Position     Position               `json:"position"`
		NewName      string                 `json:"newName"`
	}{textDocumentIdentifier{uri}, pos, newName}
	var edit WorkspaceEdit
	err := c.callTyped(ctx, "textDocument/rename", params, &edit)
	return &edit, err
}

type formattingOptions struct {
	TabSize      int  `json:"tabSize"`
	InsertSpaces bool `json:"insertSpaces"`
}

func (c *Client) Formatting(ctx context.Context, uri string, tabSize int, insertSpaces bool) ([]TextEdit, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Options      formattingOptions      `json:"options"`
	}{textDocumentIdentifier{uri}, formattingOptions{tabSize, insertSpaces}}
	var edits []TextEdit
	err := c.callTyped(ctx, "textDocument/formatting", params, &edits)
	return edits, err
}

func (c *Client) RangeFormatting(ctx context.Context, uri string, rng Range, tabSize int, insertSpaces bool) ([]TextEdit, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Range        Range                  `json:"range"`
		Options      formattingOptions      `json:"options"`
	}{textDocumentIdentifier{uri}, rng, formattingOptions{tabSize, insertSpaces}}
	var edits []TextEdit
	err := c.callTyped(ctx, "textDocument/rangeFormatting", params, &edits)
	return edits, err
}

func (c *Client) OnTypeFormatting(ctx context.Context, uri string, pos Position, ch string, tabSize int, insertSpaces bool) ([]TextEdit, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Position     Position               `json:"position"`
		Ch           string                 `json:"ch"`
		Options      formattingOptions      `json:"options"`
	}{textDocumentIdentifier{uri}, pos, ch, formattingOptions{tabSize, insertSpaces}}
	var edits []TextEdit
	err := c.callTyped(ctx, "textDocument/onTypeFormatting", params, &edits)
	return edits, err
}

func (c *Client) SignatureHelp(ctx context.Context, uri string, pos Position) (*SignatureHelp, error) {
	params := textDocumentPositionParams{textDocumentIdentifier{uri}, pos}
	var result SignatureHelp
	err := c.callTyped(ctx, "textDocument/signatureHelp", params, &result)
	return &result, err
}

func (c *Client) CodeAction(ctx context.Context, uri string, rng Range, diagnostics []Diagnostic) ([]CodeAction, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
		Range        Range                  `json:"range"`
		Context      struct {
			Diagnostics []Diagnostic `json:"diagnostics"`
		} `json:"context"`
	}{TextDocument: textDocumentIdentifier{uri}, Range: rng}
	params.Context.Diagnostics = diagnostics
	var actions []CodeAction
	err := c.callTyped(ctx, "textDocument/codeAction", params, &actions)
	return actions, err
}

func (c *Client) DocumentSymbol(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	params := struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
	}{textDocumentIdentifier{uri}}
	var symbols []DocumentSymbol
	err := c.callTyped(ctx, "textDocument/documentSymbol", params, &symbols)
	return symbols, err
}

func (c *Client) WorkspaceSymbol(ctx context.Context, query string) ([]DocumentSymbol, error) {
	params := struct {
		Query string `json:"query"`
	}{query}
	var symbols []DocumentSymbol
	err := c.callTyped(ctx, "workspace/symbol", params, &symbols)
	return symbols, err
}

// callTyped and notifyTyped bridge the typed request surface above to
// the jsonvalue-based call/notify core: they re-encode the Go struct
// through jsonvalue.Parse so every outgoing message, typed or built by
// hand, passes through the same single-pass encoder.
func (c *Client) callTyped(ctx context.Context, method string, params interface{}, result interface{}) error {
	v, err := toValue(params)
	if err != nil {
		return err
	}
	return c.call(ctx, method, v, result)
}

func (c *Client) notifyTyped(ctx context.Context, method string, params interface{}) error {
	v, err := toValue(params)
	if err != nil {
		return err
	}
	return c.notify(ctx, method, v)
}

func toValue(params interface{}) (jsonvalue.Value, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return jsonvalue.Value{}, errs.Wrap(errs.Decode, err, "encode params")
	}
	v, err := jsonvalue.Parse(data)
	if err != nil {
		return jsonvalue.Value{}, errs.Wrap(errs.Decode, err, "reparse params")
	}
	return v, nil
}
