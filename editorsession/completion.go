package editorsession

import (
	"context"
	"sync"

	"editorcore/buffer"
	"editorcore/errs"
	"editorcore/lsprpc"
)

// Chunk is one piece of a streamed completion result, grounded on
// llm.StreamChunk: content text, a terminal error, or the Done marker
// — but delivered through a cold, pull-based CompletionStream instead
// of a caller-supplied channel, per spec.md §9's re-architecture note
// on callback-based streaming.
type Chunk struct {
	Content string
	Err     error
	Done    bool
}

// CompletionStream is driven by the caller: Next blocks until the next
// chunk is available (or the stream ends), and Cancel stops production
// without requiring the caller to drain the stream first. No global
// state backs a stream; each one owns its own goroutine and channel.
type CompletionStream interface {
	Next(ctx context.Context) (Chunk, bool)
	Cancel()
}

// CompletionSource produces completions for the text currently in the
// session and the cursor's byte offset within it. Implementations:
// an LSP-backed source, an external AI provider, and a noop source —
// spec.md §6's Transport-like variant set for completions.
type CompletionSource interface {
	Complete(ctx context.Context, text []byte, cursorOffset int) (CompletionStream, error)
}

// channelStream adapts a producer goroutine writing to an internal
// channel into the pull-based CompletionStream contract. It is the
// shared plumbing both the LSP-backed and external-provider sources
// use so a stream's lifetime is never tied to process-wide state.
type channelStream struct {
	chunks chan Chunk
	cancel context.CancelFunc
	once   sync.Once
}

func newChannelStream(ctx context.Context, buffer int, produce func(ctx context.Context, out chan<- Chunk)) *channelStream {
	ctx, cancel := context.WithCancel(ctx)
	cs := &channelStream{chunks: make(chan Chunk, buffer), cancel: cancel}
	go func() {
		defer close(cs.chunks)
		produce(ctx, cs.chunks)
	}()
	return cs
}

func (cs *channelStream) Next(ctx context.Context) (Chunk, bool) {
	select {
	case c, ok := <-cs.chunks:
		return c, ok
	case <-ctx.Done():
		return Chunk{Err: ctx.Err(), Done: true}, false
	}
}

func (cs *channelStream) Cancel() {
	cs.once.Do(cs.cancel)
}

// noopSource never produces completions; it is the default when no
// provider is bound, so request_completion has a defined result
// instead of needing a nil check at every call site.
type noopSource struct{}

// NoopCompletionSource returns a CompletionSource that immediately
// yields a single Done chunk.
func NoopCompletionSource() CompletionSource { return noopSource{} }

func (noopSource) Complete(ctx context.Context, _ []byte, _ int) (CompletionStream, error) {
	cs := newChannelStream(ctx, 1, func(ctx context.Context, out chan<- Chunk) {
		out <- Chunk{Done: true}
	})
	return cs, nil
}

// lspCompletionSource dispatches to the bound LspClient's
// textDocument/completion and replays its (non-streaming) result as a
// one-chunk-per-item stream, so callers that already consume a
// CompletionStream don't need a separate code path for the LSP case.
type lspCompletionSource struct {
	client *lsprpc.Client
	uri    string
}

// NewLSPCompletionSource adapts an lsprpc.Client into a CompletionSource.
func NewLSPCompletionSource(client *lsprpc.Client, uri string) CompletionSource {
	return &lspCompletionSource{client: client, uri: uri}
}

func (s *lspCompletionSource) Complete(ctx context.Context, text []byte, cursorOffset int) (CompletionStream, error) {
	pos, err := positionForOffsetViaClient(s.client, text, cursorOffset)
	if err != nil {
		return nil, err
	}
	cs := newChannelStream(ctx, 8, func(ctx context.Context, out chan<- Chunk) {
		list, err := s.client.Completion(ctx, s.uri, pos)
		if err != nil {
			out <- Chunk{Err: err, Done: true}
			return
		}
		for _, item := range list.Items {
			select {
			case out <- Chunk{Content: completionInsertText(item)}:
			case <-ctx.Done():
				return
			}
		}
		out <- Chunk{Done: true}
	})
	return cs, nil
}

func completionInsertText(item lsprpc.CompletionItem) string {
	if item.TextEdit != nil {
		return item.TextEdit.NewText
	}
	if item.InsertText != "" {
		return item.InsertText
	}
	return item.Label
}

// positionForOffsetViaClient converts a byte offset to an LSP position
// in whichever encoding the server negotiated, using the same line
// index routine the snapshot ledger uses so the two never disagree.
func positionForOffsetViaClient(client *lsprpc.Client, text []byte, offset int) (lsprpc.Position, error) {
	idx := buffer.NewLineIndex(text)
	line, char, err := idx.PositionForOffset(text, offset, client.PositionEncoding())
	if err != nil {
		return lsprpc.Position{}, err
	}
	return lsprpc.Position{Line: line, Character: char}, nil
}

// ExternalStreamer is the minimal surface this engine needs from an
// external completion provider: a chat-style adapter that streams
// chunks onto a channel, matching llm.LLMAdapter.Stream's shape.
type ExternalStreamer interface {
	Stream(ctx context.Context, prompt string, chunks chan<- ExternalChunk) error
}

// ExternalChunk mirrors llm.StreamChunk so adapting llm.LLMAdapter
// implementations (openai, claude, ollama) needs no field renaming.
type ExternalChunk struct {
	Content string
	Error   error
	Done    bool
}

// externalCompletionSource adapts an ExternalStreamer (e.g. an
// llm.LLMAdapter wrapped to this interface) into a CompletionSource.
// The session holds the provider only through this interface and the
// provider never references the session back, per spec.md §9's note
// on breaking the EditorSession<->provider cycle.
type externalCompletionSource struct {
	streamer  ExternalStreamer
	promptFor func(text []byte, cursorOffset int) string
}

func NewExternalCompletionSource(streamer ExternalStreamer, promptFor func(text []byte, cursorOffset int) string) CompletionSource {
	return &externalCompletionSource{streamer: streamer, promptFor: promptFor}
}

func (s *externalCompletionSource) Complete(ctx context.Context, text []byte, cursorOffset int) (CompletionStream, error) {
	prompt := s.promptFor(text, cursorOffset)
	cs := newChannelStream(ctx, 32, func(ctx context.Context, out chan<- Chunk) {
		upstream := make(chan ExternalChunk, 32)
		done := make(chan error, 1)
		go func() { done <- s.streamer.Stream(ctx, prompt, upstream) }()

		for {
			select {
			case c, ok := <-upstream:
				if !ok {
					continue
				}
				out <- Chunk{Content: c.Content, Err: c.Error, Done: c.Done}
				if c.Done || c.Error != nil {
					return
				}
			case err := <-done:
				if err != nil {
					out <- Chunk{Err: errs.Wrap(errs.Transport, err, "external completion stream"), Done: true}
				}
				return
			case <-ctx.Done():
				return
			}
		}
	})
	return cs, nil
}
