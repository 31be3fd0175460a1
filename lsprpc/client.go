// Package lsprpc is the JSON-RPC transport and request/response
// correlation layer between EditorSession and a spawned language
// server. It replaces validation/lsp_client.go's hand-rolled
// goroutine/channel multiplexer with github.com/sourcegraph/jsonrpc2,
// layering the bounded pending-request table and per-request
// cancellation the engine's contract requires on top of it.
package lsprpc

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"editorcore/buffer"
	"editorcore/errs"
	"editorcore/jsonvalue"
)

// State is the server lifecycle, spec.md §6: a language server moves
// forward through these states and never backward, except that any
// state but Terminated can fall into Failed on a transport error.
type State int32

const (
	Uninit State = iota
	Spawned
	Ready
	ShuttingDown
	Terminated
	Failed
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case Spawned:
		return "spawned"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MaxPending is the largest number of requests this client will have
// in flight to one server at once; a call beyond that is rejected
// with errs.ResourceExhausted rather than queued unbounded.
const MaxPending = 100

// pendingCall tracks one in-flight request so it can be cancelled
// (via $/cancelRequest) independently of context expiry.
type pendingCall struct {
	id        jsonrpc2.ID
	method    string
	createdAt time.Time
	cancel    context.CancelFunc
	cancelled bool
	failed    bool
}

// Client drives one language server connection. It is safe for
// concurrent use by multiple EditorSession callers.
type Client struct {
	conn *jsonrpc2.Conn

	mu      sync.Mutex
	state   State
	pending map[jsonrpc2.ID]*pendingCall
	nextID  uint64

	encoding buffer.PositionEncoding

	diagnostics *DiagnosticsStore

	disconnected chan struct{}
	disconnectOnce sync.Once
}

// NewClient wires a Transport into a jsonrpc2.Conn using the
// Content-Length framed codec, and starts watching for disconnect.
// The server-initiated request/notification dispatch table (window/*,
// workspace/configuration, etc: see dispatch.go) is always installed;
// opts only adjust client settings such as the position encoding.
func NewClient(ctx context.Context, transport Transport, opts ...Option) *Client {
	c := &Client{
		state:        Spawned,
		pending:      make(map[jsonrpc2.ID]*pendingCall),
		encoding:     buffer.UTF16,
		diagnostics:  NewDiagnosticsStore(),
		disconnected: make(chan struct{}),
	}

	handler := newServerHandler(c)
	stream := jsonrpc2.NewBufferedStream(transport, objectCodec{})
	c.conn = jsonrpc2.NewConn(ctx, stream, handler)

	for _, opt := range opts {
		opt(c)
	}

	go func() {
		<-c.conn.DisconnectNotify()
		c.markFailed()
	}()

	return c
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithPositionEncoding overrides the default UTF-16 assumption before
// Initialize negotiates the server's actual preference.
func WithPositionEncoding(enc buffer.PositionEncoding) Option {
	return func(c *Client) { c.encoding = enc }
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) markFailed() {
	c.mu.Lock()
	if c.state == Terminated {
		c.mu.Unlock()
		return
	}
	c.state = Failed
	stale := make([]*pendingCall, 0, len(c.pending))
	for _, p := range c.pending {
		p.failed = true
		stale = append(stale, p)
	}
	c.pending = make(map[jsonrpc2.ID]*pendingCall)
	c.mu.Unlock()

	for _, p := range stale {
		p.cancel()
	}
	c.disconnectOnce.Do(func() { close(c.disconnected) })
}

// Done reports a channel closed once the connection has failed.
func (c *Client) Done() <-chan struct{} { return c.disconnected }

func (c *Client) PositionEncoding() buffer.PositionEncoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoding
}

// Diagnostics returns the store accumulating published diagnostics.
func (c *Client) Diagnostics() *DiagnosticsStore { return c.diagnostics }

// call issues a request, enforcing MaxPending and registering a
// pendingCall so Cancel can later ask the server to abandon it. The
// entry's cancelled/failed flags are checked before looking at
// conn.Call's own result: a request this client cancelled, or one
// orphaned by a transport failure, reports Cancelled/Transport even if
// a real response happened to decode successfully in the meantime.
func (c *Client) call(ctx context.Context, method string, params jsonvalue.Value, result interface{}) error {
	if st := c.State(); st != Ready && method != "initialize" {
		return errs.New(errs.ServerNotReady, "cannot call %s: server is %s", method, st)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if len(c.pending) >= MaxPending {
		c.mu.Unlock()
		cancel()
		return errs.New(errs.ResourceExhausted, "pending request table full (%d)", MaxPending)
	}
	c.nextID++
	id := jsonrpc2.ID{Num: c.nextID}
	entry := &pendingCall{id: id, method: method, createdAt: time.Now(), cancel: cancel}
	c.pending[id] = entry
	c.mu.Unlock()

	err := c.conn.Call(callCtx, method, params, result, jsonrpc2.PickID(id))

	c.mu.Lock()
	delete(c.pending, id)
	wasCancelled := entry.cancelled
	wasFailed := entry.failed
	c.mu.Unlock()

	if wasCancelled {
		return errs.New(errs.Cancelled, "%s cancelled", method)
	}
	if wasFailed {
		if err == nil {
			return errs.New(errs.Transport, "%s: connection failed", method)
		}
		return errs.Wrap(errs.Transport, err, "%s: connection failed", method)
	}
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(*jsonrpc2.Error); ok {
		return errs.ServerErr(int(rpcErr.Code), rpcErr.Message)
	}
	if callCtx.Err() != nil {
		return errs.Wrap(errs.Cancelled, callCtx.Err(), "%s", method)
	}
	return errs.Wrap(errs.Transport, err, "%s", method)
}

// notify sends a one-way notification (no response expected).
func (c *Client) notify(ctx context.Context, method string, params jsonvalue.Value) error {
	if err := c.conn.Notify(ctx, method, params); err != nil {
		return errs.Wrap(errs.Transport, err, "%s", method)
	}
	return nil
}

// Cancel asks the server to abandon a request previously issued
// through this client, via the standard $/cancelRequest notification.
// Cancelling a request that already completed, one already cancelled,
// or one unknown to this client, is a no-op: cancellation is
// idempotent by contract.
func (c *Client) Cancel(ctx context.Context, id jsonrpc2.ID) error {
	c.mu.Lock()
	entry, ok := c.pending[id]
	already := ok && entry.cancelled
	if ok {
		entry.cancelled = true
	}
	c.mu.Unlock()
	if !ok || already {
		return nil
	}
	return c.notify(ctx, "$/cancelRequest", jsonvalue.Object().Set("id", idToValue(id)))
}

func idToValue(id jsonrpc2.ID) jsonvalue.Value {
	if id.IsString {
		return jsonvalue.String(id.Str)
	}
	return jsonvalue.Number(float64(id.Num))
}

// Close requests a graceful shutdown/exit sequence, then closes the
// underlying connection. Per spec.md §6, Ready -> ShuttingDown ->
// Terminated; a Client already Failed just closes the transport.
func (c *Client) Close(ctx context.Context) error {
	if c.State() == Ready {
		_ = c.call(ctx, "shutdown", jsonvalue.Null(), nil)
		c.setState(ShuttingDown)
		_ = c.notify(ctx, "exit", jsonvalue.Null())
	}
	c.setState(Terminated)
	err := c.conn.Close()
	if err != nil {
		return errs.Wrap(errs.Transport, err, "close connection")
	}
	return nil
}
