package lsprpc

import (
	"io"
	"net"
)

// Transport is the duplex byte stream to a language server: typically
// a spawned server's stdin/stdout pair. spec.md §6 keeps the process
// launcher out of scope ("the CLI layer supplies the stream; the
// engine does not interpret the command line"), so Transport is
// supplied fully formed by the caller — Client never calls
// exec.Command, unlike the teacher's validation.LSPServer.startServer,
// which spawns the process itself.
type Transport interface {
	io.Writer
	io.Reader
	io.Closer
}

// rwc adapts a reader half and a writer half (e.g. a child process's
// Stdout/Stdin pipes) into a single Transport.
type rwc struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (c *rwc) Close() error {
	var firstErr error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewProcessTransport builds a Transport from a caller-provided
// read/write pipe pair (e.g. a spawned language server's stdout and
// stdin). Spawning and supervising the process itself is the CLI
// layer's job, per spec.md §1/§6.
func NewProcessTransport(stdout io.ReadCloser, stdin io.WriteCloser) Transport {
	return &rwc{Reader: stdout, Writer: stdin, closers: []io.Closer{stdout, stdin}}
}

// NewLoopbackTransport returns two connected in-memory Transports,
// grounded on validation/lsp_test.go's convention of testing without
// spawning a real external process: one side stands in for the
// engine, the other for a scripted fake language server.
func NewLoopbackTransport() (engine Transport, server Transport) {
	c1, c2 := net.Pipe()
	return c1, c2
}
