package stdio

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
)

// errWriterClosed is returned once the mux stopped accepting lines. Callers
// treat it as a discarded write rather than a failure.
var errWriterClosed = errors.New("stdio: writer closed")

// writeMux serializes outbound JSON-RPC lines and flushes after each one so
// the peer never waits on a buffered message.
type writeMux struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

func newWriteMux(w io.Writer) *writeMux {
	return &writeMux{w: bufio.NewWriter(w)}
}

// WriteMessage implements engine.MessageWriter.
func (m *writeMux) WriteMessage(_ context.Context, v any) error {
	return m.writeJSONRPC(v)
}

func (m *writeMux) writeJSONRPC(v any) error {
	b, err := jsonrpc.Encode(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errWriterClosed
	}
	if _, err := m.w.Write(b); err != nil {
		m.closed = true
		return err
	}
	if err := m.w.Flush(); err != nil {
		m.closed = true
		return err
	}
	return nil
}

// close stops accepting lines. It is idempotent.
func (m *writeMux) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
