package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/engine"
	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight tool calls
// once the input stream ends.
const DefaultShutdownTimeout = 5 * time.Second

// ErrServed is returned when Serve is called more than once on a Handler.
var ErrServed = errors.New("stdio: Serve already called")

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout. The peer is identified through a UserProvider, which
// defaults to the current OS user.
//
// The handler is transport-only; it delegates all MCP semantics to an
// engine built around the provided mcpservice.Server.
type Handler struct {
	srv *mcpservice.Server

	r            io.Reader
	w            io.Writer
	l            *slog.Logger
	userProvider UserProvider

	maxLineBytes    int
	shutdownTimeout time.Duration

	served atomic.Bool
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(srv *mcpservice.Server, opts ...Option) *Handler {
	if srv == nil {
		srv = mcpservice.NewServer()
	}
	h := &Handler{
		srv:             srv,
		r:               os.Stdin,
		w:               os.Stdout,
		l:               slog.Default(),
		userProvider:    OSUserProvider{},
		maxLineBytes:    DefaultMaxLineBytes,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// conn is the state of one Serve call.
type conn struct {
	h     *Handler
	sess  *sessions.StateMachine
	eng   *engine.Engine
	out   *writeMux
	queue *serialQueue

	workCtx context.Context
	running sync.WaitGroup

	fatalOnce sync.Once
	fatal     chan error
}

type readResult struct {
	line []byte
	err  error
}

// Serve runs the stdio event loop until EOF on the reader or the context is
// canceled. It is safe to call at most once per Handler. Serve is responsible
// for:
//   - JSON-RPC message framing (newline-delimited, bounded line length)
//   - feeding each message to the engine in arrival order, and writing
//     responses in that order; only concurrent tools may answer out of turn
//   - scheduling tool calls: concurrent tools on their own goroutine, all
//     others on a single serial worker
//   - writing and flushing JSON-RPC responses and notifications
//
// EOF on the reader is treated as a half-close: the session is closed and
// no further requests are read, but stdout stays open, so outstanding calls
// get the shutdown timeout to finish and their results are still written.
// Results of calls still running when that timeout expires are discarded.
// On context cancellation the output is closed first and late results are
// discarded. Serve returns nil on EOF, ctx.Err() on cancellation and the
// underlying error when reading or writing fails.
func (h *Handler) Serve(ctx context.Context) error {
	if !h.served.CompareAndSwap(false, true) {
		return ErrServed
	}

	// The registry is shared read-only from here on.
	h.srv.Tools().Freeze()

	sessOpts := []sessions.Option{}
	if userID, err := h.userProvider.CurrentUserID(); err != nil {
		h.l.WarnContext(ctx, "stdio.user.fail", slog.String("err", err.Error()))
	} else {
		sessOpts = append(sessOpts, sessions.WithUserID(userID))
	}

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	c := &conn{
		h:       h,
		sess:    sessions.New(sessOpts...),
		eng:     engine.NewEngine(h.srv, engine.WithLogger(h.l)),
		out:     newWriteMux(h.w),
		queue:   newSerialQueue(),
		workCtx: workCtx,
		fatal:   make(chan error, 1),
	}
	ctx = logctx.WithSession(ctx, c.sess)
	h.l.InfoContext(ctx, "stdio.session.open")

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		c.queue.run(c.execJob)
	}()

	reads := make(chan readResult)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		lr := newLineReader(h.r, h.maxLineBytes)
		for {
			line, err := lr.next()
			select {
			case reads <- readResult{line: line, err: err}:
			case <-stop:
				return
			}
			if err != nil && !errors.Is(err, ErrLineTooLong) {
				return
			}
		}
	}()

	var serveErr error
	drain := true
loop:
	for {
		select {
		case <-ctx.Done():
			serveErr = ctx.Err()
			drain = false
			break loop
		case err := <-c.fatal:
			serveErr = err
			drain = false
			break loop
		case rr := <-reads:
			switch {
			case rr.err == nil:
				if err := c.handleLine(ctx, rr.line); err != nil {
					serveErr = err
					drain = false
					break loop
				}
			case errors.Is(rr.err, ErrLineTooLong):
				h.l.WarnContext(ctx, "stdio.read.line_too_long", slog.Int("max_bytes", h.maxLineBytes))
			case errors.Is(rr.err, io.EOF):
				h.l.InfoContext(ctx, "stdio.read.eof")
				break loop
			default:
				serveErr = fmt.Errorf("stdio: read: %w", rr.err)
				drain = false
				break loop
			}
		}
	}

	c.shutdown(ctx, drain, cancelWork)
	return serveErr
}

func (c *conn) handleLine(ctx context.Context, line []byte) error {
	if len(line) == 0 || isBlank(line) {
		return nil
	}

	msg, err := jsonrpc.Decode(line)
	if err != nil {
		var derr *jsonrpc.DecodeError
		if errors.As(err, &derr) {
			if resp := derr.Response(); resp != nil {
				c.h.l.InfoContext(ctx, "stdio.decode.fail", slog.String("err", err.Error()), slog.String("id", derr.ID.String()))
				return c.respond(ctx, resp)
			}
		}
		c.h.l.WarnContext(ctx, "stdio.decode.fail", slog.String("err", err.Error()), slog.Int("bytes", len(line)))
		return nil
	}

	out := c.eng.Route(ctx, c.sess, msg)
	switch {
	case out.Response != nil:
		return c.respond(ctx, out.Response)
	case out.Call != nil:
		if out.Call.Concurrent {
			c.running.Add(1)
			go func() {
				defer c.running.Done()
				c.exec(out.Call)
			}()
			return nil
		}
		c.queue.push(job{call: out.Call})
	}
	return nil
}

// respond writes resp now unless earlier serial calls are still pending, in
// which case it is written after them.
func (c *conn) respond(ctx context.Context, resp *jsonrpc.Response) error {
	if c.queue.pushIfBusy(resp) {
		return nil
	}
	return c.write(ctx, resp)
}

func (c *conn) execJob(j job) {
	if j.call != nil {
		c.exec(j.call)
		return
	}
	if err := c.write(c.workCtx, j.resp); err != nil {
		c.fail(err)
	}
}

// exec runs a pending call and writes its response. Failures to write are
// reported to the read loop.
func (c *conn) exec(call *engine.PendingCall) {
	resp := call.Run(c.workCtx, c.out)
	if err := c.write(c.workCtx, resp); err != nil {
		c.fail(err)
	}
}

func (c *conn) write(ctx context.Context, v any) error {
	err := c.out.WriteMessage(ctx, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errWriterClosed):
		c.h.l.DebugContext(ctx, "stdio.write.discarded")
		return nil
	default:
		c.h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
		return fmt.Errorf("stdio: write: %w", err)
	}
}

func (c *conn) fail(err error) {
	c.fatalOnce.Do(func() { c.fatal <- err })
}

func (c *conn) shutdown(ctx context.Context, drain bool, cancelWork context.CancelFunc) {
	c.sess.Close()
	if !drain {
		c.out.close()
	}
	c.queue.close()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.h.shutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
		c.h.l.InfoContext(ctx, "stdio.session.closed")
	case <-timer.C:
		c.h.l.WarnContext(ctx, "stdio.shutdown.timeout", slog.Int("in_flight", c.eng.InFlight()))
		c.out.close()
		cancelWork()
	}
}

func isBlank(line []byte) bool {
	for _, b := range line {
		switch b {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}
