package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

// ErrCancelled is the cancellation cause recorded when the peer sends
// notifications/cancelled for an in-flight call.
var ErrCancelled = errors.New("request cancelled by client")

// Engine routes decoded JSON-RPC messages for any number of sessions. It is
// transport-agnostic: transports decode lines, hand each message to Route,
// write immediate responses and schedule the returned pending calls.
type Engine struct {
	srv *mcpservice.Server
	log *slog.Logger

	// tool call tracking
	toolCtxMu sync.Mutex
	inflight  map[callKey]*inflightCall
}

type callKey struct {
	session string
	id      jsonrpc.RequestID
}

type inflightCall struct {
	cancel context.CancelCauseFunc // nil until the call starts running
	cause  error                   // set when cancelled before starting
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(srv *mcpservice.Server, opts ...EngineOption) *Engine {
	e := &Engine{
		srv:      srv,
		log:      slog.Default(),
		inflight: make(map[callKey]*inflightCall),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Server returns the server description the engine answers with.
func (e *Engine) Server() *mcpservice.Server { return e.srv }

// Outcome is the result of routing one message. At most one field is set:
// Response must be written as is, Call must be scheduled and its Run result
// written. An empty Outcome means nothing is sent back.
type Outcome struct {
	Response *jsonrpc.Response
	Call     *PendingCall
}

// PendingCall is a validated tools/call waiting to be executed.
type PendingCall struct {
	ID         *jsonrpc.RequestID
	Tool       string
	Concurrent bool

	progressToken mcp.ProgressToken
	run           func(ctx context.Context) *jsonrpc.Response
	release       func()
}

// Run executes the call and returns its response. When w is non-nil and the
// client supplied a progress token, tool progress is written to w as
// notifications/progress.
func (p *PendingCall) Run(ctx context.Context, w MessageWriter) *jsonrpc.Response {
	if p.progressToken != nil && w != nil {
		token := p.progressToken
		ctx = mcpservice.WithProgressReporter(ctx, mcpservice.ProgressFunc(func(ctx context.Context, progress, total float64) error {
			note, err := jsonrpc.NewNotification(string(mcp.ProgressNotificationMethod), mcp.ProgressNotificationParams{
				ProgressToken: token,
				Progress:      progress,
				Total:         total,
			})
			if err != nil {
				return err
			}
			return w.WriteMessage(ctx, note)
		}))
	}
	return p.run(ctx)
}

// Discard releases a call that will never run.
func (p *PendingCall) Discard() {
	if p.release != nil {
		p.release()
	}
}

// Handle routes msg and, for tool calls, runs them synchronously.
func (e *Engine) Handle(ctx context.Context, sess *sessions.StateMachine, msg *jsonrpc.AnyMessage) *jsonrpc.Response {
	out := e.Route(ctx, sess, msg)
	if out.Call != nil {
		return out.Call.Run(ctx, nil)
	}
	return out.Response
}

// Route classifies msg, enforces the session's phase and either answers it
// immediately or returns a pending call. Notifications never produce a
// response.
func (e *Engine) Route(ctx context.Context, sess *sessions.StateMachine, msg *jsonrpc.AnyMessage) Outcome {
	ctx = logctx.WithSession(ctx, sess)
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Type:   msg.Type(),
	})

	kind := classify(msg)
	if kind == kindClientResponse {
		e.log.DebugContext(ctx, "engine.client_response.ignored")
		return Outcome{}
	}
	if msg.ID == nil {
		e.handleNotification(ctx, sess, kind, msg)
		return Outcome{}
	}

	start := time.Now()
	log := e.log.With(slog.String("method", msg.Method))

	if kind.requiresReady() {
		if err := sess.RequireReady(msg.Method); err != nil {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, err.Error(), nil))
		}
	}

	switch kind {
	case kindInitialize:
		return respond(e.handleInitialize(ctx, log, sess, msg))
	case kindPing:
		if err := sess.RequireOpen(msg.Method); err != nil {
			return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, err.Error(), nil))
		}
		return respond(e.result(ctx, log, msg.ID, mcp.EmptyResult{}))
	case kindInitialized, kindCancelled, kindProgress:
		// Notification methods sent with an id still get an answer.
		e.handleNotification(ctx, sess, kind, msg)
		return respond(e.result(ctx, log, msg.ID, mcp.EmptyResult{}))
	case kindToolsList:
		return respond(e.handleToolsList(ctx, log, msg))
	case kindToolsCall:
		return e.handleToolCall(ctx, log, sess, msg)
	case kindSetLevel:
		return respond(e.handleSetLevel(ctx, log, msg))
	default:
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method), nil))
	}
}

func respond(resp *jsonrpc.Response) Outcome { return Outcome{Response: resp} }

func (e *Engine) result(ctx context.Context, log *slog.Logger, id *jsonrpc.RequestID, v any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(id, v)
	if err != nil {
		log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return resp
}

func (e *Engine) handleInitialize(ctx context.Context, log *slog.Logger, sess *sessions.StateMachine, msg *jsonrpc.AnyMessage) *jsonrpc.Response {
	start := time.Now()
	var params mcp.InitializeRequest
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}

	version := e.srv.NegotiateProtocolVersion(params.ProtocolVersion)
	info := sessions.ClientInfo{Name: params.ClientInfo.Name, Version: params.ClientInfo.Version}
	if err := sess.BeginInitialize(version, info, params.Capabilities); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, err.Error(), nil)
	}

	res := mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    e.srv.Capabilities(),
		ServerInfo:      e.srv.ServerInfo(),
		Instructions:    e.srv.Instructions(),
	}
	log.InfoContext(ctx, "engine.initialize.ok",
		slog.String("client_name", info.Name),
		slog.String("client_version", info.Version),
		slog.String("requested_version", params.ProtocolVersion),
		slog.String("negotiated_version", version),
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
	)
	return e.result(ctx, log, msg.ID, res)
}

func (e *Engine) handleToolsList(ctx context.Context, log *slog.Logger, msg *jsonrpc.AnyMessage) *jsonrpc.Response {
	start := time.Now()
	var params mcp.ListToolsRequest
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
		}
	}

	tools, next, err := e.srv.Tools().ListPage(params.Cursor, e.srv.PageSize())
	if err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid cursor", nil)
	}

	res := mcp.ListToolsResult{
		Tools:           tools,
		PaginatedResult: mcp.PaginatedResult{NextCursor: next},
	}
	log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(tools)))
	return e.result(ctx, log, msg.ID, res)
}

func (e *Engine) handleSetLevel(ctx context.Context, log *slog.Logger, msg *jsonrpc.AnyMessage) *jsonrpc.Response {
	start := time.Now()
	var params mcp.SetLevelRequest
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil)
	}

	switch err := e.srv.SetLogLevel(params.Level); {
	case errors.Is(err, mcpservice.ErrLoggingUnsupported):
		log.InfoContext(ctx, "engine.handle_request.unsupported", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeMethodNotFound, "logging not supported", nil)
	case err != nil:
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, err.Error(), nil)
	}

	log.InfoContext(ctx, "engine.handle_request.ok", slog.String("level", string(params.Level)), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	return e.result(ctx, log, msg.ID, mcp.EmptyResult{})
}

// handleNotification applies notifications. Failures are logged only since
// there is nobody to answer.
func (e *Engine) handleNotification(ctx context.Context, sess *sessions.StateMachine, kind messageKind, msg *jsonrpc.AnyMessage) {
	switch kind {
	case kindInitialized:
		if !sess.MarkInitialized() {
			e.log.InfoContext(ctx, "engine.handle_notification.ignored", slog.String("reason", "not initializing"))
			return
		}
		e.log.InfoContext(ctx, "engine.session.ready")
	case kindCancelled:
		var params mcp.CancelledNotification
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		var id jsonrpc.RequestID
		if err := id.UnmarshalJSON(params.RequestID); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		found := e.cancelInFlightRequest(sess.SessionID(), id, params.Reason)
		e.log.InfoContext(ctx, "engine.handle_notification.cancelled", slog.String("request_id", id.String()), slog.Bool("found", found))
	case kindProgress:
		e.log.DebugContext(ctx, "engine.handle_notification.progress")
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored", slog.String("kind", kind.String()))
	}
}
