package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-stdio-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-stdio-go/internal/logctx"
	"github.com/ggoodman/mcp-stdio-go/mcp"
	"github.com/ggoodman/mcp-stdio-go/mcpservice"
	"github.com/ggoodman/mcp-stdio-go/sessions"
)

func (e *Engine) handleToolCall(ctx context.Context, log *slog.Logger, sess *sessions.StateMachine, msg *jsonrpc.AnyMessage) Outcome {
	start := time.Now()

	var params mcp.CallToolRequestReceived
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params", nil))
	}
	if params.Name == "" {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing tool name"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams, "invalid params: missing tool name", nil))
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: params.Name})

	call, err := e.srv.Tools().Prepare(params.Name, params.Arguments)
	if err != nil {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		var aerr *mcpservice.ArgumentsError
		switch {
		case errors.Is(err, mcpservice.ErrUnknownTool):
			return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams,
				fmt.Sprintf("unknown tool: %s", params.Name), map[string]any{"tool": params.Name}))
		case errors.As(err, &aerr):
			return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidParams,
				aerr.Error(), map[string]any{"tool": params.Name, "problems": aerr.Problems}))
		default:
			return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil))
		}
	}
	call.Meta = params.Meta

	// The in-flight entry exists from routing onwards so that a cancellation
	// can reach calls that are still queued.
	key := callKey{session: sess.SessionID(), id: *msg.ID}
	e.toolCtxMu.Lock()
	if _, exists := e.inflight[key]; exists {
		e.toolCtxMu.Unlock()
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "duplicate request id"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return respond(jsonrpc.NewErrorResponse(msg.ID, jsonrpc.ErrorCodeInvalidRequest, "duplicate request id", nil))
	}
	entry := &inflightCall{}
	e.inflight[key] = entry
	e.toolCtxMu.Unlock()

	release := func() {
		e.toolCtxMu.Lock()
		if e.inflight[key] == entry {
			delete(e.inflight, key)
		}
		e.toolCtxMu.Unlock()
	}

	id := msg.ID
	pending := &PendingCall{
		ID:         id,
		Tool:       params.Name,
		Concurrent: call.Tool.Concurrent,
		release:    release,
	}
	if params.Meta != nil {
		pending.progressToken = params.Meta.ProgressToken
	}
	pending.run = func(runCtx context.Context) *jsonrpc.Response {
		defer release()

		runCtx = logctx.WithSession(runCtx, sess)
		runCtx = logctx.WithRPCMessage(runCtx, &logctx.RPCMessage{Method: msg.Method, ID: id.String(), Type: msg.Type()})
		runCtx = logctx.WithToolCallData(runCtx, &logctx.ToolCallData{ToolName: params.Name})

		toolCtx, toolCancel := context.WithCancelCause(runCtx)
		defer toolCancel(context.Canceled)

		e.toolCtxMu.Lock()
		entry.cancel = toolCancel
		if entry.cause != nil {
			toolCancel(entry.cause)
		}
		e.toolCtxMu.Unlock()

		res := call.Run(toolCtx, sess)

		if cause := context.Cause(toolCtx); cause != nil {
			log.InfoContext(runCtx, "engine.handle_request.cancelled", slog.String("err", cause.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeRequestCancelled, "request cancelled", nil)
		}
		if res.IsError {
			log.InfoContext(runCtx, "engine.handle_request.tool_error", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		} else {
			log.InfoContext(runCtx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		}
		return e.result(runCtx, log, id, res)
	}
	return Outcome{Call: pending}
}

// cancelInFlightRequest cancels the call with the given id in a session. It
// reports whether such a call was known.
func (e *Engine) cancelInFlightRequest(sessionID string, id jsonrpc.RequestID, reason string) bool {
	cause := ErrCancelled
	if reason != "" {
		cause = fmt.Errorf("%w: %s", ErrCancelled, reason)
	}

	e.toolCtxMu.Lock()
	defer e.toolCtxMu.Unlock()
	entry, ok := e.inflight[callKey{session: sessionID, id: id}]
	if !ok {
		return false
	}
	if entry.cancel != nil {
		entry.cancel(cause)
	} else {
		entry.cause = cause
	}
	return true
}

// InFlight reports the number of tool calls routed but not yet finished.
func (e *Engine) InFlight() int {
	e.toolCtxMu.Lock()
	defer e.toolCtxMu.Unlock()
	return len(e.inflight)
}
