package logctx

import (
	"context"
	"log/slog"

	"github.com/ggoodman/mcp-stdio-go/sessions"
)

// Handler decorates every record with the session, rpc and tool groups
// stored in the record's context.
type Handler struct {
	slog.Handler
}

// New wraps h. Wrapping an existing *Handler returns it unchanged.
func New(h slog.Handler) *Handler {
	if lh, ok := h.(*Handler); ok {
		return lh
	}
	return &Handler{Handler: h}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if s, ok := ctx.Value(sessionKey{}).(*sessions.StateMachine); ok && s != nil {
		r.AddAttrs(slog.Group("sess",
			slog.String("id", s.SessionID()),
			slog.String("user_id", s.UserID()),
			slog.String("protocol_version", s.ProtocolVersion()),
			slog.String("phase", s.Phase().String()),
		))
	}

	if msg, ok := ctx.Value(rpcMsgKey{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		r.AddAttrs(slog.Group("tool",
			slog.String("name", td.ToolName),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}

type sessionKey struct{}

// WithSession attaches the session whose current state is logged with each
// record.
func WithSession(ctx context.Context, s *sessions.StateMachine) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

type rpcMsgKey struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsgKey{}, msg)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}
