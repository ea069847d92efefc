package engine

import (
	"context"
)

// MessageWriter delivers an outbound JSON-RPC message (a notification or a
// response) to the peer. Implementations encode msg themselves.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg any) error
}

type MessageWriterFunc func(ctx context.Context, msg any) error

func (f MessageWriterFunc) WriteMessage(ctx context.Context, msg any) error {
	return f(ctx, msg)
}
