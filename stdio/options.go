package stdio

import (
	"io"
	"log/slog"
	"time"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithUserProvider overrides how the peer's user id is resolved.
func WithUserProvider(up UserProvider) Option {
	return func(h *Handler) {
		if up != nil {
			h.userProvider = up
		}
	}
}

// WithMaxLineBytes bounds the size of one inbound line. Longer lines are
// dropped and logged; the session continues. Non-positive values keep the
// default.
func WithMaxLineBytes(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxLineBytes = n
		}
	}
}

// WithShutdownTimeout sets how long outstanding tool calls may run once the
// input ends before their context is cancelled.
func WithShutdownTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.shutdownTimeout = d
		}
	}
}
