package mcpservice

import "context"

// ProgressReporter reports progress of a long-running tool call. The
// transport injects one into the call's context when the client supplied a
// progress token; tool code reaches it through ToolResponseWriter.SendProgress
// or ReportProgress.
type ProgressReporter interface {
	// Report emits a progress update. total may be zero when unknown.
	Report(ctx context.Context, progress, total float64) error
}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(ctx context.Context, progress, total float64) error

func (f ProgressFunc) Report(ctx context.Context, progress, total float64) error {
	return f(ctx, progress, total)
}

type progressKey struct{}

// WithProgressReporter returns a new context carrying the provided reporter.
func WithProgressReporter(ctx context.Context, pr ProgressReporter) context.Context {
	if pr == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, pr)
}

// ProgressFrom retrieves a ProgressReporter from the context if present.
func ProgressFrom(ctx context.Context) (ProgressReporter, bool) {
	pr, ok := ctx.Value(progressKey{}).(ProgressReporter)
	return pr, ok && pr != nil
}

// ReportProgress reports through the context's reporter, if any.
func ReportProgress(ctx context.Context, progress, total float64) error {
	if pr, ok := ProgressFrom(ctx); ok {
		return pr.Report(ctx, progress, total)
	}
	return nil
}
