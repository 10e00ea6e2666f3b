package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// stackTraceHandler decorates records whose error attribute carries a
// cockroachdb/errors stack trace with a stacktrace attribute, so fit
// failures stay diagnosable from JSON logs alone.
type stackTraceHandler struct {
	next slog.Handler
}

// NewStackTraceHandler wraps a slog handler with stack-trace extraction.
func NewStackTraceHandler(next slog.Handler) slog.Handler {
	return &stackTraceHandler{next: next}
}

func (h *stackTraceHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *stackTraceHandler) Handle(ctx context.Context, r slog.Record) error {
	var stacktrace string
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			// The stack trace, when present, is the first safe detail
			// recorded by cockroachdb/errors.
			if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
				stacktrace = details[0]
			}
		}
		return false
	})
	if stacktrace != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, stacktrace))
	}
	return h.next.Handle(ctx, r)
}

func (h *stackTraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackTraceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *stackTraceHandler) WithGroup(g string) slog.Handler {
	return &stackTraceHandler{next: h.next.WithGroup(g)}
}
