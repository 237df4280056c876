package logger

import (
	"context"
	"log/slog"
	"time"
)

// Standard field keys.
const (
	KeyOp        = "op"
	KeyPath      = "path"
	KeyRequestID = "request_id"
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyIndex     = "index"
	KeyBlocks    = "blocks"
	KeyBytes     = "bytes"
	KeyError     = "error"
	KeyDuration  = "duration_ms"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds operation-scoped logging fields.
type LogContext struct {
	Op        string // read, write, delete, ...
	Path      string // storage file path
	RequestID string // batch request identifier
	TraceID   string
	SpanID    string
	StartTime time.Time
}

// WithContext returns a child of ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for op on the file at path.
func NewLogContext(op, path string) *LogContext {
	return &LogContext{Op: op, Path: path, StartTime: time.Now()}
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequestID returns a copy with the request ID set.
func (lc *LogContext) WithRequestID(id string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.RequestID = id
	}
	return c
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 10+len(args))
	if lc.Op != "" {
		out = append(out, KeyOp, lc.Op)
	}
	if lc.Path != "" {
		out = append(out, KeyPath, lc.Path)
	}
	if lc.RequestID != "" {
		out = append(out, KeyRequestID, lc.RequestID)
	}
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	return append(out, args...)
}

// Err returns an error attribute, or an empty attribute for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Blocks returns an attribute holding a block count.
func Blocks(n int) slog.Attr {
	return slog.Int(KeyBlocks, n)
}
