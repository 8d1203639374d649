package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const traceHeader = "X-Cloud-Trace-Context"

type ctxKey struct{}

type traceKey struct{}

// CloudLoggingHandler is a slog.Handler that writes one JSON object per
// record in Google Cloud structured logging format.
type CloudLoggingHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewCloudLoggingHandler creates a handler writing to stdout at info level.
func NewCloudLoggingHandler() *CloudLoggingHandler {
	return NewCloudLoggingHandlerWithWriter(os.Stdout, slog.LevelInfo)
}

// NewCloudLoggingHandlerWithWriter creates a handler writing records at or above level to w.
func NewCloudLoggingHandlerWithWriter(w io.Writer, level slog.Leveler) *CloudLoggingHandler {
	return &CloudLoggingHandler{mu: &sync.Mutex{}, w: w, level: level}
}

// Handle processes log records.
func (h *CloudLoggingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := map[string]any{
		"severity": severity(r.Level),
		"time":     r.Time.Format(time.RFC3339Nano),
		"message":  r.Message,
	}
	if r.Time.IsZero() {
		entry["time"] = time.Now().Format(time.RFC3339Nano)
	}
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		entry["logging.googleapis.com/trace"] = traceID
	}

	// handler attributes first, so record attributes win
	target := entry
	for _, g := range h.groups {
		sub := map[string]any{}
		target[g] = sub
		target = sub
	}
	for _, attr := range h.attrs {
		addAttr(target, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttr(target, attr)
		return true
	})

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(jsonData, '\n'))
	return err
}

// Enabled reports whether level is at or above the handler's minimum.
func (h *CloudLoggingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// WithAttrs returns a new handler with additional attributes.
func (h *CloudLoggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup nests subsequent attributes under name.
func (h *CloudLoggingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

func addAttr(m map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := map[string]any{}
		for _, a := range attr.Value.Group() {
			addAttr(group, a)
		}
		if attr.Key == "" {
			for k, v := range group {
				m[k] = v
			}
			return
		}
		m[attr.Key] = group
		return
	}
	if err, ok := attr.Value.Any().(error); ok {
		m[attr.Key] = err.Error()
		return
	}
	m[attr.Key] = attr.Value.Any()
}

// severity maps slog levels onto Cloud Logging severities.
func severity(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARNING"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// WithTraceID stores a Cloud Trace resource name in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceIDFromContext extracts the Google Cloud Trace ID from the context.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}

// TraceFromRequest derives the trace resource name from the
// X-Cloud-Trace-Context header ("TRACE_ID/SPAN_ID;o=1").
func TraceFromRequest(r *http.Request, projectID string) string {
	header := r.Header.Get(traceHeader)
	if header == "" || projectID == "" {
		return ""
	}
	traceID, _, _ := strings.Cut(header, "/")
	return fmt.Sprintf("projects/%s/traces/%s", projectID, traceID)
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(NewCloudLoggingHandler())
}
