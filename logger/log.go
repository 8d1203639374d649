// Package logger ships slog records to Cloud Logging through the client library.
package logger

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/logging"
)

// New creates a Cloud Logging client for projectID (looked up from the
// metadata server when empty) and returns a logger writing to logName.
// The returned close function flushes buffered entries.
func New(ctx context.Context, projectID, logName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	if projectID == "" {
		var err error
		projectID, err = metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get project ID: %w", err)
		}
	}
	client, err := logging.NewClient(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logging client: %w", err)
	}
	return slog.New(NewHandler(client.Logger(logName), level)), client.Close, nil
}

type entryLogger interface {
	Log(e logging.Entry)
}

// Handler is a slog.Handler backed by a *logging.Logger.
type Handler struct {
	logger entryLogger
	level  slog.Leveler
	attrs  []slog.Attr
	group  string
}

func NewHandler(l *logging.Logger, level slog.Leveler) *Handler {
	return &Handler{logger: l, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	payload := map[string]any{"message": r.Message}
	fields := payload
	if h.group != "" {
		fields = map[string]any{}
		payload[h.group] = fields
	}
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Resolve().Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Resolve().Any()
		return true
	})
	h.logger.Log(logging.Entry{
		Timestamp: r.Time,
		Severity:  toSeverity(r.Level),
		Payload:   payload,
	})
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup keeps a single level of grouping, which is all the callers use.
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = name
	return &clone
}

func toSeverity(level slog.Level) logging.Severity {
	switch {
	case level >= slog.LevelError:
		return logging.Error
	case level >= slog.LevelWarn:
		return logging.Warning
	case level >= slog.LevelInfo:
		return logging.Info
	}
	return logging.Debug
}
