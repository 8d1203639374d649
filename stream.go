package dapper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/klipach/dapper/chat"
)

// streamFeed runs feed for the lifetime of the request and writes every
// snapshot and failure as an SSE frame.
func streamFeed[T, S any](w http.ResponseWriter, req *request, feed *chat.Feed[T, S], frame func(S) any, failure func(string) any) {
	// set SSE headers for streaming
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		req.logger.Error("streaming unsupported!")
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(req.ctx)
	frames := make(chan any, 16)
	push := func(v any) {
		select {
		case frames <- v:
		case <-ctx.Done():
		}
	}
	feed.OnChange(func(s S) { push(frame(s)) })
	feed.OnError(func(status string) { push(failure(status)) })

	// cancel must run before Close so a blocked observer can return
	defer feed.Close()
	defer cancel()
	if err := feed.Start(ctx); err != nil {
		req.logger.Error("error while subscribing", slog.String(ErrorMsgLogField, err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-feed.Done():
			return
		case v := <-frames:
			if err := writeEvent(w, v); err != nil {
				req.logger.Info("stream closed", slog.String(ErrorMsgLogField, err.Error()))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, v any) error {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", jsonData)
	return err
}
