package chat

import (
	"context"
	"log/slog"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/contract"
	"github.com/klipach/dapper/log"
)

// LoadHistory reads uid's copy of the conversation with partnerID once,
// oldest first.
func LoadHistory(ctx context.Context, docs backend.Documents, uid, partnerID string) ([]contract.Message, error) {
	logger := log.LoggerFromContext(ctx)

	path := backend.MessagesPath(uid, partnerID)
	found, err := docs.List(ctx, path, backend.OrderByTimestamp)
	if err != nil {
		return nil, err
	}

	thread := NewThread()
	for _, doc := range found {
		ev, err := decodeMessage(backend.Change{Kind: backend.Added, Doc: doc})
		if err != nil {
			logger.Error("error while decoding message",
				slog.String(pathLogField, path),
				slog.String(docIDLogField, doc.ID()),
				slog.String(errorMsgLogField, err.Error()),
			)
			continue
		}
		thread.Apply(ev)
	}
	return thread.Messages(), nil
}
