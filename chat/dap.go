package chat

import (
	"context"
	"log/slog"

	"github.com/klipach/dapper/backend"
	"github.com/klipach/dapper/log"
)

// DefaultDapText is sent when the dap image URL cannot be resolved.
const DefaultDapText = "DAP"

// DapText resolves the download URL of the dap image, which is the payload
// of a message sent without text.
func DapText(ctx context.Context, blobs backend.Blobs, imagePath string) string {
	url, err := blobs.DownloadURL(ctx, imagePath)
	if err != nil {
		log.LoggerFromContext(ctx).Error("failed to retrieve downloadURL",
			slog.String(pathLogField, imagePath),
			slog.String(errorMsgLogField, err.Error()),
		)
		return DefaultDapText
	}
	return url
}
