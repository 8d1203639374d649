package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/dapper/backend/memory"
)

func TestDapText(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewBlobs()

	assert.Equal(t, DefaultDapText, DapText(ctx, blobs, "dapImage.PNG"))

	require.NoError(t, blobs.Upload(ctx, "dapImage.PNG", []byte("\x89PNG\r\n\x1a\n")))
	assert.Equal(t, "https://storage.local/dapImage.PNG", DapText(ctx, blobs, "dapImage.PNG"))

	blobs.Fail("dapImage.PNG", errors.New("forbidden"))
	assert.Equal(t, DefaultDapText, DapText(ctx, blobs, "dapImage.PNG"))
}
