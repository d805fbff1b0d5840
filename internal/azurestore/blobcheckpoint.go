package azurestore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"

	"github.com/perokvist/messagevault/internal/checkpoint"
)

// BlobCheckpoint stores the committed length in a single-page blob.
//
// The first 8 bytes of the page hold the length, little-endian; the rest
// of the page is zero. A freshly created page blob is zero-filled, which
// makes a new checkpoint read as 0 with no extra write.
type BlobCheckpoint struct {
	client PageBlobClient
}

// NewBlobCheckpoint returns a checkpoint over the given blob client.
func NewBlobCheckpoint(client PageBlobClient) *BlobCheckpoint {
	return &BlobCheckpoint{client: client}
}

func (c *BlobCheckpoint) Read(ctx context.Context) (int64, error) {
	resp, err := c.client.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: 0, Count: 8},
	})
	if err != nil {
		if isMissing(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("azurestore: error downloading checkpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var raw [8]byte
	if _, err := io.ReadFull(resp.Body, raw[:]); err != nil {
		return 0, fmt.Errorf("azurestore: error reading checkpoint body: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(raw[:])), nil
}

func (c *BlobCheckpoint) GetOrInit(ctx context.Context) (int64, error) {
	_, err := c.client.GetProperties(ctx, nil)
	if err == nil {
		return c.Read(ctx)
	}
	if !isMissing(err) {
		return 0, fmt.Errorf("azurestore: error probing checkpoint: %w", err)
	}

	if _, err := c.client.Create(ctx, pageblob.PageBytes, nil); err != nil {
		return 0, fmt.Errorf("azurestore: error creating checkpoint: %w", err)
	}
	return 0, nil
}

func (c *BlobCheckpoint) Update(ctx context.Context, n int64) error {
	stored, err := c.Read(ctx)
	if err != nil {
		return err
	}
	if n < stored {
		return fmt.Errorf("azurestore: %d below stored %d: %w",
			n, stored, checkpoint.ErrNonMonotonic)
	}

	var page [pageblob.PageBytes]byte
	binary.LittleEndian.PutUint64(page[:8], uint64(n))

	body := streaming.NopCloser(bytes.NewReader(page[:]))
	contentRange := blob.HTTPRange{Offset: 0, Count: pageblob.PageBytes}
	if _, err := c.client.UploadPages(ctx, body, contentRange, nil); err != nil {
		return fmt.Errorf("azurestore: error uploading checkpoint: %w", err)
	}
	return nil
}
