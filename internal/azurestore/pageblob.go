package azurestore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"

	"github.com/perokvist/messagevault/internal/pagestore"
)

// maxUploadPagesBytes is the service limit on the payload of one
// Put Pages call.
const maxUploadPagesBytes = 4 << 20

// PageBlob is a pagestore.Store over one Azure page blob.
type PageBlob struct {
	client PageBlobClient

	// size caches the blob's physical size. The single-writer model
	// means nobody else resizes the blob underneath us.
	size      int64
	sizeKnown bool
}

// NewPageBlob returns a page store over the given blob client.
func NewPageBlob(client PageBlobClient) *PageBlob {
	return &PageBlob{client: client}
}

func (s *PageBlob) PageSize() int64 { return pageblob.PageBytes }

func (s *PageBlob) MaxCommitSize() int64 { return maxUploadPagesBytes }

// Init creates the blob empty if it does not exist.
func (s *PageBlob) Init(ctx context.Context) error {
	_, err := s.client.GetProperties(ctx, nil)
	if err == nil {
		return nil
	}
	if !isMissing(err) {
		return fmt.Errorf("azurestore: error probing blob: %w", err)
	}

	if _, err := s.client.Create(ctx, 0, nil); err != nil {
		return fmt.Errorf("azurestore: error creating blob: %w", err)
	}
	return nil
}

func (s *PageBlob) Size(ctx context.Context) (int64, error) {
	if s.sizeKnown {
		return s.size, nil
	}

	props, err := s.client.GetProperties(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("azurestore: error sizing blob: %w", err)
	}
	if props.ContentLength == nil {
		return 0, fmt.Errorf("azurestore: blob properties carry no length")
	}

	s.size = *props.ContentLength
	s.sizeKnown = true
	return s.size, nil
}

func (s *PageBlob) EnsureSize(ctx context.Context, n int64) error {
	size, err := s.Size(ctx)
	if err != nil {
		return err
	}

	target := pagestore.RoundUpToPages(n, s.PageSize())
	if size >= target {
		return nil
	}

	if _, err := s.client.Resize(ctx, target, nil); err != nil {
		return fmt.Errorf("azurestore: error resizing blob to %d: %w", target, err)
	}
	s.size = target
	return nil
}

func (s *PageBlob) WritePages(ctx context.Context, src []byte, offset int64) error {
	if err := pagestore.CheckAligned(offset, int64(len(src)), s.PageSize()); err != nil {
		return err
	}
	if int64(len(src)) > s.MaxCommitSize() {
		return fmt.Errorf("azurestore: write of %d bytes exceeds max commit size %d",
			len(src), s.MaxCommitSize())
	}

	body := streaming.NopCloser(bytes.NewReader(src))
	contentRange := blob.HTTPRange{Offset: offset, Count: int64(len(src))}
	if _, err := s.client.UploadPages(ctx, body, contentRange, nil); err != nil {
		return fmt.Errorf("azurestore: error uploading pages at %d: %w", offset, err)
	}
	return nil
}

func (s *PageBlob) ReadRange(ctx context.Context, dst []byte, offset int64) error {
	size, err := s.Size(ctx)
	if err != nil {
		return err
	}
	if offset < 0 || offset+int64(len(dst)) > size {
		return fmt.Errorf("azurestore: [%d, %d) with size %d: %w",
			offset, offset+int64(len(dst)), size, pagestore.ErrOutOfRange)
	}

	resp, err := s.client.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: int64(len(dst))},
	})
	if err != nil {
		return fmt.Errorf("azurestore: error downloading range at %d: %w", offset, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.ReadFull(resp.Body, dst); err != nil {
		return fmt.Errorf("azurestore: error reading range body: %w", err)
	}
	return nil
}
