// Package azurestore runs a vault against Azure page blobs.
//
// A vault is one container holding stream.dat (a page blob with the
// framed message stream) and stream.chk (a single-page blob whose first 8
// bytes are the committed length, little-endian). Page blobs accept only
// 512-byte-aligned writes, which is exactly the contract the vault engine
// is built around.
package azurestore

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"

	"github.com/perokvist/messagevault/internal/checkpoint"
	"github.com/perokvist/messagevault/internal/pagestore"
	"github.com/perokvist/messagevault/internal/vault"
)

var (
	_ pagestore.Store       = &PageBlob{}
	_ checkpoint.Checkpoint = &BlobCheckpoint{}
)

// PageBlobClient is the subset of pageblob.Client the drivers use,
// extracted so tests can substitute a fake.
type PageBlobClient interface {
	Create(ctx context.Context, size int64, o *pageblob.CreateOptions) (pageblob.CreateResponse, error)
	Resize(ctx context.Context, size int64, o *pageblob.ResizeOptions) (pageblob.ResizeResponse, error)
	UploadPages(ctx context.Context, body io.ReadSeekCloser, contentRange blob.HTTPRange, o *pageblob.UploadPagesOptions) (pageblob.UploadPagesResponse, error)
	DownloadStream(ctx context.Context, o *blob.DownloadStreamOptions) (blob.DownloadStreamResponse, error)
	GetProperties(ctx context.Context, o *blob.GetPropertiesOptions) (blob.GetPropertiesResponse, error)
}

// Open binds a page store and checkpoint to the vault container at
// containerURL, authenticating with the default Azure credential chain.
//
// The container itself must already exist; provisioning and SAS handling
// are the caller's concern.
func Open(containerURL string) (*PageBlob, *BlobCheckpoint, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("azurestore: error building credential: %w", err)
	}
	return OpenWithCredential(containerURL, cred)
}

// OpenWithCredential is Open with a caller-supplied credential.
func OpenWithCredential(
	containerURL string,
	cred azcore.TokenCredential,
) (*PageBlob, *BlobCheckpoint, error) {
	dataClient, err := pageblob.NewClient(
		containerURL+"/"+vault.DataBlobName, cred, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("azurestore: error building data client: %w", err)
	}

	checkClient, err := pageblob.NewClient(
		containerURL+"/"+vault.CheckpointBlobName, cred, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("azurestore: error building checkpoint client: %w", err)
	}

	return NewPageBlob(dataClient), NewBlobCheckpoint(checkClient), nil
}

// isMissing reports whether err means the blob does not exist yet.
func isMissing(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound)
}
