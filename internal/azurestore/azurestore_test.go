package azurestore_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/pageblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perokvist/messagevault/internal/azurestore"
	"github.com/perokvist/messagevault/internal/checkpoint"
	"github.com/perokvist/messagevault/internal/pagestore"
)

// fakePageBlob imitates one page blob behind the PageBlobClient surface.
type fakePageBlob struct {
	exists bool
	data   []byte
}

func notFound() error {
	return &azcore.ResponseError{
		StatusCode: http.StatusNotFound,
		ErrorCode:  string(bloberror.BlobNotFound),
	}
}

func (f *fakePageBlob) Create(
	ctx context.Context, size int64, o *pageblob.CreateOptions,
) (pageblob.CreateResponse, error) {
	f.exists = true
	f.data = make([]byte, size)
	return pageblob.CreateResponse{}, nil
}

func (f *fakePageBlob) Resize(
	ctx context.Context, size int64, o *pageblob.ResizeOptions,
) (pageblob.ResizeResponse, error) {
	if !f.exists {
		return pageblob.ResizeResponse{}, notFound()
	}
	grown := make([]byte, size)
	copy(grown, f.data)
	f.data = grown
	return pageblob.ResizeResponse{}, nil
}

func (f *fakePageBlob) UploadPages(
	ctx context.Context,
	body io.ReadSeekCloser,
	contentRange blob.HTTPRange,
	o *pageblob.UploadPagesOptions,
) (pageblob.UploadPagesResponse, error) {
	if !f.exists {
		return pageblob.UploadPagesResponse{}, notFound()
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return pageblob.UploadPagesResponse{}, err
	}
	copy(f.data[contentRange.Offset:], raw)
	return pageblob.UploadPagesResponse{}, nil
}

func (f *fakePageBlob) DownloadStream(
	ctx context.Context, o *blob.DownloadStreamOptions,
) (blob.DownloadStreamResponse, error) {
	var resp blob.DownloadStreamResponse
	if !f.exists {
		return resp, notFound()
	}

	end := o.Range.Offset + o.Range.Count
	resp.Body = io.NopCloser(bytes.NewReader(f.data[o.Range.Offset:end]))
	return resp, nil
}

func (f *fakePageBlob) GetProperties(
	ctx context.Context, o *blob.GetPropertiesOptions,
) (blob.GetPropertiesResponse, error) {
	var resp blob.GetPropertiesResponse
	if !f.exists {
		return resp, notFound()
	}

	size := int64(len(f.data))
	resp.ContentLength = &size
	return resp, nil
}

func Test_PageBlob_Geometry(t *testing.T) {
	store := azurestore.NewPageBlob(&fakePageBlob{})

	assert.EqualValues(t, 512, store.PageSize())
	assert.EqualValues(t, 4<<20, store.MaxCommitSize())
}

func Test_PageBlob_InitCreatesOnce(t *testing.T) {
	fake := &fakePageBlob{}
	store := azurestore.NewPageBlob(fake)

	require.NoError(t, store.Init(t.Context()))
	assert.True(t, fake.exists)

	// A second Init against the existing blob is a no-op.
	require.NoError(t, store.Init(t.Context()))

	size, err := store.Size(t.Context())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func Test_PageBlob_EnsureSizeRoundsUp(t *testing.T) {
	fake := &fakePageBlob{}
	store := azurestore.NewPageBlob(fake)
	require.NoError(t, store.Init(t.Context()))

	require.NoError(t, store.EnsureSize(t.Context(), 600))
	size, err := store.Size(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1024, size)

	// Never shrinks.
	require.NoError(t, store.EnsureSize(t.Context(), 512))
	size, err = store.Size(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 1024, size)
}

func Test_PageBlob_WriteReadRoundTrip(t *testing.T) {
	fake := &fakePageBlob{}
	store := azurestore.NewPageBlob(fake)
	require.NoError(t, store.Init(t.Context()))
	require.NoError(t, store.EnsureSize(t.Context(), 1024))

	page := bytes.Repeat([]byte{0xCD}, 512)
	require.NoError(t, store.WritePages(t.Context(), page, 512))

	got := make([]byte, 17)
	require.NoError(t, store.ReadRange(t.Context(), got, 512+100))
	assert.Equal(t, page[100:117], got)
}

func Test_PageBlob_WritePagesUnaligned(t *testing.T) {
	store := azurestore.NewPageBlob(&fakePageBlob{exists: true})

	err := store.WritePages(t.Context(), make([]byte, 512), 7)
	assert.ErrorIs(t, err, pagestore.ErrUnalignedWrite)
}

func Test_PageBlob_ReadRangeOutOfRange(t *testing.T) {
	fake := &fakePageBlob{}
	store := azurestore.NewPageBlob(fake)
	require.NoError(t, store.Init(t.Context()))
	require.NoError(t, store.EnsureSize(t.Context(), 512))

	err := store.ReadRange(t.Context(), make([]byte, 100), 500)
	assert.ErrorIs(t, err, pagestore.ErrOutOfRange)
}

func Test_BlobCheckpoint_MissingReadsZero(t *testing.T) {
	check := azurestore.NewBlobCheckpoint(&fakePageBlob{})

	length, err := check.Read(t.Context())

	require.NoError(t, err)
	assert.Zero(t, length)
}

func Test_BlobCheckpoint_GetOrInitCreatesSinglePage(t *testing.T) {
	fake := &fakePageBlob{}
	check := azurestore.NewBlobCheckpoint(fake)

	length, err := check.GetOrInit(t.Context())

	require.NoError(t, err)
	assert.Zero(t, length)
	assert.Len(t, fake.data, 512)
}

func Test_BlobCheckpoint_UpdateIsMonotonic(t *testing.T) {
	check := azurestore.NewBlobCheckpoint(&fakePageBlob{})

	_, err := check.GetOrInit(t.Context())
	require.NoError(t, err)

	require.NoError(t, check.Update(t.Context(), 4096))

	err = check.Update(t.Context(), 4095)
	assert.ErrorIs(t, err, checkpoint.ErrNonMonotonic)

	length, err := check.Read(t.Context())
	require.NoError(t, err)
	assert.EqualValues(t, 4096, length)
}
