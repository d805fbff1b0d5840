package pagereader_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perokvist/messagevault/internal/pagereader"
	"github.com/perokvist/messagevault/internal/pagestoretest"
)

// storeWithPattern returns a fake store whose first n bytes follow a
// deterministic pattern.
func storeWithPattern(t *testing.T, n int64) *pagestoretest.FakeStore {
	t.Helper()

	store := pagestoretest.NewFakeStore(512, 4096)
	require.NoError(t, store.EnsureSize(t.Context(), n))

	data := make([]byte, len(store.Bytes()))
	for i := range data {
		data[i] = byte(i * 7)
	}
	require.NoError(t, store.WritePages(t.Context(), data, 0))
	return store
}

func Test_Read_StopsAtMax(t *testing.T) {
	store := storeWithPattern(t, 2048)

	reader, err := pagereader.New(t.Context(), store, 100, 300, make([]byte, 512))
	require.NoError(t, err)

	got, err := io.ReadAll(reader)

	require.NoError(t, err)
	assert.Equal(t, store.Bytes()[100:300], got)
	assert.EqualValues(t, 300, reader.Position())

	n, err := reader.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

// readInChunks drains the reader with fixed-size requests.
func readInChunks(t *testing.T, reader *pagereader.Reader, chunk int) []byte {
	t.Helper()

	var all []byte
	p := make([]byte, chunk)
	for {
		n, err := reader.Read(p)
		if err == io.EOF {
			return all
		}
		require.NoError(t, err)
		all = append(all, p[:n]...)
	}
}

func Test_Read_IdenticalAcrossBufferSizes(t *testing.T) {
	store := storeWithPattern(t, 4096)

	var want []byte
	for _, capacity := range []int{64, 512, 1000, 4096} {
		reader, err := pagereader.New(
			t.Context(), store, 13, 3999, make([]byte, capacity))
		require.NoError(t, err)

		got := readInChunks(t, reader, 17)

		if want == nil {
			want = got
			continue
		}
		assert.Equal(t, want, got, "capacity %d", capacity)
	}
}

func Test_Read_BufferTooSmall(t *testing.T) {
	store := storeWithPattern(t, 2048)

	reader, err := pagereader.New(t.Context(), store, 0, 2048, make([]byte, 64))
	require.NoError(t, err)

	_, err = reader.Read(make([]byte, 65))
	assert.ErrorIs(t, err, pagereader.ErrBufferTooSmall)
}

func Test_Read_ShortNearEndOfRange(t *testing.T) {
	store := storeWithPattern(t, 1024)

	reader, err := pagereader.New(t.Context(), store, 1000, 1024, make([]byte, 512))
	require.NoError(t, err)

	// The request is larger than what remains of the range; that is a
	// short read, not a buffer error.
	p := make([]byte, 100)
	n, err := reader.Read(p)

	require.NoError(t, err)
	assert.Equal(t, 24, n)
	assert.Equal(t, store.Bytes()[1000:1024], p[:n])
}

func Test_New_InvalidRange(t *testing.T) {
	store := storeWithPattern(t, 1024)

	_, err := pagereader.New(t.Context(), store, 100, 50, make([]byte, 64))
	assert.Error(t, err)

	_, err = pagereader.New(t.Context(), store, -1, 50, make([]byte, 64))
	assert.Error(t, err)
}
