package frame_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perokvist/messagevault/internal/frame"
)

func encode(t *testing.T, m *frame.Message) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, frame.Encode(&buf, m))
	return buf.Bytes()
}

func Test_EncodeDecode_RoundTrip(t *testing.T) {
	want := &frame.Message{
		ID:       frame.NewMessageID(42, time.UnixMilli(1700000000000)),
		Contract: "orders.placed.v1",
		Payload:  []byte("hello"),
	}

	got, err := frame.Decode(bytes.NewReader(encode(t, want)))

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func Test_Encode_KnownSize(t *testing.T) {
	// 1 version + 16 id + 1 varint + 1 contract + 4 length + 100 payload.
	m := &frame.Message{Contract: "a", Payload: make([]byte, 100)}

	raw := encode(t, m)

	assert.Len(t, raw, 123)
	assert.Equal(t, 123, frame.EstimateSize(m.Contract, m.Payload))
}

func Test_EstimateSize_MatchesEncoding(t *testing.T) {
	for _, m := range []*frame.Message{
		{Contract: "", Payload: nil},
		{Contract: "k", Payload: []byte{0xAB}},
		{Contract: string(make([]byte, 300)), Payload: make([]byte, 4096)},
	} {
		assert.Len(t, encode(t, m), frame.EstimateSize(m.Contract, m.Payload))
	}
}

func Test_Decode_UnknownFormat(t *testing.T) {
	raw := encode(t, &frame.Message{Contract: "a"})
	raw[0] = 0x02

	_, err := frame.Decode(bytes.NewReader(raw))

	assert.ErrorIs(t, err, frame.ErrUnknownFormat)
}

func Test_Decode_Truncated(t *testing.T) {
	raw := encode(t, &frame.Message{Contract: "a", Payload: make([]byte, 100)})

	for _, cut := range []int{1, 10, 18, 22, len(raw) - 1} {
		_, err := frame.Decode(bytes.NewReader(raw[:cut]))
		assert.ErrorIs(t, err, frame.ErrTruncated, "cut at %d", cut)
	}
}

func Test_Decode_CleanEOF(t *testing.T) {
	_, err := frame.Decode(bytes.NewReader(nil))

	assert.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, frame.ErrTruncated)
}

func Test_MessageID_Layout(t *testing.T) {
	createdAt := time.UnixMilli(1700000000123)

	id := frame.NewMessageID(987654, createdAt)

	assert.EqualValues(t, 987654, id.Offset())
	assert.Equal(t, createdAt.UTC(), id.Time())

	// Deterministic in (offset, clock).
	assert.Equal(t, id, frame.NewMessageID(987654, createdAt))
	assert.NotEqual(t, id, frame.NewMessageID(987655, createdAt))
}
