// Package frame encodes and decodes the on-disk message record format.
//
// The wire format is little-endian throughout:
//
//	+------+------------+-----------------+----------------+---------+---------+
//	| 0x01 | 16-byte id | uvarint len     | contract bytes | 4-byte  | payload |
//	|      |            | of contract     | (UTF-8)        | len N   | N bytes |
//	+------+------------+-----------------+----------------+---------+---------+
//
// The contract length uses the standard 7-bit-continuation unsigned varint
// encoding, low-order group first, high bit set on all but the last byte.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// FormatVersion is the first byte of every frame. Incrementing it prevents
// older readers from misinterpreting a newer layout.
const FormatVersion = 0x01

const (
	// MaxContractLen bounds the contract string of a single message.
	MaxContractLen = 1024

	// MaxFrameSize bounds the encoded size of a single message,
	// framing included.
	MaxFrameSize = 2 << 20
)

var (
	// ErrUnknownFormat is returned when a frame's version byte is not
	// FormatVersion.
	ErrUnknownFormat = errors.New("frame: unknown format version")

	// ErrTruncated is returned when the source ends mid-frame.
	ErrTruncated = errors.New("frame: truncated")
)

// Clock supplies the creation time stamped into message ids. Injected so
// tests control it.
type Clock func() time.Time

// Message is one decoded record of the log.
type Message struct {
	ID       MessageID
	Contract string
	Payload  []byte
}

// EstimateSize returns the encoded size of a message with the given
// contract and payload. The writer uses it to decide when to flush.
func EstimateSize(contract string, payload []byte) int {
	var scratch [binary.MaxVarintLen64]byte
	varintLen := binary.PutUvarint(scratch[:], uint64(len(contract)))

	return 1 + IDSize + varintLen + len(contract) + 4 + len(payload)
}

// Encode writes the frame for m to w.
//
// Fails only on sink errors; the io.Writer contract guarantees a non-nil
// error on short writes.
func Encode(w io.Writer, m *Message) error {
	header := make([]byte, 0, 1+IDSize+binary.MaxVarintLen64)
	header = append(header, FormatVersion)
	header = append(header, m.ID[:]...)
	header = binary.AppendUvarint(header, uint64(len(m.Contract)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("frame: error writing header: %w", err)
	}
	if _, err := io.WriteString(w, m.Contract); err != nil {
		return fmt.Errorf("frame: error writing contract: %w", err)
	}

	var payloadLen [4]byte
	binary.LittleEndian.PutUint32(payloadLen[:], uint32(len(m.Payload)))
	if _, err := w.Write(payloadLen[:]); err != nil {
		return fmt.Errorf("frame: error writing payload length: %w", err)
	}
	if _, err := w.Write(m.Payload); err != nil {
		return fmt.Errorf("frame: error writing payload: %w", err)
	}
	return nil
}

// Decode reads one frame from r.
//
// Returns io.EOF if the source is exhausted before the version byte, and
// an error wrapping ErrTruncated if it ends anywhere after.
func Decode(r io.Reader) (*Message, error) {
	var version [1]byte
	if _, err := io.ReadFull(r, version[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, readErr("version", err)
	}
	if version[0] != FormatVersion {
		return nil, fmt.Errorf("frame: version 0x%02x: %w",
			version[0], ErrUnknownFormat)
	}

	msg := &Message{}
	if _, err := io.ReadFull(r, msg.ID[:]); err != nil {
		return nil, readErr("id", err)
	}

	contractLen, err := readUvarint(r)
	if err != nil {
		return nil, readErr("contract length", err)
	}
	if contractLen > MaxContractLen {
		return nil, fmt.Errorf(
			"frame: contract length %d exceeds %d", contractLen, MaxContractLen)
	}
	contract := make([]byte, contractLen)
	if _, err := io.ReadFull(r, contract); err != nil {
		return nil, readErr("contract", err)
	}
	msg.Contract = string(contract)

	var payloadLen [4]byte
	if _, err := io.ReadFull(r, payloadLen[:]); err != nil {
		return nil, readErr("payload length", err)
	}
	n := binary.LittleEndian.Uint32(payloadLen[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame: payload length %d exceeds %d",
			n, MaxFrameSize)
	}
	msg.Payload = make([]byte, n)
	if _, err := io.ReadFull(r, msg.Payload); err != nil {
		return nil, readErr("payload", err)
	}

	return msg, nil
}

// readUvarint decodes a varint one byte at a time. binary.ReadUvarint
// wants an io.ByteReader, and wrapping the source in bufio would read
// ahead and lose the frame-exact position accounting the vault's readers
// depend on.
func readUvarint(r io.Reader) (uint64, error) {
	var b [1]byte
	var value uint64
	for shift := uint(0); shift < 64; shift += 7 {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		value |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			return value, nil
		}
	}
	return 0, errors.New("frame: varint overflows uint64")
}

// readErr maps short reads inside a frame to ErrTruncated.
func readErr(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("frame: short read of %s: %w", field, ErrTruncated)
	}
	return fmt.Errorf("frame: error reading %s: %w", field, err)
}
