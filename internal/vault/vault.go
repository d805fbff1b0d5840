// Package vault implements the append-only message log engine.
//
// A vault is two objects in a page store container: stream.dat, the
// page-aligned data blob holding framed messages, and stream.chk, the
// checkpoint publishing the committed logical length. A single Writer
// appends; any number of Readers scan forward from arbitrary offsets or
// subscribe for a live tail.
//
// The committed length L is the visibility boundary. Every byte in
// [0, L) decodes as a gapless sequence of frames; bytes in [L, physical
// size) are stale and unobserved. The checkpoint is published only after
// all pages of an append are persisted, so readers never see a partial
// batch.
package vault

import "errors"

// Conventional object names inside a vault container.
const (
	DataBlobName       = "stream.dat"
	CheckpointBlobName = "stream.chk"
)

var (
	// ErrClosed is returned by operations on a closed writer or reader.
	ErrClosed = errors.New("vault: closed")

	// ErrNoMessages is returned by an append of zero messages.
	ErrNoMessages = errors.New("vault: append of no messages")

	// ErrMessageTooLarge is returned when a message's framed size
	// exceeds the frame or buffer limits.
	ErrMessageTooLarge = errors.New("vault: message too large")

	// ErrContractTooLong is returned when a message's contract exceeds
	// the contract limit.
	ErrContractTooLong = errors.New("vault: contract too long")

	// ErrInvalidRange is returned for malformed read ranges and counts.
	ErrInvalidRange = errors.New("vault: invalid range")

	// ErrFutureOffset is returned when a waiting read starts beyond the
	// committed length.
	ErrFutureOffset = errors.New("vault: offset beyond committed length")
)
