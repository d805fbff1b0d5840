package frame

import (
	"encoding/binary"
	"encoding/hex"
	"time"
)

// IDSize is the encoded size of a MessageID.
const IDSize = 16

// MessageID identifies one message in one vault.
//
// The first 8 bytes hold the creation time as little-endian Unix
// milliseconds; the last 8 hold the logical offset at which the message
// was written. Offsets are unique within a vault, so ids are too, and the
// construction is deterministic given (offset, clock reading).
type MessageID [IDSize]byte

// NewMessageID stamps an id for a message written at the given logical
// offset.
func NewMessageID(offset int64, createdAt time.Time) MessageID {
	var id MessageID
	binary.LittleEndian.PutUint64(id[:8], uint64(createdAt.UnixMilli()))
	binary.LittleEndian.PutUint64(id[8:], uint64(offset))
	return id
}

// Offset returns the logical offset the id was stamped with.
func (id MessageID) Offset() int64 {
	return int64(binary.LittleEndian.Uint64(id[8:]))
}

// Time returns the creation time, truncated to millisecond precision.
func (id MessageID) Time() time.Time {
	return time.UnixMilli(int64(binary.LittleEndian.Uint64(id[:8]))).UTC()
}

func (id MessageID) String() string {
	return hex.EncodeToString(id[:])
}
