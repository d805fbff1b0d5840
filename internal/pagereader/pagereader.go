// Package pagereader streams a byte range of a page store through a
// fixed-size sliding window.
//
// A Reader is forward-only and not seekable: it downloads ahead of the
// consumer in chunks as large as its buffer allows and never reads past
// the end of its range. Each vault reader owns its own buffer, so
// concurrent readers never contend.
package pagereader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/perokvist/messagevault/internal/pagestore"
)

// ErrBufferTooSmall is returned when a single read request exceeds the
// window capacity. The caller's buffer must be at least as large as the
// largest item it decodes in one call.
var ErrBufferTooSmall = errors.New("pagereader: request exceeds buffer capacity")

// Reader is a forward-only view over the interval [start, max) of a page
// store.
//
// Not safe for use in multiple goroutines.
type Reader struct {
	ctx   context.Context
	store pagestore.Store

	// buf[r:w] is the downloaded, not yet consumed window. It always
	// covers the stream bytes [position, position + (w - r)).
	buf  []byte
	r, w int

	// position is the stream offset of the next byte Read returns.
	position int64
	max      int64
}

// New returns a reader over [start, max) using buf as its window.
//
// The reader owns buf until it is no longer used. Storage range reads
// issued on behalf of Read use ctx.
func New(ctx context.Context, store pagestore.Store, start, max int64, buf []byte) (*Reader, error) {
	if start < 0 || max < start {
		return nil, fmt.Errorf("pagereader: invalid range [%d, %d)", start, max)
	}
	if len(buf) == 0 {
		return nil, errors.New("pagereader: empty buffer")
	}

	return &Reader{
		ctx:      ctx,
		store:    store,
		buf:      buf,
		position: start,
		max:      max,
	}, nil
}

// Position returns the stream offset of the next unconsumed byte.
func (r *Reader) Position() int64 {
	return r.position
}

// Read implements io.Reader.
//
// It returns up to len(p) bytes, fewer only when the end of the range is
// near, and (0, io.EOF) once the position reaches the end of the range.
// A request larger than the window capacity fails with ErrBufferTooSmall.
func (r *Reader) Read(p []byte) (int, error) {
	if r.position >= r.max {
		return 0, io.EOF
	}
	if len(p) > len(r.buf) {
		return 0, fmt.Errorf("pagereader: read of %d bytes into window of %d: %w",
			len(p), len(r.buf), ErrBufferTooSmall)
	}

	if r.w-r.r < len(p) {
		if err := r.refill(); err != nil {
			return 0, err
		}
	}

	n := copy(p, r.buf[r.r:r.w])
	r.r += n
	r.position += int64(n)
	return n, nil
}

// refill compacts the unread remainder to the head of the buffer and
// downloads as much of the rest of the range as fits.
func (r *Reader) refill() error {
	remaining := r.w - r.r
	copy(r.buf, r.buf[r.r:r.w])
	r.r = 0
	r.w = remaining

	downloadFrom := r.position + int64(remaining)
	available := r.max - downloadFrom
	download := min(int64(len(r.buf)-remaining), available)
	if download == 0 {
		return nil
	}

	dst := r.buf[remaining : int64(remaining)+download]
	if err := r.store.ReadRange(r.ctx, dst, downloadFrom); err != nil {
		return fmt.Errorf("pagereader: error downloading [%d, %d): %w",
			downloadFrom, downloadFrom+download, err)
	}
	r.w += int(download)
	return nil
}
