package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/perokvist/messagevault/internal/checkpoint"
	"github.com/perokvist/messagevault/internal/frame"
	"github.com/perokvist/messagevault/internal/observability"
	"github.com/perokvist/messagevault/internal/pagereader"
	"github.com/perokvist/messagevault/internal/pagestore"
	"github.com/perokvist/messagevault/internal/waiting"
)

// DefaultReadBufferSize is the window size of a reader's page-prefetching
// buffer. It must be at least as large as the largest expected frame.
const DefaultReadBufferSize = frame.MaxFrameSize + pagestore.DefaultPageSize

// Reader reads committed messages from a vault.
//
// Readers are independent of the writer and of each other; each owns its
// buffer, so a single Reader is not safe for use in multiple goroutines,
// but any number of Readers may work concurrently.
type Reader struct {
	store pagestore.Store // nil when closed
	check checkpoint.Checkpoint

	logger *observability.CoreLogger
	buf    []byte

	pollDelay    waiting.Delay
	pollEvery    time.Duration
	retryBackoff waiting.Delay
}

// ReaderOptions configures a Reader. Logger is required; zero values
// select DefaultReadBufferSize, a 1-second visibility poll and a
// 20-second error backoff.
type ReaderOptions struct {
	Logger *observability.CoreLogger

	// BufferSize is the page-prefetching window. It bounds the largest
	// frame the reader can decode.
	BufferSize int

	// PollDelay paces checkpoint polls in ReadWait.
	PollDelay waiting.Delay

	// PollEvery paces checkpoint polls in caught-up subscriptions.
	PollEvery time.Duration

	// RetryBackoff delays subscription retries after storage errors.
	RetryBackoff waiting.Delay
}

// OpenReader binds a reader to a page store and checkpoint.
//
// The store's idempotent Init runs here so that a reader can open a
// vault that no writer has touched yet; such a vault reads as empty.
// On success the reader owns both handles and releases them in Close.
func OpenReader(
	ctx context.Context,
	store pagestore.Store,
	check checkpoint.Checkpoint,
	opts ReaderOptions,
) (*Reader, error) {
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("vault: error initializing store: %w", err)
	}

	bufferSize := opts.BufferSize
	if bufferSize == 0 {
		bufferSize = DefaultReadBufferSize
	}
	if int64(bufferSize) < store.PageSize() {
		return nil, fmt.Errorf(
			"vault: read buffer of %d bytes is below the page size", bufferSize)
	}

	pollDelay := opts.PollDelay
	if pollDelay == nil {
		pollDelay = waiting.NewDelay(time.Second)
	}
	pollEvery := opts.PollEvery
	if pollEvery == 0 {
		pollEvery = time.Second
	}
	retryBackoff := opts.RetryBackoff
	if retryBackoff == nil {
		retryBackoff = waiting.NewDelay(20 * time.Second)
	}

	return &Reader{
		store:        store,
		check:        check,
		logger:       opts.Logger,
		buf:          make([]byte, bufferSize),
		pollDelay:    pollDelay,
		pollEvery:    pollEvery,
		retryBackoff: retryBackoff,
	}, nil
}

// Position returns the committed logical length of the vault.
func (r *Reader) Position(ctx context.Context) (int64, error) {
	if r.store == nil {
		return 0, ErrClosed
	}

	length, err := r.check.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("vault: error reading checkpoint: %w", err)
	}
	return length, nil
}

// Read decodes up to maxCount messages whose frames lie in [from, till).
//
// It returns the messages and the logical offset immediately after the
// last decoded frame, which equals from if none were decoded. Decoding
// stops at maxCount or when the range is exhausted; frames are never read
// across the end of the range.
func (r *Reader) Read(
	ctx context.Context,
	from, till int64,
	maxCount int,
) ([]*frame.Message, int64, error) {
	if r.store == nil {
		return nil, 0, ErrClosed
	}
	if from < 0 || till < from || maxCount < 1 {
		return nil, 0, fmt.Errorf("vault: read [%d, %d) count %d: %w",
			from, till, maxCount, ErrInvalidRange)
	}

	pages, err := pagereader.New(ctx, r.store, from, till, r.buf)
	if err != nil {
		return nil, 0, fmt.Errorf("vault: error opening range: %w", err)
	}

	var msgs []*frame.Message
	for len(msgs) < maxCount && pages.Position() < till {
		msg, err := frame.Decode(pages)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("vault: error decoding at %d: %w",
				pages.Position(), err)
		}
		msgs = append(msgs, msg)
	}

	next := from
	if len(msgs) > 0 {
		next = pages.Position()
	}
	return msgs, next, nil
}

// ReadWait is Read against the committed length, waiting for data to
// become visible.
//
// If the committed length is below from it fails with ErrFutureOffset;
// while it equals from, ReadWait polls the checkpoint with cancellable
// sleeps. Cancellation surfaces as ctx's error.
func (r *Reader) ReadWait(
	ctx context.Context,
	from int64,
	maxCount int,
) ([]*frame.Message, int64, error) {
	if r.store == nil {
		return nil, 0, ErrClosed
	}

	for {
		length, err := r.Position(ctx)
		if err != nil {
			return nil, 0, err
		}

		switch {
		case length < from:
			return nil, 0, fmt.Errorf("vault: committed %d, requested %d: %w",
				length, from, ErrFutureOffset)
		case length == from:
			if err := r.pollDelay.Wait(ctx); err != nil {
				return nil, 0, err
			}
		default:
			return r.Read(ctx, from, length, maxCount)
		}
	}
}

// Close releases the store and checkpoint handles. The reader may not be
// used after; subscriptions started from it must be cancelled first.
func (r *Reader) Close() error {
	if r.store == nil {
		return ErrClosed
	}

	var errs []error
	if closer, ok := r.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vault: error closing store: %w", err))
		}
	}
	if closer, ok := r.check.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vault: error closing checkpoint: %w", err))
		}
	}

	r.store = nil
	return errors.Join(errs...)
}
