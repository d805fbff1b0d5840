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
	"github.com/perokvist/messagevault/internal/pagestore"
)

// Incoming is a message handed to Append. The writer assigns its id.
type Incoming struct {
	Contract string
	Payload  []byte
}

// Writer appends messages to a vault.
//
// At most one Writer may be active per vault; coordination (a blob lease,
// a single owning process) is external. Not safe for use in multiple
// goroutines.
type Writer struct {
	store pagestore.Store // nil when closed
	check checkpoint.Checkpoint

	logger  *observability.CoreLogger
	clock   frame.Clock
	metrics *Metrics

	pageSize int64

	// buf holds the preserved tail of the last partially-filled
	// committed page followed by newly framed messages. buf[0]
	// corresponds to stream offset tailBase; cursor counts valid bytes.
	buf      []byte
	cursor   int64
	tailBase int64

	// length is the committed logical length L. The checkpoint may lag
	// it between a flush and the end of an Append.
	length int64
}

// WriterOptions configures a Writer. Logger is required; the zero values
// of the other fields select the wall clock and no metrics.
type WriterOptions struct {
	Logger  *observability.CoreLogger
	Clock   frame.Clock
	Metrics *Metrics
}

// OpenWriter binds a writer to a page store and checkpoint and recovers
// its state.
//
// Opening initializes the store (an idempotent create), reads the
// committed length and, if the stream ends mid-page, restores that
// partial page into the buffer. A crash that persisted pages without
// updating the checkpoint is recovered here: the stale bytes past the
// committed length are simply rewritten by the next flush.
//
// On success the writer owns both handles and releases them in Close.
func OpenWriter(
	ctx context.Context,
	store pagestore.Store,
	check checkpoint.Checkpoint,
	opts WriterOptions,
) (*Writer, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("vault: error initializing store: %w", err)
	}

	length, err := check.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault: error reading checkpoint: %w", err)
	}

	pageSize := store.PageSize()
	w := &Writer{
		store:    store,
		check:    check,
		logger:   opts.Logger,
		clock:    clock,
		metrics:  opts.Metrics,
		pageSize: pageSize,
		buf:      make([]byte, store.MaxCommitSize()),
		length:   length,
		tailBase: length - length%pageSize,
	}

	// Restore the tail of the last partially-filled page. Page stores
	// only accept whole-page writes, so those bytes are committed data
	// the next flush must carry forward.
	if tail := length % pageSize; tail > 0 {
		if err := store.ReadRange(ctx, w.buf[:tail], w.tailBase); err != nil {
			return nil, fmt.Errorf("vault: error restoring tail: %w", err)
		}
		w.cursor = tail
	}

	w.logger.Info("vault: writer open",
		"length", length, "tail", w.cursor)
	return w, nil
}

// Length returns the committed logical length.
func (w *Writer) Length() int64 {
	return w.length
}

// Append frames the messages into the vault and publishes the new
// committed length, which it returns.
//
// Visibility is all-or-nothing: the checkpoint is updated once, after
// every page of the batch is persisted. A failed append leaves the
// committed length unchanged and the writer usable; retrying continues
// from the current buffer state.
func (w *Writer) Append(ctx context.Context, msgs []Incoming) (int64, error) {
	if w.store == nil {
		return 0, ErrClosed
	}
	if len(msgs) == 0 {
		return 0, ErrNoMessages
	}
	for _, m := range msgs {
		if len(m.Contract) > frame.MaxContractLen {
			return 0, fmt.Errorf("vault: contract of %d bytes: %w",
				len(m.Contract), ErrContractTooLong)
		}
		if frame.EstimateSize(m.Contract, m.Payload) > frame.MaxFrameSize {
			return 0, fmt.Errorf("vault: frame of %d bytes: %w",
				frame.EstimateSize(m.Contract, m.Payload), ErrMessageTooLarge)
		}
	}

	for _, m := range msgs {
		size := int64(frame.EstimateSize(m.Contract, m.Payload))

		if size > int64(len(w.buf))-w.cursor {
			if err := w.flush(ctx); err != nil {
				return 0, err
			}
			if size > int64(len(w.buf))-w.cursor {
				return 0, fmt.Errorf(
					"vault: frame of %d bytes does not fit commit buffer: %w",
					size, ErrMessageTooLarge)
			}
		}

		offset := w.tailBase + w.cursor
		framed := &frame.Message{
			ID:       frame.NewMessageID(offset, w.clock()),
			Contract: m.Contract,
			Payload:  m.Payload,
		}

		region := &regionWriter{dst: w.buf[w.cursor:]}
		if err := frame.Encode(region, framed); err != nil {
			return 0, fmt.Errorf("vault: error framing message: %w", err)
		}
		w.cursor += int64(region.n)

		if w.metrics != nil {
			w.metrics.MessagesAppended.Inc()
		}
	}

	if err := w.flush(ctx); err != nil {
		return 0, err
	}
	if err := w.check.Update(ctx, w.length); err != nil {
		return 0, fmt.Errorf("vault: error publishing checkpoint: %w", err)
	}

	if w.metrics != nil {
		w.metrics.CommittedLength.Set(float64(w.length))
	}
	return w.length, nil
}

// flush persists the buffered bytes as whole pages and preserves the new
// tail for the next flush.
//
// The page holding the tail is rewritten on every flush until it fills;
// a page that is full never gets written again. The in-memory length
// advances here, but readers only learn of it when Append publishes the
// checkpoint.
func (w *Writer) flush(ctx context.Context) error {
	bytesInBuffer := w.cursor
	if bytesInBuffer == 0 {
		return nil
	}

	newLength := w.tailBase + bytesInBuffer
	if err := w.store.EnsureSize(
		ctx, pagestore.RoundUpToPages(newLength, w.pageSize)); err != nil {
		return fmt.Errorf("vault: error growing store: %w", err)
	}

	pagesToWrite := pagestore.RoundUpToPages(bytesInBuffer, w.pageSize)
	if err := w.store.WritePages(ctx, w.buf[:pagesToWrite], w.tailBase); err != nil {
		return fmt.Errorf("vault: error writing pages: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PagesWritten.Add(float64(pagesToWrite / w.pageSize))
		w.metrics.BytesCommitted.Add(float64(newLength - w.length))
	}
	w.length = newLength

	if bytesInBuffer < w.pageSize {
		// No page boundary crossed: the buffer already is the tail and
		// the next flush rewrites the same page in place.
		return nil
	}

	newTail := bytesInBuffer % w.pageSize
	if newTail > 0 {
		lastPageStart := bytesInBuffer - newTail
		copy(w.buf[:newTail], w.buf[lastPageStart:bytesInBuffer])
	}
	w.cursor = newTail
	w.tailBase = newLength - newTail
	return nil
}

// Close releases the store and checkpoint handles. The writer may not be
// used after.
//
// Buffered data is always committed by Append itself, so Close never
// loses messages.
func (w *Writer) Close() error {
	if w.store == nil {
		return ErrClosed
	}

	var errs []error
	if closer, ok := w.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vault: error closing store: %w", err))
		}
	}
	if closer, ok := w.check.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vault: error closing checkpoint: %w", err))
		}
	}

	w.store = nil
	return errors.Join(errs...)
}

// regionWriter frames into a fixed region of the commit buffer. Append
// sizes every frame before encoding, so overflow indicates a bug rather
// than buffer pressure.
type regionWriter struct {
	dst []byte
	n   int
}

func (r *regionWriter) Write(p []byte) (int, error) {
	if len(p) > len(r.dst)-r.n {
		return 0, errors.New("vault: frame overflows commit buffer")
	}
	copy(r.dst[r.n:], p)
	r.n += len(p)
	return len(p), nil
}
