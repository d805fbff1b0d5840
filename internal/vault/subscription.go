package vault

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/perokvist/messagevault/internal/frame"
	"github.com/perokvist/messagevault/internal/pagereader"
)

// Subscription is a live tail of a vault.
//
// A background task follows the checkpoint and pushes every newly
// committed message into a bounded channel, in append order. The task
// runs until its context is cancelled; transient storage errors are
// logged and retried with backoff, never surfaced to the consumer.
type Subscription struct {
	ch    chan *frame.Message
	group *errgroup.Group
}

// Messages returns the channel of tailed messages.
//
// The channel's capacity is the subscription's queue limit; the producer
// blocks while the consumer lags. It is closed after cancellation once
// the background task has exited.
func (s *Subscription) Messages() <-chan *frame.Message {
	return s.ch
}

// Wait blocks until the background task exits. It returns nil after a
// clean cancellation.
func (s *Subscription) Wait() error {
	err := s.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Subscribe starts a live tail from the given logical offset.
//
// bufferSize is the page-prefetching window of the tail's own range
// reader; queueLimit caps the number of undelivered messages. The task
// exits promptly when ctx is cancelled, from any sleep or poll.
func (r *Reader) Subscribe(
	ctx context.Context,
	start int64,
	bufferSize int,
	queueLimit int,
) *Subscription {
	sub := &Subscription{
		ch: make(chan *frame.Message, queueLimit),
	}

	group, ctx := errgroup.WithContext(ctx)
	sub.group = group

	buf := make([]byte, bufferSize)
	group.Go(func() error {
		defer close(sub.ch)
		return r.tail(ctx, start, buf, sub.ch)
	})

	return sub
}

// tail is the subscription loop: catch up to the checkpoint, emit, poll,
// repeat.
func (r *Reader) tail(
	ctx context.Context,
	start int64,
	buf []byte,
	out chan<- *frame.Message,
) error {
	// Checkpoint polls while caught up are paced; catch-up reads are
	// not rate limited.
	polls := rate.NewLimiter(rate.Every(r.pollEvery), 1)

	position := start
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		length, err := r.check.Read(ctx)
		if err != nil {
			r.logger.CaptureError(err, "position", position)
			if err := r.retryBackoff.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		if length <= position {
			if err := polls.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		// New data in [position, length). An error mid-stream leaves
		// position at the last fully delivered frame, so the retry
		// re-reads from there and no progress is lost.
		position, err = r.emit(ctx, position, length, buf, out)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.CaptureError(err, "position", position)
			if err := r.retryBackoff.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

// emit decodes the committed range [from, till) and delivers each frame,
// returning the offset after the last delivered one.
func (r *Reader) emit(
	ctx context.Context,
	from, till int64,
	buf []byte,
	out chan<- *frame.Message,
) (int64, error) {
	pages, err := pagereader.New(ctx, r.store, from, till, buf)
	if err != nil {
		return from, err
	}

	position := from
	for pages.Position() < till {
		msg, err := frame.Decode(pages)
		if err != nil {
			return position, err
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return position, ctx.Err()
		}
		position = pages.Position()
	}
	return position, nil
}
