// Package pagestoretest provides an in-memory page store for tests.
package pagestoretest

import (
	"context"
	"fmt"

	"github.com/perokvist/messagevault/internal/pagestore"
)

// FakeStore is an in-memory pagestore.Store.
//
// Besides the Store contract it records per-page write counts and can be
// made to fail, which tests use to exercise crash recovery and the
// subscription retry path.
type FakeStore struct {
	pageSize      int64
	maxCommitSize int64
	data          []byte

	// writesPerPage[i] counts WritePages calls that covered page i.
	writesPerPage map[int64]int

	// FailWrites and FailReads make the corresponding operations return
	// an error, simulating storage outages.
	FailWrites bool
	FailReads  bool

	closed bool
}

// NewFakeStore returns an empty store with the given geometry.
func NewFakeStore(pageSize, maxCommitSize int64) *FakeStore {
	return &FakeStore{
		pageSize:      pageSize,
		maxCommitSize: maxCommitSize,
		writesPerPage: make(map[int64]int),
	}
}

func (s *FakeStore) PageSize() int64 { return s.pageSize }

func (s *FakeStore) MaxCommitSize() int64 { return s.maxCommitSize }

func (s *FakeStore) Init(ctx context.Context) error { return nil }

func (s *FakeStore) Size(ctx context.Context) (int64, error) {
	return int64(len(s.data)), nil
}

func (s *FakeStore) EnsureSize(ctx context.Context, n int64) error {
	target := pagestore.RoundUpToPages(n, s.pageSize)
	if target > int64(len(s.data)) {
		s.data = append(s.data, make([]byte, target-int64(len(s.data)))...)
	}
	return nil
}

func (s *FakeStore) WritePages(ctx context.Context, src []byte, offset int64) error {
	if s.FailWrites {
		return fmt.Errorf("pagestoretest: simulated write failure")
	}
	if err := pagestore.CheckAligned(offset, int64(len(src)), s.pageSize); err != nil {
		return err
	}
	if int64(len(src)) > s.maxCommitSize {
		return fmt.Errorf("pagestoretest: write of %d bytes exceeds max commit size %d",
			len(src), s.maxCommitSize)
	}
	if offset+int64(len(src)) > int64(len(s.data)) {
		return fmt.Errorf("pagestoretest: write past size %d", len(s.data))
	}

	copy(s.data[offset:], src)
	for page := offset / s.pageSize; page < (offset+int64(len(src)))/s.pageSize; page++ {
		s.writesPerPage[page]++
	}
	return nil
}

func (s *FakeStore) ReadRange(ctx context.Context, dst []byte, offset int64) error {
	if s.FailReads {
		return fmt.Errorf("pagestoretest: simulated read failure")
	}
	if offset < 0 || offset+int64(len(dst)) > int64(len(s.data)) {
		return fmt.Errorf("pagestoretest: [%d, %d) with size %d: %w",
			offset, offset+int64(len(dst)), len(s.data), pagestore.ErrOutOfRange)
	}

	copy(dst, s.data[offset:])
	return nil
}

func (s *FakeStore) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStore) Closed() bool { return s.closed }

// WriteCount returns how many WritePages calls covered the given page.
func (s *FakeStore) WriteCount(page int64) int {
	return s.writesPerPage[page]
}

// Bytes returns the current physical contents.
func (s *FakeStore) Bytes() []byte { return s.data }
